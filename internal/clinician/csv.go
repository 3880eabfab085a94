package clinician

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"

	"Lifelog/internal/patient"
	"Lifelog/internal/utility"
	"github.com/labstack/echo/v4"
)

// utf8BOM makes Excel and WPS open the export as UTF-8.
const utf8BOM = "\ufeff"

var recordCSVHeader = []string{
	"patient_code", "log_date",
	"breakfast", "breakfast_kcal", "lunch", "lunch_kcal", "dinner", "dinner_kcal", "total_kcal",
	"bowel_count", "bowel_status", "sleep_hours", "sleep_quality", "sport_minutes",
	"weight_kg", "height_cm", "bmi", "notes", "created_at", "updated_at",
}

func recordCSVRow(r patient.RecordView) []string {
	return []string{
		r.PatientCode,
		r.LogDate,
		r.Breakfast,
		itoa(r.BreakfastKcal),
		r.Lunch,
		itoa(r.LunchKcal),
		r.Dinner,
		itoa(r.DinnerKcal),
		itoa(r.TotalKcal),
		itoa(r.BowelCount),
		r.BowelStatus,
		ftoa(r.SleepHours),
		r.SleepQuality,
		itoa(r.SportMinutes),
		ftoa(r.WeightKg),
		optFtoa(r.HeightCm),
		optFtoa(r.BMI),
		r.Notes,
		r.CreatedAt,
		r.UpdatedAt,
	}
}

func writeCSV(c echo.Context, filename string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		utility.LoggerFrom(c).Error().Err(err).Str("file", filename).Msg("Failed to write CSV export")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to build export"})
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+filename)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func itoa(n int32) string { return strconv.FormatInt(int64(n), 10) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func optFtoa(f *float64) string {
	if f == nil {
		return ""
	}
	return ftoa(*f)
}
