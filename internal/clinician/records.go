package clinician

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"Lifelog/internal/database"
	"Lifelog/internal/patient"
	"Lifelog/internal/utility"
	"github.com/labstack/echo/v4"
)

const defaultWindowDays = 30

// RecordFilter is the query string of GET /clinician/records and its CSV twin.
type RecordFilter struct {
	PatientCode string
	StartDate   string
	EndDate     string
}

func filterFromQuery(c echo.Context) RecordFilter {
	return RecordFilter{
		PatientCode: c.QueryParam("patient_code"),
		StartDate:   c.QueryParam("start_date"),
		EndDate:     c.QueryParam("end_date"),
	}
}

// resolve fills in the default window (today-30d .. today) and checks the range.
func (f RecordFilter) resolve(now time.Time) (database.SearchDailyRecordsParams, error) {
	params := database.SearchDailyRecordsParams{
		PatientCode: utility.TextOrNull(f.PatientCode),
		StartDate:   utility.DateOf(now.AddDate(0, 0, -defaultWindowDays)),
		EndDate:     utility.DateOf(now),
	}

	if s := strings.TrimSpace(f.StartDate); s != "" {
		d, err := utility.ParseDate(s)
		if err != nil {
			return params, fmt.Errorf("invalid start_date format. Use YYYY-MM-DD")
		}
		params.StartDate = d
	}
	if s := strings.TrimSpace(f.EndDate); s != "" {
		d, err := utility.ParseDate(s)
		if err != nil {
			return params, fmt.Errorf("invalid end_date format. Use YYYY-MM-DD")
		}
		params.EndDate = d
	}

	if params.StartDate.Time.After(params.EndDate.Time) {
		return params, fmt.Errorf("start_date must not be after end_date")
	}
	return params, nil
}

func searchRecords(c echo.Context) (database.SearchDailyRecordsParams, []database.DailyRecord, int, error) {
	params, err := filterFromQuery(c).resolve(time.Now())
	if err != nil {
		return params, nil, http.StatusBadRequest, err
	}

	records, err := queries.SearchDailyRecords(c.Request().Context(), params)
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Msg("Failed to search daily records")
		return params, nil, http.StatusInternalServerError, fmt.Errorf("failed to retrieve records")
	}
	return params, records, http.StatusOK, nil
}

// ListRecordsHandler handles GET /clinician/records
func ListRecordsHandler(c echo.Context) error {
	params, records, status, err := searchRecords(c)
	if err != nil {
		return c.JSON(status, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_code": params.PatientCode.String,
		"start_date":   utility.FormatDate(params.StartDate),
		"end_date":     utility.FormatDate(params.EndDate),
		"count":        len(records),
		"records":      patient.NewRecordViews(records),
	})
}

// ExportRecordsCSVHandler handles GET /clinician/records.csv
func ExportRecordsCSVHandler(c echo.Context) error {
	_, records, status, err := searchRecords(c)
	if err != nil {
		return c.JSON(status, map[string]string{"error": err.Error()})
	}

	rows := make([][]string, 0, len(records))
	for _, r := range patient.NewRecordViews(records) {
		rows = append(rows, recordCSVRow(r))
	}
	return writeCSV(c, "daily_records.csv", recordCSVHeader, rows)
}

// ExportPatientsCSVHandler handles GET /clinician/patients.csv
func ExportPatientsCSVHandler(c echo.Context) error {
	patients, err := queries.ListPatients(c.Request().Context())
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Msg("Failed to list patients for export")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve patients"})
	}

	rows := make([][]string, 0, len(patients))
	for _, p := range patients {
		v := newPatientView(p)
		rows = append(rows, []string{v.PatientCode, v.Remark, v.CreatedAt})
	}
	return writeCSV(c, "patients.csv", []string{"patient_code", "remark", "created_at"}, rows)
}
