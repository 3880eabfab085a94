// Package patient serves daily record entry and a patient's own history.
package patient

import (
	"net/http"
	"time"

	"Lifelog/internal/database"
	"Lifelog/internal/utility"
	"github.com/labstack/echo/v4"
)

var queries database.Querier

func InitPatientPackage(q database.Querier) {
	queries = q
}

// CreateRecordHandler handles POST /records
func CreateRecordHandler(c echo.Context) error {
	ctx := c.Request().Context()

	patientCode, err := utility.GetPatientCodeFromContext(c)
	if err != nil {
		return err
	}

	var req DailyRecordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	params, err := req.toParams(patientCode)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	record, err := queries.CreateDailyRecord(ctx, params)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "A record for this date already exists"})
		}
		utility.LoggerFrom(c).Error().Err(err).Str("patient_code", patientCode).Msg("Failed to create daily record")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save record"})
	}

	utility.TriggerDashboardUpdate()
	return c.JSON(http.StatusCreated, NewRecordView(record))
}

// GetRecordsHandler handles GET /records, oldest first.
func GetRecordsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	patientCode, err := utility.GetPatientCodeFromContext(c)
	if err != nil {
		return err
	}

	records, err := queries.ListPatientRecords(ctx, patientCode)
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Str("patient_code", patientCode).Msg("Failed to list daily records")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve records"})
	}

	return c.JSON(http.StatusOK, NewRecordViews(records))
}

// GetRecordHandler handles GET /records/:log_date
func GetRecordHandler(c echo.Context) error {
	ctx := c.Request().Context()

	key, err := recordKeyFromPath(c)
	if err != nil {
		return err
	}

	record, err := queries.GetDailyRecord(ctx, key)
	if err != nil {
		if database.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Record not found"})
		}
		utility.LoggerFrom(c).Error().Err(err).Msg("Failed to get daily record")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve record"})
	}

	return c.JSON(http.StatusOK, NewRecordView(record))
}

// UpdateRecordHandler handles PUT /records/:log_date
// The body replaces every field of the day; kcal and BMI are recomputed.
func UpdateRecordHandler(c echo.Context) error {
	ctx := c.Request().Context()

	key, err := recordKeyFromPath(c)
	if err != nil {
		return err
	}

	var req DailyRecordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	req.LogDate = c.Param("log_date")
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	params, err := req.toParams(key.PatientCode)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	record, err := queries.UpdateDailyRecord(ctx, params)
	if err != nil {
		if database.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Record not found"})
		}
		utility.LoggerFrom(c).Error().Err(err).Msg("Failed to update daily record")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update record"})
	}

	utility.TriggerDashboardUpdate()
	return c.JSON(http.StatusOK, NewRecordView(record))
}

// DeleteRecordHandler handles DELETE /records/:log_date
func DeleteRecordHandler(c echo.Context) error {
	ctx := c.Request().Context()

	key, err := recordKeyFromPath(c)
	if err != nil {
		return err
	}

	if err := queries.DeleteDailyRecord(ctx, key); err != nil {
		if database.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Record not found"})
		}
		utility.LoggerFrom(c).Error().Err(err).Msg("Failed to delete daily record")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete record"})
	}

	utility.TriggerDashboardUpdate()
	return c.NoContent(http.StatusNoContent)
}

func recordKeyFromPath(c echo.Context) (database.DailyRecordKey, error) {
	patientCode, err := utility.GetPatientCodeFromContext(c)
	if err != nil {
		return database.DailyRecordKey{}, err
	}

	logDate, err := utility.ParseDate(c.Param("log_date"))
	if err != nil {
		return database.DailyRecordKey{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD")
	}

	return database.DailyRecordKey{PatientCode: patientCode, LogDate: logDate}, nil
}

// PageData is rendered by patient.html.
type PageData struct {
	PatientCode string
	Today       string
	Flashes     []string
	Records     []RecordView
	TotalKcal   int32
}

// RenderPatientPageHandler handles GET /patient
func RenderPatientPageHandler(c echo.Context) error {
	ctx := c.Request().Context()

	patientCode, err := utility.GetPatientCodeFromContext(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/patient/login")
	}

	records, err := queries.ListPatientRecords(ctx, patientCode)
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Str("patient_code", patientCode).Msg("Failed to load patient history")
		return c.String(http.StatusInternalServerError, "Failed to load records")
	}

	data := PageData{
		PatientCode: patientCode,
		Today:       time.Now().Format(utility.DateLayout),
		Flashes:     utility.PopFlashes(c),
		Records:     NewRecordViews(records),
	}
	for _, r := range data.Records {
		if r.LogDate == data.Today {
			data.TotalKcal = r.TotalKcal
		}
	}

	return c.Render(http.StatusOK, "patient.html", data)
}

// SubmitEntryHandler handles POST /patient/entry
// It creates the day's record or overwrites it, then redirects back.
func SubmitEntryHandler(c echo.Context) error {
	ctx := c.Request().Context()

	patientCode, err := utility.GetPatientCodeFromContext(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/patient/login")
	}

	var req DailyRecordRequest
	if err := c.Bind(&req); err != nil {
		utility.SetFlash(c, "Invalid form submission")
		return c.Redirect(http.StatusSeeOther, "/patient")
	}
	if err := req.Validate(); err != nil {
		utility.SetFlash(c, err.Error())
		return c.Redirect(http.StatusSeeOther, "/patient")
	}

	params, err := req.toParams(patientCode)
	if err != nil {
		utility.SetFlash(c, err.Error())
		return c.Redirect(http.StatusSeeOther, "/patient")
	}

	record, err := queries.CreateDailyRecord(ctx, params)
	if err != nil && database.IsUniqueViolation(err) {
		record, err = queries.UpdateDailyRecord(ctx, params)
		if err == nil {
			utility.SetFlash(c, "Record for "+req.LogDate+" updated")
		}
	} else if err == nil {
		utility.SetFlash(c, "Record for "+req.LogDate+" saved")
	}
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Str("patient_code", patientCode).Msg("Failed to save daily record from form")
		utility.SetFlash(c, "Failed to save record, please try again")
		return c.Redirect(http.StatusSeeOther, "/patient")
	}

	utility.LoggerFrom(c).Info().
		Str("patient_code", patientCode).
		Str("log_date", req.LogDate).
		Int32("total_kcal", record.TotalKcal).
		Msg("Daily record saved")

	utility.TriggerDashboardUpdate()
	return c.Redirect(http.StatusSeeOther, "/patient")
}
