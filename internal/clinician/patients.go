// Package clinician serves the clinician side: issuing patient codes,
// browsing and exporting records, and the live dashboard.
package clinician

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"Lifelog/internal/database"
	"Lifelog/internal/utility"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	maxRemarkLength    = 200
	maxCodeGenAttempts = 5
)

var (
	queries   database.Querier
	StartTime = time.Now()

	// randIntN is swapped in tests to force code collisions.
	randIntN = rand.IntN
)

func InitClinicianPackage(q database.Querier) {
	queries = q
	log.Info().Msg("Clinician package initialized with database queries.")
}

type RemarkRequest struct {
	Remark string `json:"remark" form:"remark"`
}

type PatientView struct {
	PatientCode string `json:"patient_code"`
	Remark      string `json:"remark"`
	CreatedAt   string `json:"created_at"`
}

func newPatientView(p database.Patient) PatientView {
	v := PatientView{PatientCode: p.PatientCode, Remark: p.Remark.String}
	if p.CreatedAt.Valid {
		v.CreatedAt = p.CreatedAt.Time.UTC().Format(time.RFC3339)
	}
	return v
}

type PatientSummaryView struct {
	PatientCode    string   `json:"patient_code"`
	Remark         string   `json:"remark"`
	CreatedAt      string   `json:"created_at"`
	RecordCount    int64    `json:"record_count"`
	LastLogDate    string   `json:"last_log_date,omitempty"`
	LatestWeightKg *float64 `json:"latest_weight_kg"`
	LatestBMI      *float64 `json:"latest_bmi"`
}

// GeneratePatientCode returns "P" + yymmdd + a number in [100, 999],
// e.g. P251122417.
func GeneratePatientCode(now time.Time, intN func(int) int) string {
	return fmt.Sprintf("P%s%03d", now.Format("060102"), 100+intN(900))
}

func validateRemark(remark string) (string, error) {
	remark = strings.TrimSpace(remark)
	if utf8.RuneCountInString(remark) > maxRemarkLength {
		return "", fmt.Errorf("remark must be at most %d characters", maxRemarkLength)
	}
	return remark, nil
}

// issuePatientCode inserts a fresh code, retrying on collisions.
func issuePatientCode(c echo.Context, remark string) (database.Patient, error) {
	ctx := c.Request().Context()

	var lastErr error
	for attempt := 1; attempt <= maxCodeGenAttempts; attempt++ {
		code := GeneratePatientCode(time.Now(), randIntN)
		p, err := queries.CreatePatient(ctx, database.CreatePatientParams{
			PatientCode: code,
			Remark:      utility.TextOrNull(remark),
		})
		if err == nil {
			utility.LoggerFrom(c).Info().Str("patient_code", code).Int("attempt", attempt).Msg("Issued patient code")
			return p, nil
		}
		if !database.IsUniqueViolation(err) {
			return database.Patient{}, err
		}
		utility.LoggerFrom(c).Warn().Str("patient_code", code).Int("attempt", attempt).Msg("Patient code collision, retrying")
		lastErr = err
	}
	return database.Patient{}, fmt.Errorf("no free patient code after %d attempts: %w", maxCodeGenAttempts, lastErr)
}

// CreatePatientHandler handles POST /clinician/patients
func CreatePatientHandler(c echo.Context) error {
	var req RemarkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	remark, err := validateRemark(req.Remark)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	p, err := issuePatientCode(c, remark)
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Msg("Failed to create patient code")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create patient code"})
	}

	return c.JSON(http.StatusCreated, newPatientView(p))
}

// ListPatientsHandler handles GET /clinician/patients, newest first.
func ListPatientsHandler(c echo.Context) error {
	patients, err := queries.ListPatients(c.Request().Context())
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Msg("Failed to list patients")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve patients"})
	}

	views := make([]PatientView, 0, len(patients))
	for _, p := range patients {
		views = append(views, newPatientView(p))
	}
	return c.JSON(http.StatusOK, views)
}

// UpdatePatientRemarkHandler handles PUT /clinician/patients/:patient_code
func UpdatePatientRemarkHandler(c echo.Context) error {
	code := strings.TrimSpace(c.Param("patient_code"))
	if code == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "patient_code is required"})
	}

	var req RemarkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	remark, err := validateRemark(req.Remark)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	p, err := queries.UpdatePatientRemark(c.Request().Context(), database.UpdatePatientRemarkParams{
		PatientCode: code,
		Remark:      utility.TextOrNull(remark),
	})
	if err != nil {
		if database.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Patient not found"})
		}
		utility.LoggerFrom(c).Error().Err(err).Str("patient_code", code).Msg("Failed to update patient remark")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update patient"})
	}

	return c.JSON(http.StatusOK, newPatientView(p))
}

// ListPatientSummariesHandler handles GET /clinician/summary
func ListPatientSummariesHandler(c echo.Context) error {
	rows, err := queries.ListPatientSummaries(c.Request().Context())
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Msg("Failed to list patient summaries")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve summaries"})
	}

	views := make([]PatientSummaryView, 0, len(rows))
	for _, r := range rows {
		v := PatientSummaryView{
			PatientCode:    r.PatientCode,
			Remark:         r.Remark.String,
			RecordCount:    r.RecordCount,
			LastLogDate:    utility.FormatDate(r.LastLogDate),
			LatestWeightKg: utility.Float8Ptr(r.LatestWeightKg),
			LatestBMI:      utility.Float8Ptr(r.LatestBmi),
		}
		if r.CreatedAt.Valid {
			v.CreatedAt = r.CreatedAt.Time.UTC().Format(time.RFC3339)
		}
		views = append(views, v)
	}
	return c.JSON(http.StatusOK, views)
}
