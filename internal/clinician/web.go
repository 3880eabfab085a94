package clinician

import (
	"net/http"
	"time"

	"Lifelog/internal/patient"
	"Lifelog/internal/utility"
	"github.com/labstack/echo/v4"
)

// DashboardPage is rendered by dashboard.html.
type DashboardPage struct {
	Flashes     []string
	Patients    []PatientView
	Records     []patient.RecordView
	Filter      RecordFilter
	FilterError string
}

// RenderDashboardHandler handles GET /dashboard
func RenderDashboardHandler(c echo.Context) error {
	ctx := c.Request().Context()

	patients, err := queries.ListPatients(ctx)
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Msg("Failed to load patients for dashboard")
		return c.String(http.StatusInternalServerError, "Failed to load patients")
	}

	page := DashboardPage{
		Flashes:  utility.PopFlashes(c),
		Patients: make([]PatientView, 0, len(patients)),
		Records:  []patient.RecordView{},
	}
	for _, p := range patients {
		page.Patients = append(page.Patients, newPatientView(p))
	}

	filter := filterFromQuery(c)
	params, err := filter.resolve(time.Now())
	filter.StartDate = utility.FormatDate(params.StartDate)
	filter.EndDate = utility.FormatDate(params.EndDate)
	page.Filter = filter
	if err != nil {
		page.FilterError = err.Error()
		return c.Render(http.StatusOK, "dashboard.html", page)
	}

	records, err := queries.SearchDailyRecords(ctx, params)
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Msg("Failed to load records for dashboard")
		return c.String(http.StatusInternalServerError, "Failed to load records")
	}
	page.Records = patient.NewRecordViews(records)

	return c.Render(http.StatusOK, "dashboard.html", page)
}

// CreatePatientFormHandler handles POST /dashboard/patients
func CreatePatientFormHandler(c echo.Context) error {
	remark, err := validateRemark(c.FormValue("remark"))
	if err != nil {
		utility.SetFlash(c, err.Error())
		return c.Redirect(http.StatusSeeOther, "/dashboard")
	}

	p, err := issuePatientCode(c, remark)
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Msg("Failed to create patient code from form")
		utility.SetFlash(c, "Could not save the patient code, please try again")
		return c.Redirect(http.StatusSeeOther, "/dashboard")
	}

	utility.SetFlash(c, "New patient code: "+p.PatientCode)
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}
