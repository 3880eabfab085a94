package server

import (
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strconv"

	"Lifelog/internal/auth"
	"Lifelog/internal/calorie"
	"Lifelog/internal/clinician"
	"Lifelog/internal/patient"
	"Lifelog/internal/utility"
	"Lifelog/web"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

// TemplateRenderer is a custom html/template renderer for Echo framework
type TemplateRenderer struct {
	templates *template.Template
}

// Render renders a template document
func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

var templateFuncs = template.FuncMap{
	// fmtFloat prints an optional measurement, or nothing when it is missing.
	"fmtFloat": func(f *float64) string {
		if f == nil {
			return ""
		}
		return strconv.FormatFloat(*f, 'f', -1, 64)
	},
}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{
		templates: template.Must(template.New("").Funcs(templateFuncs).ParseFS(web.Templates, "templates/*.html")),
	}
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true

	extractor, err := utility.NewIPExtractor(s.cfg.TrustedProxies)
	if err != nil {
		log.Error().Err(err).Msg("Ignoring trusted proxies, using peer address")
		extractor = echo.ExtractIPDirect()
	}
	e.IPExtractor = extractor
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.Use(LoggerMiddleware)

	public, _ := fs.Sub(web.Public, "public")
	e.StaticFS("/static", public)

	e.Renderer = NewTemplateRenderer()

	// Public pages and health
	e.GET("/health", s.healthHandler)
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, auth.PatientLoginPath)
	})
	e.GET(auth.PatientLoginPath, renderLoginPage("patient_login.html"))
	e.GET(auth.ClinicianLoginPath, renderLoginPage("clinician_login.html"))

	// Auth Routes
	e.POST("/auth/patient", auth.PatientSessionHandler)
	e.POST("/auth/clinician", auth.ClinicianLoginHandler)
	e.GET("/logout", auth.LogoutHandler)

	// Calorie estimator
	e.POST("/calories/estimate", calorie.EstimateHandler)
	e.GET("/calories/foods", calorie.ListFoodsHandler)

	// Patient web page
	e.GET("/patient", patient.RenderPatientPageHandler, auth.PatientAuthMiddleware)
	e.POST("/patient/entry", patient.SubmitEntryHandler, auth.PatientAuthMiddleware)

	// Patient's Daily Records Routes
	records := e.Group("/records", auth.PatientAuthMiddleware)
	records.POST("", patient.CreateRecordHandler)
	records.GET("", patient.GetRecordsHandler)
	records.GET("/:log_date", patient.GetRecordHandler)
	records.PUT("/:log_date", patient.UpdateRecordHandler)
	records.DELETE("/:log_date", patient.DeleteRecordHandler)

	// Clinician web pages
	e.GET("/dashboard", clinician.RenderDashboardHandler, auth.ClinicianAuthMiddleware)
	e.POST("/dashboard/patients", clinician.CreatePatientFormHandler, auth.ClinicianAuthMiddleware)

	// Clinician API Routes
	clin := e.Group("/clinician", auth.ClinicianAuthMiddleware)
	clin.POST("/patients", clinician.CreatePatientHandler)
	clin.GET("/patients", clinician.ListPatientsHandler)
	clin.GET("/patients.csv", clinician.ExportPatientsCSVHandler)
	clin.PUT("/patients/:patient_code", clinician.UpdatePatientRemarkHandler)
	clin.GET("/summary", clinician.ListPatientSummariesHandler)
	clin.GET("/records", clinician.ListRecordsHandler)
	clin.GET("/records.csv", clinician.ExportRecordsCSVHandler)
	clin.GET("/dashboard", clinician.GetDashboardHandler)
	clin.GET("/health", clinician.GetServerHealthHandler)
	clin.GET("/ws", clinician.DashboardSocketHandler)

	return e
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()

		c.Set("logger", &logger)

		return next(c)
	}
}

func (s *Server) healthHandler(c echo.Context) error {
	stats := s.db.Health()
	if stats["status"] != "up" {
		return c.JSON(http.StatusServiceUnavailable, stats)
	}
	return c.JSON(http.StatusOK, stats)
}

// renderLoginPage serves a public login page with any pending flash messages.
func renderLoginPage(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, name, map[string]interface{}{
			"Flashes": utility.PopFlashes(c),
		})
	}
}
