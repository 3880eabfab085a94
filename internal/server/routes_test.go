package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"Lifelog/internal/auth"
	"Lifelog/internal/clinician"
	"Lifelog/internal/config"
	"Lifelog/internal/database"
	"Lifelog/internal/database/dbtest"
	"Lifelog/internal/patient"
	"Lifelog/internal/utility"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	status string
}

func (f *fakeService) Health() map[string]string         { return map[string]string{"status": f.status} }
func (f *fakeService) Close()                            {}
func (f *fakeService) Migrate(ctx context.Context) error { return nil }
func (f *fakeService) Queries() *database.Queries        { return nil }
func (f *fakeService) Pool() *pgxpool.Pool               { return nil }

func newTestHandler(t *testing.T) (http.Handler, *dbtest.Store) {
	store := dbtest.New()
	store.AddPatient("P251122001", "AIH", time.Now())

	cfg := &config.Config{
		Port:            8080,
		AppEnv:          "development",
		SessionSecret:   "route-test-secret",
		ClinicianSecret: "doctor-secret",
	}
	require.NoError(t, auth.InitAuth(store, cfg))
	utility.InitSessions(cfg.SessionSecret, false)
	patient.InitPatientPackage(store)
	clinician.InitClinicianPackage(store)

	s := &Server{port: cfg.Port, db: &fakeService{status: "up"}, cfg: cfg}
	return s.RegisterRoutes(), store
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndRequestID(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = do(h, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestHealthDown(t *testing.T) {
	_, _ = newTestHandler(t)
	s := &Server{db: &fakeService{status: "down"}, cfg: &config.Config{}}

	rec := do(s.RegisterRoutes(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLoginPagesRender(t *testing.T) {
	h, _ := newTestHandler(t)

	for path, want := range map[string]string{
		auth.PatientLoginPath:   `name="patient_code"`,
		auth.ClinicianLoginPath: `name="secret"`,
	} {
		rec := do(h, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), want)
	}

	rec := do(h, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusUnauthorized, do(h, req).Code)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/patient", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, auth.PatientLoginPath, rec.Header().Get(echo.HeaderLocation))

	rec = do(h, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, auth.ClinicianLoginPath, rec.Header().Get(echo.HeaderLocation))
}

func TestPatientAPIFlow(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/patient", strings.NewReader(`{"patient_code":"P251122001"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := do(h, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var login auth.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	bearer := "Bearer " + login.AccessToken

	req = httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"log_date":"2025-11-22","breakfast":"米饭, 2个鸡蛋","weight_kg":70,"height_cm":175}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, bearer)
	rec = do(h, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/records/2025-11-22", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer)
	rec = do(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_kcal":386`)

	req = httptest.NewRequest(http.MethodDelete, "/records/2025-11-22", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer)
	assert.Equal(t, http.StatusNoContent, do(h, req).Code)

	// patient tokens don't open clinician routes
	req = httptest.NewRequest(http.MethodGet, "/clinician/patients", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer)
	assert.Equal(t, http.StatusUnauthorized, do(h, req).Code)
}

func TestPatientWebFlow(t *testing.T) {
	h, _ := newTestHandler(t)

	form := url.Values{"patient_code": {"P251122001"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/patient", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := do(h, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req = httptest.NewRequest(http.MethodGet, "/patient", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = do(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "P251122001")
	assert.Contains(t, rec.Body.String(), `action="/patient/entry"`)
}

func TestClinicianFlow(t *testing.T) {
	h, store := newTestHandler(t)
	defer utility.ResetIPRateLimit("203.0.113.7")

	req := httptest.NewRequest(http.MethodPost, "/auth/clinician", strings.NewReader(`{"secret":"doctor-secret"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "203.0.113.7:41000"
	rec := do(h, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var login auth.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	bearer := "Bearer " + login.AccessToken

	req = httptest.NewRequest(http.MethodPost, "/clinician/patients", strings.NewReader(`{"remark":"new"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, bearer)
	require.Equal(t, http.StatusCreated, do(h, req).Code)

	patients, err := store.ListPatients(context.Background())
	require.NoError(t, err)
	assert.Len(t, patients, 2)

	req = httptest.NewRequest(http.MethodGet, "/clinician/patients.csv", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer)
	rec = do(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")

	req = httptest.NewRequest(http.MethodGet, "/clinician/records?start_date=2025-02-01&end_date=2025-01-01", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer)
	assert.Equal(t, http.StatusBadRequest, do(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.ClinicianCookie, Value: login.AccessToken})
	rec = do(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "P251122001")
}

func TestClinicianLoginLimitIgnoresForwardedFor(t *testing.T) {
	h, _ := newTestHandler(t)
	peer := "198.51.100.50"
	utility.ResetIPRateLimit(peer)
	defer utility.ResetIPRateLimit(peer)

	var limited int
	for i := 0; i < 15; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/clinician", strings.NewReader(`{"secret":"wrong"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("203.0.113.%d", 100+i))
		req.RemoteAddr = peer + ":41000"
		if do(h, req).Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 5, limited)
}

func TestCalorieRoutesArePublic(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/calories/estimate", strings.NewReader(`{"text":"两碗米饭，一杯牛奶"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := do(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_kcal":610`)

	assert.Equal(t, http.StatusOK, do(h, httptest.NewRequest(http.MethodGet, "/calories/foods", nil)).Code)
}
