package clinician

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"Lifelog/internal/database"
	"Lifelog/internal/database/dbtest"
	"Lifelog/internal/utility"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRenderer struct {
	name string
	data interface{}
}

func (r *stubRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	r.name = name
	r.data = data
	return nil
}

func setup(t *testing.T) (*echo.Echo, *dbtest.Store) {
	store := dbtest.New()
	InitClinicianPackage(store)
	utility.InitSessions("test-secret", false)
	return echo.New(), store
}

func seedRecord(t *testing.T, store *dbtest.Store, code string, day time.Time, weight float64) {
	_, err := store.CreateDailyRecord(t.Context(), database.DailyRecordParams{
		PatientCode: code,
		LogDate:     utility.DateOf(day),
		Breakfast:   "粥, 鸡蛋",
		TotalKcal:   168,
		WeightKg:    weight,
		Bmi:         pgtype.Float8{Float64: 22.1, Valid: true},
	})
	require.NoError(t, err)
}

func TestGeneratePatientCode(t *testing.T) {
	now := time.Date(2025, 11, 22, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "P251122100", GeneratePatientCode(now, func(int) int { return 0 }))
	assert.Equal(t, "P251122999", GeneratePatientCode(now, func(n int) int { return n - 1 }))

	pattern := regexp.MustCompile(`^P\d{6}[1-9]\d{2}$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, pattern, GeneratePatientCode(time.Now(), randIntN))
	}
}

func TestCreatePatientHandler(t *testing.T) {
	e, store := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/clinician/patients", strings.NewReader(`{"remark":"  AIH / 2025随访 "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, CreatePatientHandler(e.NewContext(req, rec)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var got PatientView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "AIH / 2025随访", got.Remark)

	p, err := store.GetPatientByCode(t.Context(), got.PatientCode)
	require.NoError(t, err)
	assert.True(t, p.Remark.Valid)
}

func TestCreatePatientHandler_EmptyRemarkIsNull(t *testing.T) {
	e, store := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/clinician/patients", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, CreatePatientHandler(e.NewContext(req, rec)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var got PatientView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	p, err := store.GetPatientByCode(t.Context(), got.PatientCode)
	require.NoError(t, err)
	assert.False(t, p.Remark.Valid)
}

func TestCreatePatientHandler_RetriesOnCollision(t *testing.T) {
	e, store := setup(t)

	orig := randIntN
	defer func() { randIntN = orig }()

	calls := 0
	randIntN = func(n int) int {
		calls++
		if calls < 3 {
			return 0 // collides with the seeded code
		}
		return 1
	}

	store.AddPatient(GeneratePatientCode(time.Now(), func(int) int { return 0 }), "", time.Now())

	req := httptest.NewRequest(http.MethodPost, "/clinician/patients", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, CreatePatientHandler(e.NewContext(req, rec)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 3, calls)
	assert.Contains(t, rec.Body.String(), "101")
}

func TestCreatePatientHandler_GivesUp(t *testing.T) {
	e, store := setup(t)

	orig := randIntN
	defer func() { randIntN = orig }()
	randIntN = func(int) int { return 0 }
	store.AddPatient(GeneratePatientCode(time.Now(), randIntN), "", time.Now())

	req := httptest.NewRequest(http.MethodPost, "/clinician/patients", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, CreatePatientHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListPatientsHandler_NewestFirst(t *testing.T) {
	e, store := setup(t)
	now := time.Now()
	store.AddPatient("P251120101", "old", now.Add(-48*time.Hour))
	store.AddPatient("P251122102", "new", now)
	store.AddPatient("P251121103", "", now.Add(-24*time.Hour))

	rec := httptest.NewRecorder()
	require.NoError(t, ListPatientsHandler(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []PatientView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "P251122102", got[0].PatientCode)
	assert.Equal(t, "P251120101", got[2].PatientCode)
}

func TestUpdatePatientRemarkHandler(t *testing.T) {
	e, store := setup(t)
	store.AddPatient("P251122101", "", time.Now())

	for code, want := range map[string]int{"P251122101": http.StatusOK, "P000000000": http.StatusNotFound} {
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"remark":"张三"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("patient_code")
		c.SetParamValues(code)
		require.NoError(t, UpdatePatientRemarkHandler(c))
		assert.Equal(t, want, rec.Code, code)
	}

	p, err := store.GetPatientByCode(t.Context(), "P251122101")
	require.NoError(t, err)
	assert.Equal(t, "张三", p.Remark.String)
}

func TestListPatientSummariesHandler(t *testing.T) {
	e, store := setup(t)
	store.AddPatient("P251122101", "", time.Now())
	store.AddPatient("P251122102", "", time.Now().Add(-time.Hour))
	today := time.Now()
	seedRecord(t, store, "P251122101", today.AddDate(0, 0, -2), 71)
	seedRecord(t, store, "P251122101", today, 70)

	rec := httptest.NewRecorder()
	require.NoError(t, ListPatientSummariesHandler(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []PatientSummaryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].RecordCount)
	assert.Equal(t, today.Format(utility.DateLayout), got[0].LastLogDate)
	require.NotNil(t, got[0].LatestWeightKg)
	assert.InDelta(t, 70, *got[0].LatestWeightKg, 0.001)
	assert.Equal(t, int64(0), got[1].RecordCount)
	assert.Nil(t, got[1].LatestWeightKg)
}

func TestRecordFilterResolve(t *testing.T) {
	now := time.Date(2025, 11, 22, 15, 0, 0, 0, time.UTC)

	params, err := RecordFilter{}.resolve(now)
	require.NoError(t, err)
	assert.False(t, params.PatientCode.Valid)
	assert.Equal(t, "2025-10-23", utility.FormatDate(params.StartDate))
	assert.Equal(t, "2025-11-22", utility.FormatDate(params.EndDate))

	params, err = RecordFilter{PatientCode: "P251122101", StartDate: "2025-01-01", EndDate: "2025-01-31"}.resolve(now)
	require.NoError(t, err)
	assert.Equal(t, "P251122101", params.PatientCode.String)

	_, err = RecordFilter{StartDate: "2025-02-01", EndDate: "2025-01-31"}.resolve(now)
	require.EqualError(t, err, "start_date must not be after end_date")

	_, err = RecordFilter{EndDate: "31/01/2025"}.resolve(now)
	require.Error(t, err)
}

func TestListRecordsHandler(t *testing.T) {
	e, store := setup(t)
	store.AddPatient("P251122101", "", time.Now())
	store.AddPatient("P251122102", "", time.Now())
	today := time.Now()
	seedRecord(t, store, "P251122101", today, 70)
	seedRecord(t, store, "P251122102", today, 60)
	seedRecord(t, store, "P251122101", today.AddDate(0, 0, -1), 70)
	seedRecord(t, store, "P251122101", today.AddDate(0, 0, -45), 72)

	rec := httptest.NewRecorder()
	require.NoError(t, ListRecordsHandler(e.NewContext(httptest.NewRequest(http.MethodGet, "/clinician/records", nil), rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Count   int `json:"count"`
		Records []struct {
			PatientCode string `json:"patient_code"`
			LogDate     string `json:"log_date"`
		} `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 3, got.Count, "record older than 30 days is outside the default window")
	assert.Equal(t, "P251122101", got.Records[0].PatientCode)
	assert.Equal(t, "P251122102", got.Records[1].PatientCode)
	assert.Equal(t, today.AddDate(0, 0, -1).Format(utility.DateLayout), got.Records[2].LogDate)

	rec = httptest.NewRecorder()
	target := "/clinician/records?patient_code=P251122102"
	require.NoError(t, ListRecordsHandler(e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), rec)))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Count)
}

func TestListRecordsHandler_BadRange(t *testing.T) {
	e, _ := setup(t)

	rec := httptest.NewRecorder()
	target := "/clinician/records?start_date=2025-02-01&end_date=2025-01-01"
	require.NoError(t, ListRecordsHandler(e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "start_date must not be after end_date")
}

func TestExportRecordsCSVHandler(t *testing.T) {
	e, store := setup(t)
	store.AddPatient("P251122101", "", time.Now())
	seedRecord(t, store, "P251122101", time.Now(), 70)

	rec := httptest.NewRecorder()
	require.NoError(t, ExportRecordsCSVHandler(e.NewContext(httptest.NewRequest(http.MethodGet, "/clinician/records.csv", nil), rec)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=daily_records.csv", rec.Header().Get(echo.HeaderContentDisposition))

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "\ufeff"), "export must start with a UTF-8 BOM")

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(body, "\ufeff"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, recordCSVHeader, rows[0])
	assert.Equal(t, "粥, 鸡蛋", rows[1][2])
	assert.Equal(t, "", rows[1][15], "missing height exports as empty cell")
	assert.Equal(t, "22.1", rows[1][16])
}

func TestExportPatientsCSVHandler(t *testing.T) {
	e, store := setup(t)
	store.AddPatient("P251122101", "AIH, follow-up", time.Now())

	rec := httptest.NewRecorder()
	require.NoError(t, ExportPatientsCSVHandler(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=patients.csv", rec.Header().Get(echo.HeaderContentDisposition))

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(rec.Body.String(), "\ufeff"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"patient_code", "remark", "created_at"}, rows[0])
	assert.Equal(t, "AIH, follow-up", rows[1][1])
}

func TestGetDashboardHandler(t *testing.T) {
	e, store := setup(t)
	store.AddPatient("P251122101", "", time.Now())
	store.AddPatient("P251122102", "", time.Now())
	seedRecord(t, store, "P251122101", time.Now(), 70)
	seedRecord(t, store, "P251122101", time.Now().AddDate(0, 0, -10), 70)

	rec := httptest.NewRecorder()
	require.NoError(t, GetDashboardHandler(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var got DashboardSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(2), got.Stats.TotalPatients)
	assert.Equal(t, int64(2), got.Stats.TotalRecords)
	assert.Equal(t, int64(1), got.Stats.RecordsToday)
	assert.Equal(t, int64(1), got.Stats.ActivePatients)
	assert.Equal(t, "Healthy", got.ServerHealth.DBStatus)
	assert.NotEmpty(t, got.ServerHealth.CPULoad)
}

func TestGetDashboardHandler_StoreDown(t *testing.T) {
	e, store := setup(t)
	store.Err = errors.New("connection refused")

	rec := httptest.NewRecorder()
	require.NoError(t, GetDashboardHandler(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRenderDashboardHandler(t *testing.T) {
	e, store := setup(t)
	renderer := &stubRenderer{}
	e.Renderer = renderer
	store.AddPatient("P251122101", "", time.Now())
	seedRecord(t, store, "P251122101", time.Now(), 70)

	rec := httptest.NewRecorder()
	require.NoError(t, RenderDashboardHandler(e.NewContext(httptest.NewRequest(http.MethodGet, "/dashboard?patient_code=P251122101", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dashboard.html", renderer.name)

	page, ok := renderer.data.(DashboardPage)
	require.True(t, ok)
	assert.Len(t, page.Patients, 1)
	assert.Len(t, page.Records, 1)
	assert.Empty(t, page.FilterError)
	assert.Equal(t, "P251122101", page.Filter.PatientCode)
	assert.Equal(t, time.Now().Format(utility.DateLayout), page.Filter.EndDate)

	rec = httptest.NewRecorder()
	require.NoError(t, RenderDashboardHandler(e.NewContext(httptest.NewRequest(http.MethodGet, "/dashboard?start_date=2025-02-01&end_date=2025-01-01", nil), rec)))
	page = renderer.data.(DashboardPage)
	assert.Equal(t, "start_date must not be after end_date", page.FilterError)
	assert.Empty(t, page.Records)
}

func TestCreatePatientFormHandler(t *testing.T) {
	e, store := setup(t)

	form := url.Values{"remark": {"王五"}}
	req := httptest.NewRequest(http.MethodPost, "/dashboard/patients", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	require.NoError(t, CreatePatientFormHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get(echo.HeaderLocation))

	patients, err := store.ListPatients(t.Context())
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, "王五", patients[0].Remark.String)
}

func TestServerHealthAlwaysAnswers(t *testing.T) {
	e, _ := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/clinician/health", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, GetServerHealthHandler(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "online", body["status"])
	assert.Contains(t, body, "runtime")
}

func TestDashboardSocketNeedsRole(t *testing.T) {
	e, _ := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/clinician/ws", nil)
	err := DashboardSocketHandler(e.NewContext(req, httptest.NewRecorder()))
	assert.ErrorIs(t, err, echo.ErrUnauthorized)
}
