package clinician

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Lifelog/internal/patient"
	"Lifelog/internal/utility"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialDashboard(t *testing.T) *websocket.Conn {
	e := echo.New()
	e.GET("/clinician/ws", DashboardSocketHandler, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("role", "clinician")
			return next(c)
		}
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/clinician/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return utility.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	return msg
}

func TestDashboardSocket_RecordWriteAndBroadcast(t *testing.T) {
	_, store := setup(t)
	store.AddPatient("P251122001", "", time.Now())
	patient.InitPatientPackage(store)

	conn := dialDashboard(t)

	// a patient write reaches the open dashboard
	today := time.Now().Format(utility.DateLayout)
	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"log_date":"`+today+`","breakfast":"米饭"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set("patient_code", "P251122001")
	require.NoError(t, patient.CreateRecordHandler(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, utility.RefreshMessage, string(readMessage(t, conn)))

	// the periodic broadcaster pushes typed stats while the socket is open
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		StartDashboardBroadcaster(ctx, store, 20*time.Millisecond)
		close(done)
	}()

	var update DashboardUpdate
	require.NoError(t, json.Unmarshal(readMessage(t, conn), &update))
	assert.Equal(t, DashboardUpdateType, update.Type)
	assert.Equal(t, int64(1), update.Data.Stats.TotalPatients)
	assert.Equal(t, int64(1), update.Data.Stats.RecordsToday)
	assert.Equal(t, 1, update.Data.ConnectedDashboards)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcaster did not stop after cancel")
	}

	conn.Close()
	require.Eventually(t, func() bool { return utility.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDashboardBroadcaster_IdleWithoutClients(t *testing.T) {
	_, store := setup(t)
	require.Equal(t, 0, utility.ClientCount())

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	StartDashboardBroadcaster(ctx, store, 10*time.Millisecond)
	// with no dashboards open no snapshot (which samples CPU for a second) is taken
	assert.Less(t, time.Since(start), time.Second)
}
