package calorie

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateHandler(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/calories/estimate", strings.NewReader(`{"text":"米饭, 2个鸡蛋"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, EstimateHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got Estimate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 386, got.TotalKcal)
	assert.Len(t, got.Items, 2)
}

func TestEstimateHandler_TooLong(t *testing.T) {
	e := echo.New()
	body, _ := json.Marshal(EstimateRequest{Text: strings.Repeat("饭", maxEstimateTextLength+1)})
	req := httptest.NewRequest(http.MethodPost, "/calories/estimate", strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, EstimateHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFoodsHandler(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/calories/foods", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, ListFoodsHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var foods []Food
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &foods))
	assert.Len(t, foods, len(DefaultFoods))
}
