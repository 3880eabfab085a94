package calorie

import (
	"net/http"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
)

const maxEstimateTextLength = 2000

type EstimateRequest struct {
	Text string `json:"text" form:"text"`
}

// EstimateHandler handles POST /calories/estimate
func EstimateHandler(c echo.Context) error {
	var req EstimateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	if utf8.RuneCountInString(req.Text) > maxEstimateTextLength {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Text is too long"})
	}

	return c.JSON(http.StatusOK, Default().Estimate(req.Text))
}

// ListFoodsHandler handles GET /calories/foods
func ListFoodsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, Default().Foods())
}
