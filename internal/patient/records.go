package patient

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"Lifelog/internal/calorie"
	"Lifelog/internal/database"
	"Lifelog/internal/utility"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	maxMealLength        = 1000
	maxNotesLength       = 1000
	maxBowelStatusLength = 100

	// maxMealKcal rejects estimates no single meal plausibly reaches.
	maxMealKcal = 20000
)

// DailyRecordRequest is used for both POST /records and PUT /records/:log_date,
// and for the HTML entry form. Zero means "not entered" for height and BMI.
type DailyRecordRequest struct {
	LogDate string `json:"log_date" form:"log_date"` // YYYY-MM-DD

	// Meals (free text, kcal estimated server-side)
	Breakfast string `json:"breakfast" form:"breakfast"`
	Lunch     string `json:"lunch" form:"lunch"`
	Dinner    string `json:"dinner" form:"dinner"`

	BowelCount  int32  `json:"bowel_count" form:"bowel_count"`
	BowelStatus string `json:"bowel_status" form:"bowel_status"`

	SleepHours   float64 `json:"sleep_hours" form:"sleep_hours"`
	SleepQuality string  `json:"sleep_quality" form:"sleep_quality"` // '', 'good', 'fair', 'poor'

	SportMinutes int32 `json:"sport_minutes" form:"sport_minutes"`

	WeightKg float64 `json:"weight_kg" form:"weight_kg"`
	HeightCm float64 `json:"height_cm" form:"height_cm"`
	BMI      float64 `json:"bmi" form:"bmi"` // only used when height is missing

	Notes string `json:"notes" form:"notes"`
}

// RecordView is the JSON / template / CSV shape of a daily record.
type RecordView struct {
	PatientCode   string   `json:"patient_code"`
	LogDate       string   `json:"log_date"`
	Breakfast     string   `json:"breakfast"`
	Lunch         string   `json:"lunch"`
	Dinner        string   `json:"dinner"`
	BreakfastKcal int32    `json:"breakfast_kcal"`
	LunchKcal     int32    `json:"lunch_kcal"`
	DinnerKcal    int32    `json:"dinner_kcal"`
	TotalKcal     int32    `json:"total_kcal"`
	BowelCount    int32    `json:"bowel_count"`
	BowelStatus   string   `json:"bowel_status"`
	SleepHours    float64  `json:"sleep_hours"`
	SleepQuality  string   `json:"sleep_quality"`
	SportMinutes  int32    `json:"sport_minutes"`
	WeightKg      float64  `json:"weight_kg"`
	HeightCm      *float64 `json:"height_cm"`
	BMI           *float64 `json:"bmi"`
	BMICategory   string   `json:"bmi_category,omitempty"`
	Notes         string   `json:"notes"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

func NewRecordView(r database.DailyRecord) RecordView {
	v := RecordView{
		PatientCode:   r.PatientCode,
		LogDate:       utility.FormatDate(r.LogDate),
		Breakfast:     r.Breakfast,
		Lunch:         r.Lunch,
		Dinner:        r.Dinner,
		BreakfastKcal: r.BreakfastKcal,
		LunchKcal:     r.LunchKcal,
		DinnerKcal:    r.DinnerKcal,
		TotalKcal:     r.TotalKcal,
		BowelCount:    r.BowelCount,
		BowelStatus:   r.BowelStatus,
		SleepHours:    r.SleepHours,
		SleepQuality:  r.SleepQuality,
		SportMinutes:  r.SportMinutes,
		WeightKg:      r.WeightKg,
		HeightCm:      utility.Float8Ptr(r.HeightCm),
		BMI:           utility.Float8Ptr(r.Bmi),
		Notes:         r.Notes,
	}
	if r.Bmi.Valid {
		v.BMICategory = BMICategory(r.Bmi.Float64)
	}
	if r.CreatedAt.Valid {
		v.CreatedAt = r.CreatedAt.Time.UTC().Format("2006-01-02T15:04:05Z")
	}
	if r.UpdatedAt.Valid {
		v.UpdatedAt = r.UpdatedAt.Time.UTC().Format("2006-01-02T15:04:05Z")
	}
	return v
}

func NewRecordViews(records []database.DailyRecord) []RecordView {
	views := make([]RecordView, 0, len(records))
	for _, r := range records {
		views = append(views, NewRecordView(r))
	}
	return views
}

// CalculateBMI returns weight / height(m)^2 rounded to one decimal.
func CalculateBMI(weightKg, heightCm float64) (float64, bool) {
	if weightKg <= 0 || heightCm <= 0 {
		return 0, false
	}
	h := heightCm / 100
	return math.Round(weightKg/(h*h)*10) / 10, true
}

// BMICategory uses the Chinese adult cut-offs (18.5 / 24 / 28).
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "underweight"
	case bmi < 24:
		return "normal"
	case bmi < 28:
		return "overweight"
	default:
		return "obese"
	}
}

var sleepQualities = map[string]bool{"": true, "good": true, "fair": true, "poor": true}

// Validate trims text fields in place and checks every range.
func (req *DailyRecordRequest) Validate() error {
	req.LogDate = strings.TrimSpace(req.LogDate)
	req.Breakfast = strings.TrimSpace(req.Breakfast)
	req.Lunch = strings.TrimSpace(req.Lunch)
	req.Dinner = strings.TrimSpace(req.Dinner)
	req.BowelStatus = strings.TrimSpace(req.BowelStatus)
	req.SleepQuality = strings.ToLower(strings.TrimSpace(req.SleepQuality))
	req.Notes = strings.TrimSpace(req.Notes)

	if req.LogDate == "" {
		return fmt.Errorf("log_date is required")
	}
	if _, err := utility.ParseDate(req.LogDate); err != nil {
		return fmt.Errorf("invalid log_date format. Use YYYY-MM-DD")
	}

	for _, meal := range []struct{ name, text string }{
		{"breakfast", req.Breakfast},
		{"lunch", req.Lunch},
		{"dinner", req.Dinner},
	} {
		if utf8.RuneCountInString(meal.text) > maxMealLength {
			return fmt.Errorf("%s must be at most %d characters", meal.name, maxMealLength)
		}
	}

	switch {
	case req.BowelCount < 0 || req.BowelCount > 10:
		return fmt.Errorf("bowel_count must be between 0 and 10")
	case utf8.RuneCountInString(req.BowelStatus) > maxBowelStatusLength:
		return fmt.Errorf("bowel_status must be at most %d characters", maxBowelStatusLength)
	case req.SleepHours < 0 || req.SleepHours > 24:
		return fmt.Errorf("sleep_hours must be between 0 and 24")
	case !sleepQualities[req.SleepQuality]:
		return fmt.Errorf("sleep_quality must be one of good, fair, poor")
	case req.SportMinutes < 0 || req.SportMinutes > 500:
		return fmt.Errorf("sport_minutes must be between 0 and 500")
	case req.WeightKg < 0 || req.WeightKg > 500:
		return fmt.Errorf("weight_kg must be between 0 and 500")
	case req.HeightCm != 0 && (req.HeightCm < 50 || req.HeightCm > 250):
		return fmt.Errorf("height_cm must be between 50 and 250")
	case req.BMI < 0 || req.BMI > 80:
		return fmt.Errorf("bmi must be between 0 and 80")
	case utf8.RuneCountInString(req.Notes) > maxNotesLength:
		return fmt.Errorf("notes must be at most %d characters", maxNotesLength)
	}
	return nil
}

// toParams builds the row for a validated request, estimating meal kcal and
// deriving BMI from weight and height when both are present.
func (req *DailyRecordRequest) toParams(patientCode string) (database.DailyRecordParams, error) {
	logDate, err := utility.ParseDate(req.LogDate)
	if err != nil {
		return database.DailyRecordParams{}, err
	}

	est := calorie.Default()
	var kcal [3]int32
	for i, meal := range []struct{ name, text string }{
		{"breakfast", req.Breakfast},
		{"lunch", req.Lunch},
		{"dinner", req.Dinner},
	} {
		total := est.Estimate(meal.text).TotalKcal
		if total > maxMealKcal {
			return database.DailyRecordParams{}, fmt.Errorf("%s is estimated above %d kcal, please check the quantities", meal.name, maxMealKcal)
		}
		kcal[i] = int32(total)
	}
	breakfastKcal, lunchKcal, dinnerKcal := kcal[0], kcal[1], kcal[2]

	params := database.DailyRecordParams{
		PatientCode:   patientCode,
		LogDate:       logDate,
		Breakfast:     req.Breakfast,
		Lunch:         req.Lunch,
		Dinner:        req.Dinner,
		BreakfastKcal: breakfastKcal,
		LunchKcal:     lunchKcal,
		DinnerKcal:    dinnerKcal,
		TotalKcal:     breakfastKcal + lunchKcal + dinnerKcal,
		BowelCount:    req.BowelCount,
		BowelStatus:   req.BowelStatus,
		SleepHours:    req.SleepHours,
		SleepQuality:  req.SleepQuality,
		SportMinutes:  req.SportMinutes,
		WeightKg:      req.WeightKg,
		Notes:         req.Notes,
	}

	if req.HeightCm > 0 {
		params.HeightCm = pgtype.Float8{Float64: req.HeightCm, Valid: true}
	}
	if bmi, ok := CalculateBMI(req.WeightKg, req.HeightCm); ok {
		params.Bmi = pgtype.Float8{Float64: bmi, Valid: true}
	} else if req.HeightCm == 0 && req.BMI > 0 {
		params.Bmi = pgtype.Float8{Float64: math.Round(req.BMI*10) / 10, Valid: true}
	}

	return params, nil
}
