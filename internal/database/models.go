package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Patient struct {
	ID          int64              `json:"id"`
	PatientCode string             `json:"patient_code"`
	Remark      pgtype.Text        `json:"remark"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

type DailyRecord struct {
	ID            int64              `json:"id"`
	PatientCode   string             `json:"patient_code"`
	LogDate       pgtype.Date        `json:"log_date"`
	Breakfast     string             `json:"breakfast"`
	Lunch         string             `json:"lunch"`
	Dinner        string             `json:"dinner"`
	BreakfastKcal int32              `json:"breakfast_kcal"`
	LunchKcal     int32              `json:"lunch_kcal"`
	DinnerKcal    int32              `json:"dinner_kcal"`
	TotalKcal     int32              `json:"total_kcal"`
	BowelCount    int32              `json:"bowel_count"`
	BowelStatus   string             `json:"bowel_status"`
	SleepHours    float64            `json:"sleep_hours"`
	SleepQuality  string             `json:"sleep_quality"`
	SportMinutes  int32              `json:"sport_minutes"`
	WeightKg      float64            `json:"weight_kg"`
	HeightCm      pgtype.Float8      `json:"height_cm"`
	Bmi           pgtype.Float8      `json:"bmi"`
	Notes         string             `json:"notes"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
}
