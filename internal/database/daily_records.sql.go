package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const dailyRecordCols = `id, patient_code, log_date, breakfast, lunch, dinner,
	breakfast_kcal, lunch_kcal, dinner_kcal, total_kcal,
	bowel_count, bowel_status, sleep_hours, sleep_quality, sport_minutes,
	weight_kg, height_cm, bmi, notes, created_at, updated_at`

func scanDailyRecord(row pgx.Row) (DailyRecord, error) {
	var i DailyRecord
	err := row.Scan(
		&i.ID,
		&i.PatientCode,
		&i.LogDate,
		&i.Breakfast,
		&i.Lunch,
		&i.Dinner,
		&i.BreakfastKcal,
		&i.LunchKcal,
		&i.DinnerKcal,
		&i.TotalKcal,
		&i.BowelCount,
		&i.BowelStatus,
		&i.SleepHours,
		&i.SleepQuality,
		&i.SportMinutes,
		&i.WeightKg,
		&i.HeightCm,
		&i.Bmi,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectDailyRecords(rows pgx.Rows, err error) ([]DailyRecord, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DailyRecord{}
	for rows.Next() {
		i, err := scanDailyRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// DailyRecordParams carries every writable column of a daily record.
type DailyRecordParams struct {
	PatientCode   string        `json:"patient_code"`
	LogDate       pgtype.Date   `json:"log_date"`
	Breakfast     string        `json:"breakfast"`
	Lunch         string        `json:"lunch"`
	Dinner        string        `json:"dinner"`
	BreakfastKcal int32         `json:"breakfast_kcal"`
	LunchKcal     int32         `json:"lunch_kcal"`
	DinnerKcal    int32         `json:"dinner_kcal"`
	TotalKcal     int32         `json:"total_kcal"`
	BowelCount    int32         `json:"bowel_count"`
	BowelStatus   string        `json:"bowel_status"`
	SleepHours    float64       `json:"sleep_hours"`
	SleepQuality  string        `json:"sleep_quality"`
	SportMinutes  int32         `json:"sport_minutes"`
	WeightKg      float64       `json:"weight_kg"`
	HeightCm      pgtype.Float8 `json:"height_cm"`
	Bmi           pgtype.Float8 `json:"bmi"`
	Notes         string        `json:"notes"`
}

func (arg DailyRecordParams) args() []interface{} {
	return []interface{}{
		arg.PatientCode,
		arg.LogDate,
		arg.Breakfast,
		arg.Lunch,
		arg.Dinner,
		arg.BreakfastKcal,
		arg.LunchKcal,
		arg.DinnerKcal,
		arg.TotalKcal,
		arg.BowelCount,
		arg.BowelStatus,
		arg.SleepHours,
		arg.SleepQuality,
		arg.SportMinutes,
		arg.WeightKg,
		arg.HeightCm,
		arg.Bmi,
		arg.Notes,
	}
}

const createDailyRecord = `
INSERT INTO daily_records (
    patient_code, log_date, breakfast, lunch, dinner,
    breakfast_kcal, lunch_kcal, dinner_kcal, total_kcal,
    bowel_count, bowel_status, sleep_hours, sleep_quality, sport_minutes,
    weight_kg, height_cm, bmi, notes
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING ` + dailyRecordCols

func (q *Queries) CreateDailyRecord(ctx context.Context, arg DailyRecordParams) (DailyRecord, error) {
	return scanDailyRecord(q.db.QueryRow(ctx, createDailyRecord, arg.args()...))
}

const updateDailyRecord = `
UPDATE daily_records SET
    breakfast = $3, lunch = $4, dinner = $5,
    breakfast_kcal = $6, lunch_kcal = $7, dinner_kcal = $8, total_kcal = $9,
    bowel_count = $10, bowel_status = $11, sleep_hours = $12, sleep_quality = $13,
    sport_minutes = $14, weight_kg = $15, height_cm = $16, bmi = $17, notes = $18,
    updated_at = NOW()
WHERE patient_code = $1 AND log_date = $2
RETURNING ` + dailyRecordCols

func (q *Queries) UpdateDailyRecord(ctx context.Context, arg DailyRecordParams) (DailyRecord, error) {
	return scanDailyRecord(q.db.QueryRow(ctx, updateDailyRecord, arg.args()...))
}

type DailyRecordKey struct {
	PatientCode string      `json:"patient_code"`
	LogDate     pgtype.Date `json:"log_date"`
}

const getDailyRecord = `
SELECT ` + dailyRecordCols + `
FROM daily_records
WHERE patient_code = $1 AND log_date = $2
`

func (q *Queries) GetDailyRecord(ctx context.Context, arg DailyRecordKey) (DailyRecord, error) {
	return scanDailyRecord(q.db.QueryRow(ctx, getDailyRecord, arg.PatientCode, arg.LogDate))
}

const deleteDailyRecord = `
DELETE FROM daily_records
WHERE patient_code = $1 AND log_date = $2
`

// DeleteDailyRecord returns pgx.ErrNoRows when nothing was deleted.
func (q *Queries) DeleteDailyRecord(ctx context.Context, arg DailyRecordKey) error {
	tag, err := q.db.Exec(ctx, deleteDailyRecord, arg.PatientCode, arg.LogDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const listPatientRecords = `
SELECT ` + dailyRecordCols + `
FROM daily_records
WHERE patient_code = $1
ORDER BY log_date ASC
`

func (q *Queries) ListPatientRecords(ctx context.Context, patientCode string) ([]DailyRecord, error) {
	return collectDailyRecords(q.db.Query(ctx, listPatientRecords, patientCode))
}

const searchDailyRecords = `
SELECT ` + dailyRecordCols + `
FROM daily_records
WHERE ($1::text IS NULL OR patient_code = $1)
  AND ($2::date IS NULL OR log_date >= $2)
  AND ($3::date IS NULL OR log_date <= $3)
ORDER BY log_date DESC, patient_code ASC
`

type SearchDailyRecordsParams struct {
	PatientCode pgtype.Text `json:"patient_code"`
	StartDate   pgtype.Date `json:"start_date"`
	EndDate     pgtype.Date `json:"end_date"`
}

func (q *Queries) SearchDailyRecords(ctx context.Context, arg SearchDailyRecordsParams) ([]DailyRecord, error) {
	return collectDailyRecords(q.db.Query(ctx, searchDailyRecords, arg.PatientCode, arg.StartDate, arg.EndDate))
}

const getDashboardStats = `
SELECT
    (SELECT COUNT(*) FROM patients) AS total_patients,
    (SELECT COUNT(*) FROM daily_records) AS total_records,
    (SELECT COUNT(*) FROM daily_records WHERE log_date = $1) AS records_today,
    (SELECT COUNT(DISTINCT patient_code) FROM daily_records WHERE log_date > $1::date - 7) AS active_patients
`

type GetDashboardStatsRow struct {
	TotalPatients  int64 `json:"total_patients"`
	TotalRecords   int64 `json:"total_records"`
	RecordsToday   int64 `json:"records_today"`
	ActivePatients int64 `json:"active_patients"`
}

func (q *Queries) GetDashboardStats(ctx context.Context, today pgtype.Date) (GetDashboardStatsRow, error) {
	row := q.db.QueryRow(ctx, getDashboardStats, today)
	var i GetDashboardStatsRow
	err := row.Scan(
		&i.TotalPatients,
		&i.TotalRecords,
		&i.RecordsToday,
		&i.ActivePatients,
	)
	return i, err
}

const getDatabaseStatus = `SELECT 1`

func (q *Queries) GetDatabaseStatus(ctx context.Context) (int32, error) {
	row := q.db.QueryRow(ctx, getDatabaseStatus)
	var column_1 int32
	err := row.Scan(&column_1)
	return column_1, err
}
