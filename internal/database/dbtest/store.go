// Package dbtest provides an in-memory database.Querier for handler tests.
package dbtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"Lifelog/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Store keeps patients and daily records in memory. Err, when set, is
// returned by every call.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	patients map[string]database.Patient
	records  map[string]database.DailyRecord

	Err error
}

func New() *Store {
	return &Store{
		patients: make(map[string]database.Patient),
		records:  make(map[string]database.DailyRecord),
	}
}

var _ database.Querier = (*Store)(nil)

func recordKey(code string, d pgtype.Date) string {
	return code + "|" + d.Time.Format("2006-01-02")
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// AddPatient seeds a patient code.
func (s *Store) AddPatient(code, remark string, createdAt time.Time) database.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p := database.Patient{
		ID:          s.nextID,
		PatientCode: code,
		Remark:      pgtype.Text{String: remark, Valid: remark != ""},
		CreatedAt:   pgtype.Timestamptz{Time: createdAt, Valid: true},
	}
	s.patients[code] = p
	return p
}

func (s *Store) CreatePatient(ctx context.Context, arg database.CreatePatientParams) (database.Patient, error) {
	if s.Err != nil {
		return database.Patient{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[arg.PatientCode]; ok {
		return database.Patient{}, uniqueViolation("patients_patient_code_key")
	}
	s.nextID++
	p := database.Patient{
		ID:          s.nextID,
		PatientCode: arg.PatientCode,
		Remark:      arg.Remark,
		CreatedAt:   pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	s.patients[arg.PatientCode] = p
	return p, nil
}

func (s *Store) GetPatientByCode(ctx context.Context, patientCode string) (database.Patient, error) {
	if s.Err != nil {
		return database.Patient{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[patientCode]
	if !ok {
		return database.Patient{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *Store) ListPatients(ctx context.Context) ([]database.Patient, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]database.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Time.Equal(out[j].CreatedAt.Time) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.Time.After(out[j].CreatedAt.Time)
	})
	return out, nil
}

func (s *Store) UpdatePatientRemark(ctx context.Context, arg database.UpdatePatientRemarkParams) (database.Patient, error) {
	if s.Err != nil {
		return database.Patient{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[arg.PatientCode]
	if !ok {
		return database.Patient{}, pgx.ErrNoRows
	}
	p.Remark = arg.Remark
	s.patients[arg.PatientCode] = p
	return p, nil
}

func (s *Store) ListPatientSummaries(ctx context.Context) ([]database.ListPatientSummariesRow, error) {
	patients, err := s.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]database.ListPatientSummariesRow, 0, len(patients))
	for _, p := range patients {
		row := database.ListPatientSummariesRow{
			PatientCode: p.PatientCode,
			Remark:      p.Remark,
			CreatedAt:   p.CreatedAt,
		}
		for _, r := range s.records {
			if r.PatientCode != p.PatientCode {
				continue
			}
			row.RecordCount++
			if !row.LastLogDate.Valid || r.LogDate.Time.After(row.LastLogDate.Time) {
				row.LastLogDate = r.LogDate
				row.LatestWeightKg = pgtype.Float8{Float64: r.WeightKg, Valid: true}
				row.LatestBmi = r.Bmi
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) CreateDailyRecord(ctx context.Context, arg database.DailyRecordParams) (database.DailyRecord, error) {
	if s.Err != nil {
		return database.DailyRecord{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[arg.PatientCode]; !ok {
		return database.DailyRecord{}, &pgconn.PgError{Code: "23503"}
	}
	key := recordKey(arg.PatientCode, arg.LogDate)
	if _, ok := s.records[key]; ok {
		return database.DailyRecord{}, uniqueViolation("unique_patient_log_date")
	}
	s.nextID++
	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	r := fromParams(arg)
	r.ID = s.nextID
	r.CreatedAt = now
	r.UpdatedAt = now
	s.records[key] = r
	return r, nil
}

func (s *Store) UpdateDailyRecord(ctx context.Context, arg database.DailyRecordParams) (database.DailyRecord, error) {
	if s.Err != nil {
		return database.DailyRecord{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(arg.PatientCode, arg.LogDate)
	existing, ok := s.records[key]
	if !ok {
		return database.DailyRecord{}, pgx.ErrNoRows
	}
	r := fromParams(arg)
	r.ID = existing.ID
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	s.records[key] = r
	return r, nil
}

func (s *Store) GetDailyRecord(ctx context.Context, arg database.DailyRecordKey) (database.DailyRecord, error) {
	if s.Err != nil {
		return database.DailyRecord{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordKey(arg.PatientCode, arg.LogDate)]
	if !ok {
		return database.DailyRecord{}, pgx.ErrNoRows
	}
	return r, nil
}

func (s *Store) DeleteDailyRecord(ctx context.Context, arg database.DailyRecordKey) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(arg.PatientCode, arg.LogDate)
	if _, ok := s.records[key]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.records, key)
	return nil
}

func (s *Store) ListPatientRecords(ctx context.Context, patientCode string) ([]database.DailyRecord, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []database.DailyRecord{}
	for _, r := range s.records {
		if r.PatientCode == patientCode {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogDate.Time.Before(out[j].LogDate.Time) })
	return out, nil
}

func (s *Store) SearchDailyRecords(ctx context.Context, arg database.SearchDailyRecordsParams) ([]database.DailyRecord, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []database.DailyRecord{}
	for _, r := range s.records {
		if arg.PatientCode.Valid && r.PatientCode != arg.PatientCode.String {
			continue
		}
		if arg.StartDate.Valid && r.LogDate.Time.Before(arg.StartDate.Time) {
			continue
		}
		if arg.EndDate.Valid && r.LogDate.Time.After(arg.EndDate.Time) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LogDate.Time.Equal(out[j].LogDate.Time) {
			return out[i].PatientCode < out[j].PatientCode
		}
		return out[i].LogDate.Time.After(out[j].LogDate.Time)
	})
	return out, nil
}

func (s *Store) GetDashboardStats(ctx context.Context, today pgtype.Date) (database.GetDashboardStatsRow, error) {
	if s.Err != nil {
		return database.GetDashboardStatsRow{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row := database.GetDashboardStatsRow{
		TotalPatients: int64(len(s.patients)),
		TotalRecords:  int64(len(s.records)),
	}
	weekAgo := today.Time.AddDate(0, 0, -7)
	active := make(map[string]struct{})
	for _, r := range s.records {
		if r.LogDate.Time.Equal(today.Time) {
			row.RecordsToday++
		}
		if r.LogDate.Time.After(weekAgo) {
			active[r.PatientCode] = struct{}{}
		}
	}
	row.ActivePatients = int64(len(active))
	return row, nil
}

func (s *Store) GetDatabaseStatus(ctx context.Context) (int32, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return 1, nil
}

func fromParams(arg database.DailyRecordParams) database.DailyRecord {
	return database.DailyRecord{
		PatientCode:   arg.PatientCode,
		LogDate:       arg.LogDate,
		Breakfast:     arg.Breakfast,
		Lunch:         arg.Lunch,
		Dinner:        arg.Dinner,
		BreakfastKcal: arg.BreakfastKcal,
		LunchKcal:     arg.LunchKcal,
		DinnerKcal:    arg.DinnerKcal,
		TotalKcal:     arg.TotalKcal,
		BowelCount:    arg.BowelCount,
		BowelStatus:   arg.BowelStatus,
		SleepHours:    arg.SleepHours,
		SleepQuality:  arg.SleepQuality,
		SportMinutes:  arg.SportMinutes,
		WeightKg:      arg.WeightKg,
		HeightCm:      arg.HeightCm,
		Bmi:           arg.Bmi,
		Notes:         arg.Notes,
	}
}
