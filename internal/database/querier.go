package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is the query surface the handler packages depend on.
type Querier interface {
	CreatePatient(ctx context.Context, arg CreatePatientParams) (Patient, error)
	GetPatientByCode(ctx context.Context, patientCode string) (Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	UpdatePatientRemark(ctx context.Context, arg UpdatePatientRemarkParams) (Patient, error)
	ListPatientSummaries(ctx context.Context) ([]ListPatientSummariesRow, error)

	CreateDailyRecord(ctx context.Context, arg DailyRecordParams) (DailyRecord, error)
	UpdateDailyRecord(ctx context.Context, arg DailyRecordParams) (DailyRecord, error)
	GetDailyRecord(ctx context.Context, arg DailyRecordKey) (DailyRecord, error)
	DeleteDailyRecord(ctx context.Context, arg DailyRecordKey) error
	ListPatientRecords(ctx context.Context, patientCode string) ([]DailyRecord, error)
	SearchDailyRecords(ctx context.Context, arg SearchDailyRecordsParams) ([]DailyRecord, error)

	GetDashboardStats(ctx context.Context, today pgtype.Date) (GetDashboardStatsRow, error)
	GetDatabaseStatus(ctx context.Context) (int32, error)
}

var _ Querier = (*Queries)(nil)
