package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createPatient = `
INSERT INTO patients (patient_code, remark)
VALUES ($1, $2)
RETURNING id, patient_code, remark, created_at
`

type CreatePatientParams struct {
	PatientCode string      `json:"patient_code"`
	Remark      pgtype.Text `json:"remark"`
}

func (q *Queries) CreatePatient(ctx context.Context, arg CreatePatientParams) (Patient, error) {
	row := q.db.QueryRow(ctx, createPatient, arg.PatientCode, arg.Remark)
	var i Patient
	err := row.Scan(
		&i.ID,
		&i.PatientCode,
		&i.Remark,
		&i.CreatedAt,
	)
	return i, err
}

const getPatientByCode = `
SELECT id, patient_code, remark, created_at
FROM patients
WHERE patient_code = $1
`

func (q *Queries) GetPatientByCode(ctx context.Context, patientCode string) (Patient, error) {
	row := q.db.QueryRow(ctx, getPatientByCode, patientCode)
	var i Patient
	err := row.Scan(
		&i.ID,
		&i.PatientCode,
		&i.Remark,
		&i.CreatedAt,
	)
	return i, err
}

const listPatients = `
SELECT id, patient_code, remark, created_at
FROM patients
ORDER BY created_at DESC
`

func (q *Queries) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := q.db.Query(ctx, listPatients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Patient{}
	for rows.Next() {
		var i Patient
		if err := rows.Scan(
			&i.ID,
			&i.PatientCode,
			&i.Remark,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updatePatientRemark = `
UPDATE patients
SET remark = $2
WHERE patient_code = $1
RETURNING id, patient_code, remark, created_at
`

type UpdatePatientRemarkParams struct {
	PatientCode string      `json:"patient_code"`
	Remark      pgtype.Text `json:"remark"`
}

func (q *Queries) UpdatePatientRemark(ctx context.Context, arg UpdatePatientRemarkParams) (Patient, error) {
	row := q.db.QueryRow(ctx, updatePatientRemark, arg.PatientCode, arg.Remark)
	var i Patient
	err := row.Scan(
		&i.ID,
		&i.PatientCode,
		&i.Remark,
		&i.CreatedAt,
	)
	return i, err
}

const listPatientSummaries = `
SELECT p.patient_code, p.remark, p.created_at,
       COUNT(r.id) AS record_count,
       MAX(r.log_date) AS last_log_date,
       latest.weight_kg AS latest_weight_kg,
       latest.bmi AS latest_bmi
FROM patients p
LEFT JOIN daily_records r ON r.patient_code = p.patient_code
LEFT JOIN LATERAL (
    SELECT weight_kg, bmi
    FROM daily_records d
    WHERE d.patient_code = p.patient_code
    ORDER BY d.log_date DESC
    LIMIT 1
) latest ON TRUE
GROUP BY p.patient_code, p.remark, p.created_at, latest.weight_kg, latest.bmi
ORDER BY p.created_at DESC
`

type ListPatientSummariesRow struct {
	PatientCode    string             `json:"patient_code"`
	Remark         pgtype.Text        `json:"remark"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	RecordCount    int64              `json:"record_count"`
	LastLogDate    pgtype.Date        `json:"last_log_date"`
	LatestWeightKg pgtype.Float8      `json:"latest_weight_kg"`
	LatestBmi      pgtype.Float8      `json:"latest_bmi"`
}

func (q *Queries) ListPatientSummaries(ctx context.Context) ([]ListPatientSummariesRow, error) {
	rows, err := q.db.Query(ctx, listPatientSummaries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListPatientSummariesRow{}
	for rows.Next() {
		var i ListPatientSummariesRow
		if err := rows.Scan(
			&i.PatientCode,
			&i.Remark,
			&i.CreatedAt,
			&i.RecordCount,
			&i.LastLogDate,
			&i.LatestWeightKg,
			&i.LatestBmi,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
