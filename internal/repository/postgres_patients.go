package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

// PostgresPatientsRepo implements PatientsRepository on the patients and
// patients_archive tables.
type PostgresPatientsRepo struct {
	db *sql.DB
}

func NewPostgresPatientsRepo(db *sql.DB) *PostgresPatientsRepo {
	return &PostgresPatientsRepo{db: db}
}

func (r *PostgresPatientsRepo) ListPatients(ctx context.Context, table PatientTable) ([]*domain.Patient, error) {
	tbl := "patients"
	if table == PatientTableArchive {
		tbl = "patients_archive"
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT patient_id, patient_name, patient_sex, patient_age, patient_tag FROM `+tbl+` ORDER BY patient_id`)
	if err != nil {
		return nil, domain.NewStorageError("list patients", err)
	}
	defer rows.Close()

	out := []*domain.Patient{}
	for rows.Next() {
		var p domain.Patient
		if err := rows.Scan(&p.PatientID, &p.Name, &p.Sex, &p.Age, &p.Tag); err != nil {
			return nil, domain.NewStorageError("scan patient", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list patients", err)
	}
	return out, nil
}

func (r *PostgresPatientsRepo) GetPatient(ctx context.Context, patientID string) (*domain.Patient, error) {
	var p domain.Patient
	err := r.db.QueryRowContext(ctx,
		`SELECT patient_id, patient_name, patient_sex, patient_age, patient_tag FROM patients WHERE patient_id = $1`,
		patientID,
	).Scan(&p.PatientID, &p.Name, &p.Sex, &p.Age, &p.Tag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get patient", err)
	}
	return &p, nil
}

func (r *PostgresPatientsRepo) EnrollPatient(ctx context.Context, p *domain.Patient) error {
	// Uniqueness spans active and archived patients.
	var existing string
	err := r.db.QueryRowContext(ctx, `
		SELECT patient_id FROM patients WHERE patient_id = $1
		UNION
		SELECT patient_id FROM patients_archive WHERE patient_id = $1`,
		p.PatientID,
	).Scan(&existing)
	if err == nil {
		return domain.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.NewStorageError("check patient id", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO patients (patient_id, patient_name, patient_sex, patient_age, patient_tag)
		VALUES ($1, $2, $3, $4, $5)`,
		p.PatientID, p.Name, p.Sex, p.Age, p.Tag,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return domain.NewStorageError("enroll patient", err)
	}
	return nil
}

func (r *PostgresPatientsRepo) EditPatient(ctx context.Context, p *domain.Patient) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE patients
		SET patient_name = $1, patient_sex = $2, patient_age = $3, patient_tag = $4
		WHERE patient_id = $5`,
		p.Name, p.Sex, p.Age, p.Tag, p.PatientID,
	)
	if err != nil {
		return domain.NewStorageError("edit patient", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresPatientsRepo) ArchivePatient(ctx context.Context, patientID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("begin archive", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO patients_archive
		SELECT * FROM patients WHERE patient_id = $1`,
		patientID,
	)
	if err != nil {
		return domain.NewStorageError("copy to archive", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM patients WHERE patient_id = $1`, patientID,
	); err != nil {
		return domain.NewStorageError("delete archived patient", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("commit archive", err)
	}
	return nil
}
