package repository

import (
	"context"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

// PatientTable selects which patient set a listing reads.
type PatientTable string

const (
	PatientTableCurrent PatientTable = "current"
	PatientTableArchive PatientTable = "archive"
)

// PatientsRepository is the patient-record collaborator consumed by the core
// as the source of truth for "does this patient identifier exist".
type PatientsRepository interface {
	ListPatients(ctx context.Context, table PatientTable) ([]*domain.Patient, error)

	GetPatient(ctx context.Context, patientID string) (*domain.Patient, error)

	// EnrollPatient rejects with domain.ErrConflict when the ID exists in
	// either the active or archived set.
	EnrollPatient(ctx context.Context, p *domain.Patient) error

	EditPatient(ctx context.Context, p *domain.Patient) error

	// ArchivePatient copies the row into the archive table and deletes the
	// active row, as one transaction (copy-then-delete, never in place).
	ArchivePatient(ctx context.Context, patientID string) error
}
