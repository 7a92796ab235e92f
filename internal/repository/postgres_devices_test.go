package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

func setupDevicesMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresDevicesRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresDevicesRepo(db)
}

func TestResolveAssignment_Assigned(t *testing.T) {
	db, mock, repo := setupDevicesMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"assigned_patient_id", "assigned_patient_name"}).
		AddRow("P1", "Jane Doe")
	mock.ExpectQuery(`SELECT assigned_patient_id, assigned_patient_name`).
		WithArgs("ST-07").
		WillReturnRows(rows)

	a, err := repo.ResolveAssignment(context.Background(), "ST-07")
	require.NoError(t, err)
	assert.Equal(t, "P1", a.PatientID)
	assert.Equal(t, "Jane Doe", a.PatientName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveAssignment_PlaceholderHolderIsUnassigned(t *testing.T) {
	db, mock, repo := setupDevicesMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"assigned_patient_id", "assigned_patient_name"}).
		AddRow("None", "None")
	mock.ExpectQuery(`SELECT assigned_patient_id, assigned_patient_name`).
		WithArgs("ST-07").
		WillReturnRows(rows)

	_, err := repo.ResolveAssignment(context.Background(), "ST-07")
	require.ErrorIs(t, err, domain.ErrUnassigned)
}

func TestResolveAssignment_UnknownDeviceIsUnassigned(t *testing.T) {
	db, mock, repo := setupDevicesMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT assigned_patient_id, assigned_patient_name`).
		WithArgs("ST-99").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ResolveAssignment(context.Background(), "ST-99")
	require.ErrorIs(t, err, domain.ErrUnassigned)
}

func TestSwap_ClearsOldHolderBeforeAssigningInOneTx(t *testing.T) {
	db, mock, repo := setupDevicesMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE registered_devices\s+SET assigned_patient_id = \$1, assigned_patient_name = \$1`).
		WithArgs(domain.UnassignedMarker, "ST-07").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE registered_devices\s+SET assigned_patient_id = \$1, assigned_patient_name = \$2`).
		WithArgs("P1", "Jane Doe", "ST-08").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Swap(context.Background(), "ST-07", "ST-08", "P1", "Jane Doe")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSwap_NoOldDeviceSkipsClear(t *testing.T) {
	db, mock, repo := setupDevicesMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE registered_devices`).
		WithArgs("P1", "Jane Doe", "ST-08").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Swap(context.Background(), domain.UnassignedMarker, "ST-08", "P1", "Jane Doe"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSwap_UnknownNewDevice(t *testing.T) {
	db, mock, repo := setupDevicesMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE registered_devices`).
		WithArgs("P1", "Jane Doe", "ST-99").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Swap(context.Background(), "", "ST-99", "P1", "Jane Doe")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateBattery_OnlyTouchesChangedRows(t *testing.T) {
	db, mock, repo := setupDevicesMock(t)
	defer db.Close()

	mock.ExpectExec(`battery IS DISTINCT FROM`).
		WithArgs(85, "ST-07").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateBattery(context.Background(), "ST-07", 85))

	// same value again: the guard matches zero rows, still no error
	mock.ExpectExec(`battery IS DISTINCT FROM`).
		WithArgs(85, "ST-07").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateBattery(context.Background(), "ST-07", 85))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDevice_Conflict(t *testing.T) {
	db, mock, repo := setupDevicesMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"device_id"}).AddRow("ST-07")
	mock.ExpectQuery(`SELECT device_id FROM registered_devices`).
		WithArgs("ST-07").
		WillReturnRows(rows)

	err := repo.RegisterDevice(context.Background(), "wrist", "ST-07")
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegisterDevice_ConcurrentDuplicate(t *testing.T) {
	db, mock, repo := setupDevicesMock(t)
	defer db.Close()

	// a racing registration slips past the pre-insert check and loses on the
	// primary key instead; still a conflict, not a transient fault
	mock.ExpectQuery(`SELECT device_id FROM registered_devices`).
		WithArgs("ST-07").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO registered_devices`).
		WithArgs("wrist", "ST-07", domain.UnassignedMarker).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.RegisterDevice(context.Background(), "wrist", "ST-07")
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.False(t, domain.IsStorageError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
