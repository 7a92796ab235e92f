package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation, raised when a concurrent insert wins a duplicate race the
// pre-insert check did not see.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// PostgresDevicesRepo implements DevicesRepository on the registered_devices
// table.
type PostgresDevicesRepo struct {
	db *sql.DB
}

func NewPostgresDevicesRepo(db *sql.DB) *PostgresDevicesRepo {
	return &PostgresDevicesRepo{db: db}
}

func (r *PostgresDevicesRepo) ResolveAssignment(ctx context.Context, deviceID string) (*domain.Assignment, error) {
	q := `
		SELECT assigned_patient_id, assigned_patient_name
		FROM registered_devices
		WHERE device_id = $1`
	var a domain.Assignment
	err := r.db.QueryRowContext(ctx, q, deviceID).Scan(&a.PatientID, &a.PatientName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUnassigned
	}
	if err != nil {
		return nil, domain.NewStorageError("resolve assignment", err)
	}
	d := domain.Device{AssignedPatientID: a.PatientID, AssignedPatientName: a.PatientName}
	if !d.Assigned() {
		return nil, domain.ErrUnassigned
	}
	return &a, nil
}

func (r *PostgresDevicesRepo) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	q := `
		SELECT device_type, device_id, assigned_patient_id, assigned_patient_name, last_assignment, battery
		FROM registered_devices
		ORDER BY device_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, domain.NewStorageError("list devices", err)
	}
	defer rows.Close()

	out := []*domain.Device{}
	for rows.Next() {
		var d domain.Device
		if err := rows.Scan(
			&d.DeviceType,
			&d.DeviceID,
			&d.AssignedPatientID,
			&d.AssignedPatientName,
			&d.LastAssignment,
			&d.Battery,
		); err != nil {
			return nil, domain.NewStorageError("scan device", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list devices", err)
	}
	return out, nil
}

func (r *PostgresDevicesRepo) RegisterDevice(ctx context.Context, deviceType, deviceID string) error {
	var existing string
	err := r.db.QueryRowContext(ctx,
		`SELECT device_id FROM registered_devices WHERE device_id = $1`, deviceID,
	).Scan(&existing)
	if err == nil {
		return domain.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.NewStorageError("check device id", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO registered_devices
			(device_type, device_id, assigned_patient_id, assigned_patient_name, last_assignment, battery)
		VALUES ($1, $2, $3, $3, NOW(), 100)`,
		deviceType, deviceID, domain.UnassignedMarker,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return domain.NewStorageError("register device", err)
	}
	return nil
}

func (r *PostgresDevicesRepo) RemoveDevice(ctx context.Context, deviceID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM registered_devices WHERE device_id = $1`, deviceID)
	if err != nil {
		return domain.NewStorageError("remove device", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Swap clears the old holder before assigning the new device; both updates
// ride one transaction so a crash between them never leaves two devices
// mapped to the patient, and a reader never sees the device double-assigned.
func (r *PostgresDevicesRepo) Swap(ctx context.Context, oldDeviceID, newDeviceID, patientID, patientName string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("begin swap", err)
	}
	defer tx.Rollback()

	if oldDeviceID != "" && oldDeviceID != domain.UnassignedMarker {
		if _, err := tx.ExecContext(ctx, `
			UPDATE registered_devices
			SET assigned_patient_id = $1, assigned_patient_name = $1
			WHERE device_id = $2`,
			domain.UnassignedMarker, oldDeviceID,
		); err != nil {
			return domain.NewStorageError("clear old assignment", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE registered_devices
		SET assigned_patient_id = $1, assigned_patient_name = $2, last_assignment = NOW()
		WHERE device_id = $3`,
		patientID, patientName, newDeviceID,
	)
	if err != nil {
		return domain.NewStorageError("assign device", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("commit swap", err)
	}
	return nil
}

func (r *PostgresDevicesRepo) Unassign(ctx context.Context, deviceID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE registered_devices
		SET assigned_patient_id = $1, assigned_patient_name = $1
		WHERE device_id = $2`,
		domain.UnassignedMarker, deviceID,
	)
	if err != nil {
		return domain.NewStorageError("unassign device", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateBattery only touches rows whose stored level differs, so the
// reconciliation job's repeated writes of an unchanged value do not churn
// the table.
func (r *PostgresDevicesRepo) UpdateBattery(ctx context.Context, deviceID string, level int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE registered_devices
		SET battery = $1
		WHERE device_id = $2 AND battery IS DISTINCT FROM $1`,
		level, deviceID,
	)
	if err != nil {
		return domain.NewStorageError("update battery", err)
	}
	return nil
}

func (r *PostgresDevicesRepo) GetAssignmentByPatient(ctx context.Context, patientID string) (*PatientAssignmentInfo, error) {
	q := `
		SELECT p.patient_name, COALESCE(d.device_id, ''), COALESCE(d.device_type, '')
		FROM patients p
		LEFT JOIN registered_devices d ON d.assigned_patient_id = p.patient_id
		WHERE p.patient_id = $1`
	var info PatientAssignmentInfo
	err := r.db.QueryRowContext(ctx, q, patientID).Scan(&info.PatientName, &info.DeviceID, &info.DeviceType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get assignment by patient", err)
	}
	if info.DeviceID == "" {
		info.DeviceID = domain.UnassignedMarker
		info.DeviceType = domain.UnassignedMarker
	}
	return &info, nil
}
