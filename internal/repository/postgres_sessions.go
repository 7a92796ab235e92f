package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

// PostgresSessionStore implements SessionStore on the patient_readings
// table. The BIGSERIAL id carries arrival order; the export transaction
// deletes only ids up to the last exported row, so an append racing the
// export starts the next session instead of vanishing.
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

func (s *PostgresSessionStore) Append(ctx context.Context, patientID, patientName string, r *domain.Reading) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patient_readings
			(patient_id, patient_name, recorded_at, device_id,
			 acc_x, acc_y, acc_z, gyro_x, gyro_y, gyro_z, hr, presence, battery)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		patientID, patientName, r.Timestamp, r.DeviceID,
		r.AccX, r.AccY, r.AccZ, r.GyroX, r.GyroY, r.GyroZ, r.HR, r.Presence, r.Battery,
	)
	if err != nil {
		return domain.NewStorageError("append reading", err)
	}
	return nil
}

func (s *PostgresSessionStore) ListSessions(ctx context.Context) ([]*domain.SessionInfo, error) {
	// Row size = 19-byte timestamp + 10 field values + 10 commas + newline;
	// matches the unquoted CSV the export produces.
	rows, err := s.db.QueryContext(ctx, `
		SELECT patient_id, MIN(patient_name), MIN(recorded_at),
		       SUM(30 + octet_length(device_id)
		              + octet_length(acc_x) + octet_length(acc_y) + octet_length(acc_z)
		              + octet_length(gyro_x) + octet_length(gyro_y) + octet_length(gyro_z)
		              + octet_length(hr) + octet_length(presence) + octet_length(battery))
		FROM patient_readings
		GROUP BY patient_id
		ORDER BY patient_id`)
	if err != nil {
		return nil, domain.NewStorageError("list sessions", err)
	}
	defer rows.Close()

	out := []*domain.SessionInfo{}
	for rows.Next() {
		var (
			patientID   string
			patientName string
			createdAt   time.Time
			bodyBytes   int64
		)
		if err := rows.Scan(&patientID, &patientName, &createdAt, &bodyBytes); err != nil {
			return nil, domain.NewStorageError("scan session", err)
		}
		out = append(out, &domain.SessionInfo{
			Name:      domain.SessionName(patientID, patientName),
			SizeBytes: int64(len(sessionHeaderBytes)) + bodyBytes,
			CreatedAt: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list sessions", err)
	}
	return out, nil
}

var sessionHeaderBytes = func() []byte {
	b, _ := encodeSessionCSV(nil)
	return b
}()

func (s *PostgresSessionStore) ExportAndPurge(ctx context.Context, sessionName string) ([]byte, error) {
	patientID, err := domain.PatientIDFromSessionName(sessionName)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.NewStorageError("begin export", err)
	}
	defer tx.Rollback()

	// FOR UPDATE serializes concurrent exports of one session: the loser's
	// select waits on the winner's row locks and re-reads after the purge
	// commits, finding nothing.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, recorded_at, device_id,
		       acc_x, acc_y, acc_z, gyro_x, gyro_y, gyro_z, hr, presence, battery
		FROM patient_readings
		WHERE patient_id = $1
		ORDER BY id
		FOR UPDATE`,
		patientID,
	)
	if err != nil {
		return nil, domain.NewStorageError("select session", err)
	}

	var (
		readings []*domain.Reading
		lastID   int64
	)
	for rows.Next() {
		var (
			id int64
			ts time.Time
			r  domain.Reading
		)
		if err := rows.Scan(&id, &ts, &r.DeviceID,
			&r.AccX, &r.AccY, &r.AccZ, &r.GyroX, &r.GyroY, &r.GyroZ,
			&r.HR, &r.Presence, &r.Battery,
		); err != nil {
			rows.Close()
			return nil, domain.NewStorageError("scan reading", err)
		}
		r.Timestamp = ts
		readings = append(readings, &r)
		lastID = id
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, domain.NewStorageError("select session", err)
	}
	rows.Close()

	if len(readings) == 0 {
		return nil, domain.ErrNotFound
	}

	data, err := encodeSessionCSV(readings)
	if err != nil {
		return nil, domain.NewStorageError("encode session", err)
	}

	// Purge only what was exported; rows inserted after lastID stay for the
	// next session.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM patient_readings WHERE patient_id = $1 AND id <= $2`,
		patientID, lastID,
	); err != nil {
		return nil, domain.NewStorageError("purge session", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.NewStorageError("commit export", err)
	}
	return data, nil
}

func (s *PostgresSessionStore) LatestByDevice(ctx context.Context) (map[string]*domain.Reading, error) {
	// DISTINCT ON with id DESC picks the most recently written row per
	// device, which also settles one-second timestamp ties by arrival.
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (device_id)
		       device_id, recorded_at,
		       acc_x, acc_y, acc_z, gyro_x, gyro_y, gyro_z, hr, presence, battery
		FROM patient_readings
		ORDER BY device_id, id DESC`)
	if err != nil {
		return nil, domain.NewStorageError("latest by device", err)
	}
	defer rows.Close()

	latest := make(map[string]*domain.Reading)
	for rows.Next() {
		var (
			ts time.Time
			r  domain.Reading
		)
		if err := rows.Scan(&r.DeviceID, &ts,
			&r.AccX, &r.AccY, &r.AccZ, &r.GyroX, &r.GyroY, &r.GyroZ,
			&r.HR, &r.Presence, &r.Battery,
		); err != nil {
			return nil, domain.NewStorageError("scan latest reading", err)
		}
		r.Timestamp = ts
		latest[r.DeviceID] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("latest by device", err)
	}
	return latest, nil
}
