package repository

import (
	"bytes"
	"context"
	"encoding/csv"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

// SessionStore accumulates accepted readings per patient until a clinician
// exports them. Both implementations (file spool, Postgres table) satisfy the
// same contract:
//
//   - Append never blocks appends for other patients; appends for the same
//     patient serialize, so records are never interleaved.
//   - ExportAndPurge is atomic with respect to Append: the returned bytes are
//     exactly the readings committed at the purge cut, and a racing append
//     lands entirely in the next session. A second export of a purged session
//     gets domain.ErrNotFound.
type SessionStore interface {
	Append(ctx context.Context, patientID, patientName string, r *domain.Reading) error

	// ListSessions is a point-in-time snapshot; size/creation metadata is
	// advisory.
	ListSessions(ctx context.Context) ([]*domain.SessionInfo, error)

	ExportAndPurge(ctx context.Context, sessionName string) ([]byte, error)

	// LatestByDevice returns the most recent stored reading per device (raw
	// device ID key), ties broken by arrival order. Used as the battery
	// reconciliation fallback when no fresher unfiltered history exists.
	LatestByDevice(ctx context.Context) (map[string]*domain.Reading, error)
}

// encodeSessionCSV renders readings as the self-describing session record:
// header row naming the channels, then one row per reading in acceptance
// order.
func encodeSessionCSV(readings []*domain.Reading) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(domain.ReadingFields); err != nil {
		return nil, err
	}
	for _, r := range readings {
		if err := w.Write(r.Record()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
