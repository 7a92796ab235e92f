package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
	"github.com/piacobelli14/PSYCHE-API/internal/repository"
	"github.com/piacobelli14/PSYCHE-API/internal/store"
)

// IngestResult is the outcome of one accepted reading. Stored is internal
// signaling only: the HTTP response is identical for stored and
// presence-filtered readings because fielded firmware expects a uniform 200.
type IngestResult struct {
	Reading     *domain.Reading
	DeviceID    string // canonical form
	PatientID   string
	PatientName string
	Stored      bool
}

// TelemetryIngestor is what the transports (HTTP handler, MQTT broker) call.
type TelemetryIngestor interface {
	Ingest(ctx context.Context, rawPayload string) (*IngestResult, error)
}

// TelemetryService is the ingestion pipeline: parse, stamp, canonicalize,
// resolve assignment, presence-filter, append. Store handles are injected so
// the pipeline is testable without live Postgres/Redis.
type TelemetryService struct {
	devices  repository.DevicesRepository
	sessions repository.SessionStore
	rawLog   *store.TelemetryLog // nil disables raw-log recording
	logger   *zap.Logger

	now func() time.Time
}

func NewTelemetryService(
	devices repository.DevicesRepository,
	sessions repository.SessionStore,
	rawLog *store.TelemetryLog,
	logger *zap.Logger,
) *TelemetryService {
	return &TelemetryService{
		devices:  devices,
		sessions: sessions,
		rawLog:   rawLog,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest processes one raw comma-separated payload. Error classes:
// domain.ErrInvalidDevice and domain.ErrUnassigned are business rejections
// the caller must not retry; a StorageError is a transient fault the caller
// may retry.
func (s *TelemetryService) Ingest(ctx context.Context, rawPayload string) (*IngestResult, error) {
	// Client-supplied time is not trusted; the reading carries the server
	// ingestion timestamp.
	reading := domain.ParsePayload(rawPayload, s.now())

	deviceID, err := domain.CanonicalDeviceID(reading.DeviceID)
	if err != nil {
		return nil, err
	}

	assignment, err := s.devices.ResolveAssignment(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	// Raw-log recording is best effort: battery freshness should never cost
	// an accepted reading.
	if s.rawLog != nil {
		if err := s.rawLog.Record(ctx, deviceID, reading); err != nil {
			s.logger.Warn("raw telemetry log write failed",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
		}
	}

	result := &IngestResult{
		Reading:     reading,
		DeviceID:    deviceID,
		PatientID:   assignment.PatientID,
		PatientName: assignment.PatientName,
	}

	// Presence filter: a reading with no detected presence is acknowledged
	// (device liveness and battery stay observable) but never persisted
	// into the clinical session.
	if !reading.Present() {
		s.logger.Debug("presence-filtered reading",
			zap.String("device_id", deviceID),
			zap.String("patient_id", assignment.PatientID),
		)
		return result, nil
	}

	if err := s.sessions.Append(ctx, assignment.PatientID, assignment.PatientName, reading); err != nil {
		return nil, err
	}
	result.Stored = true
	return result, nil
}
