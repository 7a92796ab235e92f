package mqtt

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
	"github.com/piacobelli14/PSYCHE-API/internal/service"
)

// TelemetryBroker feeds MQTT-delivered telemetry lines through the same
// ingestion pipeline as the HTTP endpoint. Payloads are the identical
// 10-field comma-separated form the sensors post over HTTP.
type TelemetryBroker struct {
	ingestor service.TelemetryIngestor
	logger   *zap.Logger
}

func NewTelemetryBroker(ingestor service.TelemetryIngestor, logger *zap.Logger) *TelemetryBroker {
	return &TelemetryBroker{ingestor: ingestor, logger: logger}
}

// HandleMessage ingests one payload. Business rejections (bad device ID,
// unassigned device) are expected fleet noise and logged at debug; only
// storage faults surface as handler errors.
func (b *TelemetryBroker) HandleMessage(topic string, payload []byte) error {
	result, err := b.ingestor.Ingest(context.Background(), string(payload))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDevice) || errors.Is(err, domain.ErrUnassigned) {
			b.logger.Debug("mqtt telemetry rejected",
				zap.String("topic", topic),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	b.logger.Debug("mqtt telemetry accepted",
		zap.String("device_id", result.DeviceID),
		zap.String("patient_id", result.PatientID),
		zap.Bool("stored", result.Stored),
	)
	return nil
}
