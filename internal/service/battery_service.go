package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
	"github.com/piacobelli14/PSYCHE-API/internal/repository"
	"github.com/piacobelli14/PSYCHE-API/internal/store"
)

// BatteryService periodically derives each device's battery level from its
// most recent telemetry and writes it back into the assignment registry.
// Preferred source is the Redis raw log (unfiltered, so usually fresher than
// stored sessions); devices absent from it, or whose raw entry lags the
// stored history, use the session store's latest stored reading instead.
// Devices with no history at all are skipped.
type BatteryService struct {
	devices  repository.DevicesRepository
	sessions repository.SessionStore
	rawLog   *store.TelemetryLog // nil disables the preferred source
	alerts   *AlertClient        // nil disables low-battery alerting
	logger   *zap.Logger

	interval     time.Duration
	lowThreshold int

	running atomic.Bool
}

func NewBatteryService(
	devices repository.DevicesRepository,
	sessions repository.SessionStore,
	rawLog *store.TelemetryLog,
	alerts *AlertClient,
	interval time.Duration,
	lowThreshold int,
	logger *zap.Logger,
) *BatteryService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &BatteryService{
		devices:      devices,
		sessions:     sessions,
		rawLog:       rawLog,
		alerts:       alerts,
		logger:       logger,
		interval:     interval,
		lowThreshold: lowThreshold,
	}
}

// Run ticks until ctx is cancelled. A tick that fires while the previous run
// is still working is skipped (never queued), and a failed run only logs; the
// scheduler itself never stops on reconciliation errors.
func (s *BatteryService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("battery reconciliation started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("battery reconciliation stopped")
			return
		case <-ticker.C:
			if !s.running.CompareAndSwap(false, true) {
				s.logger.Warn("battery reconciliation still running, skipping tick")
				continue
			}
			go func() {
				defer s.running.Store(false)
				s.ReconcileOnce(ctx)
			}()
		}
	}
}

// ReconcileOnce performs one reconciliation pass. Exported for tests and for
// a one-shot run at startup.
func (s *BatteryService) ReconcileOnce(ctx context.Context) {
	type observation struct {
		battery int
		seenAt  time.Time
	}
	observed := make(map[string]observation)

	// Fallback source first; fresher raw-log entries overwrite it below.
	stored, err := s.sessions.LatestByDevice(ctx)
	if err != nil {
		s.logger.Warn("session history unavailable for reconciliation", zap.Error(err))
	}
	for rawID, reading := range stored {
		deviceID, err := domain.CanonicalDeviceID(rawID)
		if err != nil {
			continue // foreign rows cannot map to a registry device
		}
		if level, ok := reading.BatteryLevel(); ok {
			observed[deviceID] = observation{battery: level, seenAt: reading.Timestamp}
		}
	}

	if s.rawLog != nil {
		latest, err := s.rawLog.Latest(ctx)
		if err != nil {
			s.logger.Warn("raw telemetry log unavailable for reconciliation", zap.Error(err))
		}
		for deviceID, entry := range latest {
			if entry.Battery < 0 {
				continue
			}
			at, err := time.Parse(domain.TimestampLayout, entry.Timestamp)
			if err != nil {
				continue // unreadable stamp; session fallback covers the device
			}
			// Raw-log writes are best effort, so the log can lag the stored
			// sessions; a stale entry never clobbers a fresher observation.
			if prev, ok := observed[deviceID]; ok && at.Before(prev.seenAt) {
				continue
			}
			observed[deviceID] = observation{battery: entry.Battery, seenAt: at}
		}
	}

	updated := 0
	for deviceID, obs := range observed {
		if err := s.devices.UpdateBattery(ctx, deviceID, obs.battery); err != nil {
			// Per-device isolation: one unreachable row never aborts the
			// rest of the pass.
			s.logger.Error("battery update failed",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			continue
		}
		updated++

		if s.alerts != nil && obs.battery <= s.lowThreshold {
			s.alerts.NotifyLowBattery(ctx, deviceID, obs.battery, obs.seenAt.Format(domain.TimestampLayout))
		}
	}

	s.logger.Debug("battery reconciliation pass complete",
		zap.Int("devices_observed", len(observed)),
		zap.Int("devices_updated", updated),
	)
}
