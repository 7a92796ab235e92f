package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

const (
	latestKeyPrefix = "telemetry:latest:"
	rawStream       = "telemetry:raw"
)

// latestTTL bounds how long a latest-reading key outlives its device going
// silent; the reconciliation job falls back to session history after that.
const latestTTL = 24 * time.Hour

// LatestEntry is the per-device record the reconciliation job reads. It is
// written for every resolved reading, presence-filtered ones included, so
// battery freshness does not depend on the presence filter.
type LatestEntry struct {
	DeviceID  string `json:"deviceId"` // canonical form
	Timestamp string `json:"timestamp"`
	Battery   int    `json:"battery"`
	Presence  string `json:"presence"`
}

// TelemetryLog is the unfiltered telemetry history on Redis: one
// latest-reading key per device plus an append-only raw stream.
type TelemetryLog struct {
	kv KV
}

func NewTelemetryLog(kv KV) *TelemetryLog {
	return &TelemetryLog{kv: kv}
}

// Record stores the reading as the device's latest entry and appends it to
// the raw stream.
func (l *TelemetryLog) Record(ctx context.Context, canonicalID string, r *domain.Reading) error {
	battery, ok := r.BatteryLevel()
	if !ok {
		battery = -1
	}
	entry := LatestEntry{
		DeviceID:  canonicalID,
		Timestamp: r.Timestamp.Format(domain.TimestampLayout),
		Battery:   battery,
		Presence:  r.Presence,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := l.kv.Set(ctx, latestKeyPrefix+canonicalID, string(raw), latestTTL); err != nil {
		return err
	}
	return l.kv.XAdd(ctx, rawStream, map[string]interface{}{
		"deviceId":  canonicalID,
		"timestamp": entry.Timestamp,
		"payload":   strings.Join(r.Record(), ","),
	})
}

// Latest returns the newest entry per canonical device ID. A device with no
// key (expired or never seen) is simply absent from the map.
func (l *TelemetryLog) Latest(ctx context.Context) (map[string]*LatestEntry, error) {
	keys, err := l.kv.ScanKeys(ctx, latestKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	out := make(map[string]*LatestEntry, len(keys))
	for _, key := range keys {
		raw, err := l.kv.Get(ctx, key)
		if errors.Is(err, ErrMiss) {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, err
		}
		var entry LatestEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue // unreadable entry; session fallback covers the device
		}
		out[entry.DeviceID] = &entry
	}
	return out, nil
}
