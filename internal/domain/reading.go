package domain

import (
	"strconv"
	"strings"
	"time"
)

// ReadingFields is the fixed record layout every session serializes to:
// server timestamp, raw device id, then the nine telemetry channels.
var ReadingFields = []string{
	"timestamp", "devID",
	"accX", "accY", "accZ",
	"gyroX", "gyroY", "gyroZ",
	"hr", "presence", "battery",
}

// TimestampLayout is the one-second-resolution UTC format stamped at ingestion.
const TimestampLayout = "2006-01-02 15:04:05"

// Reading is one telemetry sample after ingestion stamping. The nine channel
// values are carried as the raw strings the sensor sent so exported CSV bytes
// reproduce device output exactly; only presence and battery are interpreted,
// and only where a decision depends on them.
type Reading struct {
	Timestamp time.Time
	DeviceID  string // raw numeric form as sent, e.g. "7"
	AccX      string
	AccY      string
	AccZ      string
	GyroX     string
	GyroY     string
	GyroZ     string
	HR        string
	Presence  string
	Battery   string
}

// ParsePayload splits the comma-separated wire payload (device id + nine
// channels, fixed order) and stamps it with now. Missing trailing fields
// default to "0" so short packets from lossy links still parse.
func ParsePayload(raw string, now time.Time) *Reading {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	field := func(i int) string {
		if i < len(parts) {
			if v := strings.TrimSpace(parts[i]); v != "" {
				return v
			}
		}
		return "0"
	}
	return &Reading{
		Timestamp: now.UTC().Truncate(time.Second),
		DeviceID:  field(0),
		AccX:      field(1),
		AccY:      field(2),
		AccZ:      field(3),
		GyroX:     field(4),
		GyroY:     field(5),
		GyroZ:     field(6),
		HR:        field(7),
		Presence:  field(8),
		Battery:   field(9),
	}
}

// Present reports whether the presence channel is nonzero. A value that does
// not parse as an integer counts as absent.
func (r *Reading) Present() bool {
	n, err := strconv.Atoi(r.Presence)
	return err == nil && n != 0
}

// BatteryLevel parses the battery channel; ok is false when the value is not
// a usable integer.
func (r *Reading) BatteryLevel() (int, bool) {
	n, err := strconv.Atoi(r.Battery)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Record returns the reading as one CSV record in ReadingFields order.
func (r *Reading) Record() []string {
	return []string{
		r.Timestamp.Format(TimestampLayout),
		r.DeviceID,
		r.AccX, r.AccY, r.AccZ,
		r.GyroX, r.GyroY, r.GyroZ,
		r.HR, r.Presence, r.Battery,
	}
}

// ToJSON shapes the stamped reading for the ingestion response, keyed by the
// wire field names.
func (r *Reading) ToJSON() map[string]any {
	rec := r.Record()
	m := make(map[string]any, len(ReadingFields))
	for i, f := range ReadingFields {
		m[f] = rec[i]
	}
	return m
}
