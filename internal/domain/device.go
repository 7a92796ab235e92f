package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Device maps a row of the registered_devices table. A device either holds
// one patient assignment or is unassigned; the holder ID/name pair is always
// set and cleared together.
type Device struct {
	DeviceType          string    `db:"device_type"`
	DeviceID            string    `db:"device_id"` // canonical form, e.g. "ST-07"
	AssignedPatientID   string    `db:"assigned_patient_id"`
	AssignedPatientName string    `db:"assigned_patient_name"`
	LastAssignment      time.Time `db:"last_assignment"`
	Battery             int       `db:"battery"` // 0-100
}

// UnassignedMarker is the stored placeholder for "no patient". Kept as a
// literal rather than NULL for compatibility with the fleet provisioning
// tooling, which writes and compares the string form.
const UnassignedMarker = "None"

// Assigned reports whether the device currently holds a real assignment.
// Empty or placeholder holder fields count as unassigned.
func (d *Device) Assigned() bool {
	return d.AssignedPatientID != "" && d.AssignedPatientID != UnassignedMarker &&
		d.AssignedPatientName != "" && d.AssignedPatientName != UnassignedMarker
}

// ToJSON shapes the device row for HTTP responses (string-typed fields,
// matching the frontend contract).
func (d *Device) ToJSON() map[string]any {
	return map[string]any{
		"devType":      d.DeviceType,
		"devID":        d.DeviceID,
		"assignedTo":   d.AssignedPatientName,
		"lastAssigned": d.LastAssignment.UTC().Format(time.RFC3339),
		"battery":      strconv.Itoa(d.Battery),
	}
}

// CanonicalDeviceID converts the raw numeric identifier a sensor sends into
// the registry form: "ST-" + zero-padded number ("7" -> "ST-07",
// "123" -> "ST-123"). Non-numeric input is rejected with ErrInvalidDevice.
func CanonicalDeviceID(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidDevice
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return "", ErrInvalidDevice
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return "", ErrInvalidDevice
	}
	return fmt.Sprintf("ST-%02d", n), nil
}

// Assignment is the result of resolving a device to its current holder.
type Assignment struct {
	PatientID   string
	PatientName string
}
