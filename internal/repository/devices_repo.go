package repository

import (
	"context"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

// DevicesRepository is the assignment registry: one row per registered
// device, holding its current patient assignment and last known battery.
type DevicesRepository interface {
	// ResolveAssignment is a pure lookup by canonical device ID. It returns
	// domain.ErrUnassigned when the device has no row or its holder fields
	// are empty/placeholder; it never mutates registry state.
	ResolveAssignment(ctx context.Context, deviceID string) (*domain.Assignment, error)

	ListDevices(ctx context.Context) ([]*domain.Device, error)

	// RegisterDevice creates an unassigned row with a full battery seed.
	// Returns domain.ErrConflict when the device ID is already registered.
	RegisterDevice(ctx context.Context, deviceType, deviceID string) error

	RemoveDevice(ctx context.Context, deviceID string) error

	// Swap moves a patient's assignment onto newDeviceID. When oldDeviceID
	// names a device, its holder fields are cleared before the new
	// assignment is written; both steps commit as one transaction so two
	// patients are never mapped to one device.
	Swap(ctx context.Context, oldDeviceID, newDeviceID, patientID, patientName string) error

	// Unassign clears a device's holder fields (both together).
	Unassign(ctx context.Context, deviceID string) error

	// UpdateBattery writes the battery level for a device. Writing the
	// value already stored is a no-op.
	UpdateBattery(ctx context.Context, deviceID string, level int) error

	// GetAssignmentByPatient returns the device currently assigned to a
	// patient, with the patient's display name; domain.ErrNotFound when the
	// patient does not exist, and an empty device when nothing is assigned.
	GetAssignmentByPatient(ctx context.Context, patientID string) (*PatientAssignmentInfo, error)
}

// PatientAssignmentInfo answers the assignment query for one patient.
type PatientAssignmentInfo struct {
	PatientName string
	DeviceID    string // "None" when unassigned
	DeviceType  string // "None" when unassigned
}
