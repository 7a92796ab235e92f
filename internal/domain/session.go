package domain

import (
	"strings"
	"time"
)

// SessionInfo is the operator-facing metadata for one accumulated session.
// Size and creation time are advisory (point-in-time), not a consistency
// guarantee.
type SessionInfo struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
	CreatedAt time.Time
}

const sessionSuffix = "_RTData"

// SessionName composes the durable session name for a patient:
// {patientID}-{NameWithoutSpaces}_RTData. Both session backends use the same
// form so exports are addressable regardless of deployment.
func SessionName(patientID, patientName string) string {
	return patientID + "-" + strings.ReplaceAll(patientName, " ", "") + sessionSuffix
}

// PatientIDFromSessionName extracts the patient ID from a session name (or a
// session file name). Everything before the first '-' is the ID; a name with
// no separator yields ErrNotFound.
func PatientIDFromSessionName(name string) (string, error) {
	name = strings.TrimSuffix(name, ".csv")
	id, rest, ok := strings.Cut(name, "-")
	if !ok || id == "" || !strings.HasSuffix(rest, sessionSuffix) {
		return "", ErrNotFound
	}
	return id, nil
}
