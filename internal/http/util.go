package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
	"github.com/piacobelli14/PSYCHE-API/internal/service"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func readBodyJSON(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// writeError maps the error taxonomy to HTTP statuses. Business rejections
// and client errors come back 4xx and must not be retried; everything else
// is a transient fault reported as 500 so the caller may retry.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidDevice):
		writeMessage(w, http.StatusBadRequest, "Invalid devID")
	case errors.Is(err, domain.ErrUnassigned):
		writeMessage(w, http.StatusBadRequest, "Device is not assigned to a patient")
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, domain.ErrConflict):
		writeMessage(w, http.StatusConflict, "Identifier already in use")
	case errors.Is(err, service.ErrMailDelivery):
		writeMessage(w, http.StatusNotImplemented, "Unable to send verification email.")
	default:
		writeMessage(w, http.StatusInternalServerError, "Error processing request. Please try again later.")
	}
}
