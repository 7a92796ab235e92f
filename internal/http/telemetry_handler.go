package httpapi

import (
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
	"github.com/piacobelli14/PSYCHE-API/internal/repository"
	"github.com/piacobelli14/PSYCHE-API/internal/service"
)

// TelemetryHandler serves the ingestion endpoint and the session
// listing/export surface.
type TelemetryHandler struct {
	ingestor service.TelemetryIngestor
	sessions repository.SessionStore
	logger   *zap.Logger
}

func NewTelemetryHandler(ingestor service.TelemetryIngestor, sessions repository.SessionStore, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{ingestor: ingestor, sessions: sessions, logger: logger}
}

// StoredData ingests one raw comma-separated telemetry line. The response is
// identical whether the reading was persisted or presence-filtered; device
// firmware in the field depends on the uniform 200.
func (h *TelemetryHandler) StoredData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Unreadable request body")
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), string(body))
	if err != nil {
		if domain.IsStorageError(err) {
			h.logger.Error("ingest storage fault", zap.Error(err))
		}
		writeError(w, err)
		return
	}

	resp := result.Reading.ToJSON()
	resp["ptid"] = result.PatientID
	resp["ptname"] = result.PatientName
	writeJSON(w, http.StatusOK, resp)
}

// GetSessions lists current sessions with advisory size/creation metadata.
func (h *TelemetryHandler) GetSessions(w http.ResponseWriter, r *http.Request) {
	infos, err := h.sessions.ListSessions(r.Context())
	if err != nil {
		h.logger.Error("session listing failed", zap.Error(err))
		writeError(w, err)
		return
	}

	sessions := make([]map[string]any, 0, len(infos))
	for _, info := range infos {
		sessions = append(sessions, map[string]any{
			"name":         info.Name,
			"sizeBytes":    info.SizeBytes,
			"creationTime": info.CreatedAt.Format(time.ANSIC),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// ExportSessions returns a session's serialized bytes as a CSV download and
// purges it; a repeat export of the same name gets 404.
func (h *TelemetryHandler) ExportSessions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName string `json:"fileName"`
	}
	if err := readBodyJSON(r, &req); err != nil || req.FileName == "" {
		writeMessage(w, http.StatusBadRequest, "fileName is required")
		return
	}

	data, err := h.sessions.ExportAndPurge(r.Context(), req.FileName)
	if err == domain.ErrNotFound {
		writeMessage(w, http.StatusNotFound, "File not found.")
		return
	}
	if err != nil {
		h.logger.Error("session export failed",
			zap.String("file_name", req.FileName),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	fileName := strings.TrimSuffix(req.FileName, ".csv") + ".csv"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
