package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
	"github.com/piacobelli14/PSYCHE-API/internal/repository"
)

// DeviceHandler serves the assignment-registry CRUD surface.
type DeviceHandler struct {
	devices repository.DevicesRepository
	logger  *zap.Logger
}

func NewDeviceHandler(devices repository.DevicesRepository, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{devices: devices, logger: logger}
}

func (h *DeviceHandler) GetDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.ListDevices(r.Context())
	if err != nil {
		h.logger.Error("device listing failed", zap.Error(err))
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}

// ExportDevices downloads the registry as an Excel workbook for fleet
// inventory reviews.
func (h *DeviceHandler) ExportDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.ListDevices(r.Context())
	if err != nil {
		h.logger.Error("device listing failed", zap.Error(err))
		writeError(w, err)
		return
	}

	data, err := GenerateDeviceRegistryExport(devices)
	if err != nil {
		h.logger.Error("device export generation failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Error generating export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=registered_devices.xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DevType string `json:"devType"`
		DevID   string `json:"devID"`
	}
	if err := readBodyJSON(r, &req); err != nil || req.DevType == "" || req.DevID == "" {
		writeMessage(w, http.StatusBadRequest, "devType and devID are required")
		return
	}

	if err := h.devices.RegisterDevice(r.Context(), req.DevType, req.DevID); err != nil {
		if err == domain.ErrConflict {
			writeMessage(w, http.StatusConflict, "Device ID already in use")
			return
		}
		h.logger.Error("device registration failed",
			zap.String("device_id", req.DevID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *DeviceHandler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DevID string `json:"devID"`
	}
	if err := readBodyJSON(r, &req); err != nil || req.DevID == "" {
		writeMessage(w, http.StatusBadRequest, "devID is required")
		return
	}

	if err := h.devices.RemoveDevice(r.Context(), req.DevID); err != nil {
		h.logger.Error("device removal failed",
			zap.String("device_id", req.DevID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *DeviceHandler) GetAssignmentInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PtID string `json:"ptID"`
	}
	if err := readBodyJSON(r, &req); err != nil || req.PtID == "" {
		writeMessage(w, http.StatusBadRequest, "ptID is required")
		return
	}

	info, err := h.devices.GetAssignmentByPatient(r.Context(), req.PtID)
	if err == domain.ErrNotFound {
		// The frontend expects the placeholder shape on unknown patients.
		writeJSON(w, http.StatusNotFound, map[string]string{
			"ptName":         domain.UnassignedMarker,
			"currentDevID":   domain.UnassignedMarker,
			"currentDevType": domain.UnassignedMarker,
		})
		return
	}
	if err != nil {
		h.logger.Error("assignment lookup failed",
			zap.String("patient_id", req.PtID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ptName":         info.PatientName,
		"currentDevID":   info.DeviceID,
		"currentDevType": info.DeviceType,
	})
}

// SwapDevice moves a patient's assignment from oldDevID to newDevID; the old
// device's holder is cleared and the new one written in one transaction.
func (h *DeviceHandler) SwapDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewDevID string `json:"newDevID"`
		OldDevID string `json:"oldDevID"`
		PtID     string `json:"ptID"`
		PtName   string `json:"ptName"`
	}
	if err := readBodyJSON(r, &req); err != nil || req.NewDevID == "" || req.PtID == "" || req.PtName == "" {
		writeMessage(w, http.StatusBadRequest, "newDevID, ptID and ptName are required")
		return
	}

	if err := h.devices.Swap(r.Context(), req.OldDevID, req.NewDevID, req.PtID, req.PtName); err != nil {
		h.logger.Error("device swap failed",
			zap.String("old_device_id", req.OldDevID),
			zap.String("new_device_id", req.NewDevID),
			zap.String("patient_id", req.PtID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}
