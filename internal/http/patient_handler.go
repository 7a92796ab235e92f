package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
	"github.com/piacobelli14/PSYCHE-API/internal/repository"
)

// PatientHandler serves the patient-record CRUD surface. The core only
// consumes it as the source of truth for patient identifiers.
type PatientHandler struct {
	patients repository.PatientsRepository
	logger   *zap.Logger
}

func NewPatientHandler(patients repository.PatientsRepository, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{patients: patients, logger: logger}
}

func (h *PatientHandler) GetPatients(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientTable string `json:"patientTable"`
	}
	if err := readBodyJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	table := repository.PatientTableCurrent
	if req.PatientTable == "archive" {
		table = repository.PatientTableArchive
	}

	patients, err := h.patients.ListPatients(r.Context(), table)
	if err != nil {
		h.logger.Error("patient listing failed", zap.Error(err))
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(patients))
	for _, p := range patients {
		out = append(out, p.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}

type patientRequest struct {
	PatientID   string `json:"patientID"`
	PatientName string `json:"patientName"`
	PatientUnit string `json:"patientUnit"`
	PatientSex  string `json:"patientSex"`
	PatientAge  int    `json:"patientAge"`
}

func (r *patientRequest) toDomain() *domain.Patient {
	return &domain.Patient{
		PatientID: r.PatientID,
		Name:      r.PatientName,
		Sex:       r.PatientSex,
		Age:       r.PatientAge,
		Tag:       r.PatientUnit,
	}
}

func (h *PatientHandler) EnrollPatient(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := readBodyJSON(r, &req); err != nil || req.PatientID == "" || req.PatientName == "" {
		writeMessage(w, http.StatusBadRequest, "patientID and patientName are required")
		return
	}

	if err := h.patients.EnrollPatient(r.Context(), req.toDomain()); err != nil {
		if err == domain.ErrConflict {
			writeMessage(w, http.StatusConflict, "Patient ID already in use")
			return
		}
		h.logger.Error("patient enrollment failed",
			zap.String("patient_id", req.PatientID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *PatientHandler) EditPatient(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := readBodyJSON(r, &req); err != nil || req.PatientID == "" {
		writeMessage(w, http.StatusBadRequest, "patientID is required")
		return
	}

	if err := h.patients.EditPatient(r.Context(), req.toDomain()); err != nil {
		h.logger.Error("patient edit failed",
			zap.String("patient_id", req.PatientID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *PatientHandler) ArchivePatient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID string `json:"patientID"`
	}
	if err := readBodyJSON(r, &req); err != nil || req.PatientID == "" {
		writeMessage(w, http.StatusBadRequest, "patientID is required")
		return
	}

	if err := h.patients.ArchivePatient(r.Context(), req.PatientID); err != nil {
		h.logger.Error("patient archive failed",
			zap.String("patient_id", req.PatientID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

// SelectedPatientPlaceholders returns the form prefill values for one
// patient, with the display name split into first/last.
func (h *PatientHandler) SelectedPatientPlaceholders(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID string `json:"patientID"`
	}
	if err := readBodyJSON(r, &req); err != nil || req.PatientID == "" {
		writeMessage(w, http.StatusBadRequest, "patientID is required")
		return
	}

	p, err := h.patients.GetPatient(r.Context(), req.PatientID)
	if err != nil {
		h.logger.Error("patient lookup failed",
			zap.String("patient_id", req.PatientID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	parts := strings.Fields(p.Name)
	first, last := p.Name, p.Name
	if len(parts) > 0 {
		first = parts[0]
		last = parts[len(parts)-1]
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ptIDPlaceholder":        p.PatientID,
		"ptFirstNamePlaceholder": first,
		"ptLastNamePlaceholder":  last,
		"ptSexPlaceholder":       p.Sex,
		"ptAgePlaceholder":       strconv.Itoa(p.Age),
		"ptTagPlaceholder":       p.Tag,
	})
}
