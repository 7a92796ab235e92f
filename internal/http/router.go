package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router wraps a standard-library ServeMux with request logging; no
// third-party routing dependency.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	withRequestLogging(r.logger, r.mux).ServeHTTP(w, req)
}

func (r *Router) handle(pattern, method string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	})
}

// RegisterTelemetryRoutes wires the ingestion and session surface.
func (r *Router) RegisterTelemetryRoutes(h *TelemetryHandler) {
	r.handle("/stored-data", http.MethodPost, h.StoredData)
	r.handle("/get-sessions", http.MethodGet, h.GetSessions)
	r.handle("/export-sessions", http.MethodPost, h.ExportSessions)
}

// RegisterDeviceRoutes wires the assignment-registry CRUD.
func (r *Router) RegisterDeviceRoutes(h *DeviceHandler) {
	r.handle("/get-devices", http.MethodGet, h.GetDevices)
	r.handle("/get-devices/export", http.MethodGet, h.ExportDevices)
	r.handle("/register-device", http.MethodPost, h.RegisterDevice)
	r.handle("/remove-device", http.MethodPost, h.RemoveDevice)
	r.handle("/get-assignment-info", http.MethodPost, h.GetAssignmentInfo)
	r.handle("/swap-device", http.MethodPost, h.SwapDevice)
}

// RegisterPatientRoutes wires the patient-record CRUD.
func (r *Router) RegisterPatientRoutes(h *PatientHandler) {
	r.handle("/get-patients", http.MethodPost, h.GetPatients)
	r.handle("/enroll-patient", http.MethodPost, h.EnrollPatient)
	r.handle("/edit-patient", http.MethodPost, h.EditPatient)
	r.handle("/archive-patient", http.MethodPost, h.ArchivePatient)
	r.handle("/selected-patient-placeholders", http.MethodPost, h.SelectedPatientPlaceholders)
}

// RegisterAuthRoutes wires the clinician credential surface.
func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	r.handle("/login", http.MethodPost, h.Login)
	r.handle("/register-user", http.MethodPost, h.RegisterUser)
	r.handle("/reset-password", http.MethodPost, h.ResetPassword)
	r.handle("/change-password", http.MethodPost, h.ChangePassword)
}
