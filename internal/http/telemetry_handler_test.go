package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
	"github.com/piacobelli14/PSYCHE-API/internal/service"
)

type stubIngestor struct {
	result *service.IngestResult
	err    error
}

func (s *stubIngestor) Ingest(ctx context.Context, rawPayload string) (*service.IngestResult, error) {
	return s.result, s.err
}

type stubSessions struct {
	infos     []*domain.SessionInfo
	exported  map[string][]byte
	exportErr error
}

func (s *stubSessions) Append(ctx context.Context, patientID, patientName string, r *domain.Reading) error {
	return nil
}

func (s *stubSessions) ListSessions(ctx context.Context) ([]*domain.SessionInfo, error) {
	return s.infos, nil
}

func (s *stubSessions) ExportAndPurge(ctx context.Context, sessionName string) ([]byte, error) {
	if s.exportErr != nil {
		return nil, s.exportErr
	}
	data, ok := s.exported[sessionName]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(s.exported, sessionName)
	return data, nil
}

func (s *stubSessions) LatestByDevice(ctx context.Context) (map[string]*domain.Reading, error) {
	return nil, nil
}

func telemetryRouter(ingestor service.TelemetryIngestor, sessions *stubSessions) *Router {
	r := NewRouter(zap.NewNop())
	r.RegisterTelemetryRoutes(NewTelemetryHandler(ingestor, sessions, zap.NewNop()))
	return r
}

func TestStoredData_EchoesStampedReading(t *testing.T) {
	reading := domain.ParsePayload("7,1,2,3,4,5,6,70,1,85",
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	ingestor := &stubIngestor{result: &service.IngestResult{
		Reading:     reading,
		DeviceID:    "ST-07",
		PatientID:   "P1",
		PatientName: "Jane Doe",
		Stored:      true,
	}}

	req := httptest.NewRequest(http.MethodPost, "/stored-data", strings.NewReader("7,1,2,3,4,5,6,70,1,85"))
	rec := httptest.NewRecorder()
	telemetryRouter(ingestor, &stubSessions{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-03-01 12:00:00", body["timestamp"])
	assert.Equal(t, "7", body["devID"])
	assert.Equal(t, "85", body["battery"])
	assert.Equal(t, "P1", body["ptid"])
	assert.Equal(t, "Jane Doe", body["ptname"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestStoredData_FilteredReadingLooksIdentical(t *testing.T) {
	reading := domain.ParsePayload("7,1,2,3,4,5,6,70,0,85",
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	ingestor := &stubIngestor{result: &service.IngestResult{
		Reading:     reading,
		DeviceID:    "ST-07",
		PatientID:   "P1",
		PatientName: "Jane Doe",
		Stored:      false,
	}}

	req := httptest.NewRequest(http.MethodPost, "/stored-data", strings.NewReader("7,1,2,3,4,5,6,70,0,85"))
	rec := httptest.NewRecorder()
	telemetryRouter(ingestor, &stubSessions{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	// no stored/filtered marker leaks to the device
	assert.NotContains(t, body, "stored")
}

func TestStoredData_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"invalid device", domain.ErrInvalidDevice, http.StatusBadRequest, "Invalid devID"},
		{"unassigned", domain.ErrUnassigned, http.StatusBadRequest, "Device is not assigned to a patient"},
		{"storage fault", domain.NewStorageError("append reading", context.DeadlineExceeded), http.StatusInternalServerError, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ingestor := &stubIngestor{err: c.err}
			req := httptest.NewRequest(http.MethodPost, "/stored-data", strings.NewReader("x"))
			rec := httptest.NewRecorder()
			telemetryRouter(ingestor, &stubSessions{}).ServeHTTP(rec, req)

			require.Equal(t, c.wantStatus, rec.Code)
			if c.wantMsg != "" {
				assert.Contains(t, rec.Body.String(), c.wantMsg)
			}
		})
	}
}

func TestStoredData_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/stored-data", nil)
	rec := httptest.NewRecorder()
	telemetryRouter(&stubIngestor{}, &stubSessions{}).ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetSessions(t *testing.T) {
	sessions := &stubSessions{infos: []*domain.SessionInfo{
		{
			Name:      "P1-JaneDoe_RTData",
			SizeBytes: 512,
			CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}}

	req := httptest.NewRequest(http.MethodGet, "/get-sessions", nil)
	rec := httptest.NewRecorder()
	telemetryRouter(&stubIngestor{}, sessions).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Sessions []map[string]any `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, "P1-JaneDoe_RTData", body.Sessions[0]["name"])
	assert.Equal(t, float64(512), body.Sessions[0]["sizeBytes"])
	assert.Equal(t, "Fri Mar  1 12:00:00 2024", body.Sessions[0]["creationTime"])
}

func TestExportSessions_DownloadThenGone(t *testing.T) {
	csv := "timestamp,devID,accX,accY,accZ,gyroX,gyroY,gyroZ,hr,presence,battery\n" +
		"2024-03-01 12:00:00,7,1,2,3,4,5,6,70,1,85\n"
	sessions := &stubSessions{exported: map[string][]byte{
		"P1-JaneDoe_RTData": []byte(csv),
	}}
	router := telemetryRouter(&stubIngestor{}, sessions)

	payload := func() *bytes.Reader {
		return bytes.NewReader([]byte(`{"fileName":"P1-JaneDoe_RTData"}`))
	}

	req := httptest.NewRequest(http.MethodPost, "/export-sessions", payload())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=P1-JaneDoe_RTData.csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, csv, rec.Body.String())

	// purged: second export of the same name is a 404
	req = httptest.NewRequest(http.MethodPost, "/export-sessions", payload())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "File not found.")
}

func TestExportSessions_MissingFileName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/export-sessions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	telemetryRouter(&stubIngestor{}, &stubSessions{}).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
