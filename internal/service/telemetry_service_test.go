package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
	"github.com/piacobelli14/PSYCHE-API/internal/repository"
	"github.com/piacobelli14/PSYCHE-API/internal/service"
	"github.com/piacobelli14/PSYCHE-API/internal/store"
)

type fakeDevicesRepo struct {
	assignments map[string]*domain.Assignment // canonical device ID -> holder
	batteries   map[string]int
	batteryErr  error
}

func newFakeDevicesRepo() *fakeDevicesRepo {
	return &fakeDevicesRepo{
		assignments: map[string]*domain.Assignment{},
		batteries:   map[string]int{},
	}
}

func (f *fakeDevicesRepo) ResolveAssignment(ctx context.Context, deviceID string) (*domain.Assignment, error) {
	a, ok := f.assignments[deviceID]
	if !ok {
		return nil, domain.ErrUnassigned
	}
	return a, nil
}

func (f *fakeDevicesRepo) UpdateBattery(ctx context.Context, deviceID string, level int) error {
	if f.batteryErr != nil {
		return f.batteryErr
	}
	f.batteries[deviceID] = level
	return nil
}

func (f *fakeDevicesRepo) ListDevices(ctx context.Context) ([]*domain.Device, error) { return nil, nil }
func (f *fakeDevicesRepo) RegisterDevice(ctx context.Context, deviceType, deviceID string) error {
	return nil
}
func (f *fakeDevicesRepo) RemoveDevice(ctx context.Context, deviceID string) error { return nil }
func (f *fakeDevicesRepo) Swap(ctx context.Context, oldDeviceID, newDeviceID, patientID, patientName string) error {
	return nil
}
func (f *fakeDevicesRepo) Unassign(ctx context.Context, deviceID string) error { return nil }
func (f *fakeDevicesRepo) GetAssignmentByPatient(ctx context.Context, patientID string) (*repository.PatientAssignmentInfo, error) {
	return nil, domain.ErrNotFound
}

type appended struct {
	patientID   string
	patientName string
	reading     *domain.Reading
}

type fakeSessionStore struct {
	mu        sync.Mutex
	records   []appended
	appendErr error
	latest    map[string]*domain.Reading
	latestErr error
}

func (f *fakeSessionStore) Append(ctx context.Context, patientID, patientName string, r *domain.Reading) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, appended{patientID, patientName, r})
	return nil
}

func (f *fakeSessionStore) ListSessions(ctx context.Context) ([]*domain.SessionInfo, error) {
	return nil, nil
}

func (f *fakeSessionStore) ExportAndPurge(ctx context.Context, sessionName string) ([]byte, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeSessionStore) LatestByDevice(ctx context.Context) (map[string]*domain.Reading, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

// fakeKV is an in-memory store.KV; TTLs are ignored.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string]string
	streams map[string][]map[string]interface{}
	err     error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, streams: map[string][]map[string]interface{}{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeKV) XAdd(ctx context.Context, stream string, values map[string]interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams[stream] = append(f.streams[stream], values)
	return nil
}

func newIngestor(devices *fakeDevicesRepo, sessions *fakeSessionStore, rawLog *store.TelemetryLog) *service.TelemetryService {
	return service.NewTelemetryService(devices, sessions, rawLog, zap.NewNop())
}

func TestIngest_StoresAssignedPresentReading(t *testing.T) {
	devices := newFakeDevicesRepo()
	devices.assignments["ST-07"] = &domain.Assignment{PatientID: "P1", PatientName: "Jane Doe"}
	sessions := &fakeSessionStore{}

	res, err := newIngestor(devices, sessions, nil).Ingest(context.Background(), "7,1,2,3,4,5,6,70,1,85")
	require.NoError(t, err)
	assert.True(t, res.Stored)
	assert.Equal(t, "ST-07", res.DeviceID)
	assert.Equal(t, "P1", res.PatientID)

	require.Len(t, sessions.records, 1)
	assert.Equal(t, "P1", sessions.records[0].patientID)
	assert.Equal(t, "Jane Doe", sessions.records[0].patientName)
	assert.Equal(t, "85", sessions.records[0].reading.Battery)
}

func TestIngest_InvalidDeviceID(t *testing.T) {
	sessions := &fakeSessionStore{}
	_, err := newIngestor(newFakeDevicesRepo(), sessions, nil).Ingest(context.Background(), "abc,1,2,3,4,5,6,70,1,85")
	require.ErrorIs(t, err, domain.ErrInvalidDevice)
	assert.Empty(t, sessions.records)
}

func TestIngest_UnassignedDevice(t *testing.T) {
	sessions := &fakeSessionStore{}
	_, err := newIngestor(newFakeDevicesRepo(), sessions, nil).Ingest(context.Background(), "7,1,2,3,4,5,6,70,1,85")
	require.ErrorIs(t, err, domain.ErrUnassigned)
	assert.Empty(t, sessions.records)
}

func TestIngest_PresenceFilteredIsAcknowledgedButNotStored(t *testing.T) {
	devices := newFakeDevicesRepo()
	devices.assignments["ST-07"] = &domain.Assignment{PatientID: "P1", PatientName: "Jane Doe"}
	sessions := &fakeSessionStore{}

	res, err := newIngestor(devices, sessions, nil).Ingest(context.Background(), "7,1,2,3,4,5,6,70,0,85")
	require.NoError(t, err)
	assert.False(t, res.Stored)
	assert.Empty(t, sessions.records)
}

func TestIngest_FilteredReadingStillReachesRawLog(t *testing.T) {
	devices := newFakeDevicesRepo()
	devices.assignments["ST-07"] = &domain.Assignment{PatientID: "P1", PatientName: "Jane Doe"}
	sessions := &fakeSessionStore{}
	kv := newFakeKV()
	rawLog := store.NewTelemetryLog(kv)

	_, err := newIngestor(devices, sessions, rawLog).Ingest(context.Background(), "7,1,2,3,4,5,6,70,0,42")
	require.NoError(t, err)
	assert.Empty(t, sessions.records)

	latest, err := rawLog.Latest(context.Background())
	require.NoError(t, err)
	require.Contains(t, latest, "ST-07")
	assert.Equal(t, 42, latest["ST-07"].Battery)
	assert.Len(t, kv.streams["telemetry:raw"], 1)
}

func TestIngest_RawLogFailureDoesNotCostTheReading(t *testing.T) {
	devices := newFakeDevicesRepo()
	devices.assignments["ST-07"] = &domain.Assignment{PatientID: "P1", PatientName: "Jane Doe"}
	sessions := &fakeSessionStore{}
	kv := newFakeKV()
	kv.err = context.DeadlineExceeded
	rawLog := store.NewTelemetryLog(kv)

	res, err := newIngestor(devices, sessions, rawLog).Ingest(context.Background(), "7,1,2,3,4,5,6,70,1,85")
	require.NoError(t, err)
	assert.True(t, res.Stored)
	require.Len(t, sessions.records, 1)
}

func TestIngest_SessionAppendFailurePropagates(t *testing.T) {
	devices := newFakeDevicesRepo()
	devices.assignments["ST-07"] = &domain.Assignment{PatientID: "P1", PatientName: "Jane Doe"}
	sessions := &fakeSessionStore{appendErr: domain.NewStorageError("append reading", context.DeadlineExceeded)}

	_, err := newIngestor(devices, sessions, nil).Ingest(context.Background(), "7,1,2,3,4,5,6,70,1,85")
	require.Error(t, err)
	assert.True(t, domain.IsStorageError(err))
}
