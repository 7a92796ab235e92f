package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

// FileSessionStore keeps one CSV spool file per patient under dir. Access is
// serialized per patient with keyed mutexes; unrelated patients never contend.
type FileSessionStore struct {
	dir string

	mu    sync.Mutex // guards locks map only
	locks map[string]*sync.Mutex
}

func NewFileSessionStore(dir string) (*FileSessionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.NewStorageError("create session dir", err)
	}
	return &FileSessionStore{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func (s *FileSessionStore) lock(patientID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[patientID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[patientID] = l
	}
	return l
}

func (s *FileSessionStore) Append(ctx context.Context, patientID, patientName string, r *domain.Reading) error {
	l := s.lock(patientID)
	l.Lock()
	defer l.Unlock()

	path := filepath.Join(s.dir, domain.SessionName(patientID, patientName)+".csv")
	// A zero-size file is the residue of a first append that died before its
	// header landed; it still needs the header row.
	info, statErr := os.Stat(path)
	fresh := errors.Is(statErr, fs.ErrNotExist) || (statErr == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return domain.NewStorageError("open session file", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(domain.ReadingFields); err != nil {
			return domain.NewStorageError("write session header", err)
		}
	}
	if err := w.Write(r.Record()); err != nil {
		return domain.NewStorageError("write reading", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return domain.NewStorageError("flush reading", err)
	}
	return nil
}

func (s *FileSessionStore) ListSessions(ctx context.Context) ([]*domain.SessionInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, domain.NewStorageError("list session dir", err)
	}

	out := []*domain.SessionInfo{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and stat; snapshot is advisory
		}
		out = append(out, &domain.SessionInfo{
			Name:      strings.TrimSuffix(e.Name(), ".csv"),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	return out, nil
}

func (s *FileSessionStore) ExportAndPurge(ctx context.Context, sessionName string) ([]byte, error) {
	patientID, err := domain.PatientIDFromSessionName(sessionName)
	if err != nil {
		return nil, err
	}

	l := s.lock(patientID)
	l.Lock()
	defer l.Unlock()

	path := filepath.Join(s.dir, strings.TrimSuffix(sessionName, ".csv")+".csv")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("read session file", err)
	}
	if err := os.Remove(path); err != nil {
		return nil, domain.NewStorageError("purge session file", err)
	}
	return data, nil
}

func (s *FileSessionStore) LatestByDevice(ctx context.Context) (map[string]*domain.Reading, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, domain.NewStorageError("list session dir", err)
	}

	latest := make(map[string]*domain.Reading)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		patientID, err := domain.PatientIDFromSessionName(e.Name())
		if err != nil {
			continue
		}
		if err := s.scanFileLatest(filepath.Join(s.dir, e.Name()), patientID, latest); err != nil {
			return nil, err
		}
	}
	return latest, nil
}

func (s *FileSessionStore) scanFileLatest(path, patientID string, latest map[string]*domain.Reading) error {
	l := s.lock(patientID)
	l.Lock()
	defer l.Unlock()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil // exported between ReadDir and open
	}
	if err != nil {
		return domain.NewStorageError("open session file", err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	records, err := rd.ReadAll()
	if err != nil {
		return domain.NewStorageError("read session file", err)
	}

	for i, rec := range records {
		if i == 0 || len(rec) < len(domain.ReadingFields) {
			continue // header or short row
		}
		ts, err := time.Parse(domain.TimestampLayout, rec[0])
		if err != nil {
			continue
		}
		r := &domain.Reading{
			Timestamp: ts,
			DeviceID:  rec[1],
			AccX:      rec[2], AccY: rec[3], AccZ: rec[4],
			GyroX: rec[5], GyroY: rec[6], GyroZ: rec[7],
			HR: rec[8], Presence: rec[9], Battery: rec[10],
		}
		// >= keeps the later row on one-second timestamp ties: arrival
		// order wins.
		if prev, ok := latest[r.DeviceID]; !ok || !r.Timestamp.Before(prev.Timestamp) {
			latest[r.DeviceID] = r
		}
	}
	return nil
}
