package record

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	recordsSubdir     = "user_medical_histories"
	transcriptsSubdir = "chat_histories"
)

// FileStore persists each record and transcript as a flat JSON document under
// a data directory, one file per username. Writes to the same username are
// serialized by a per-key mutex.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates the data directory layout if needed.
func NewFileStore(dir string) (*FileStore, error) {
	for _, sub := range []string{recordsSubdir, transcriptsSubdir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return &FileStore{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *FileStore) userLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *FileStore) recordPath(key string) string {
	return filepath.Join(s.dir, recordsSubdir, key+"_medical_history.json")
}

func (s *FileStore) transcriptPath(key string) string {
	return filepath.Join(s.dir, transcriptsSubdir, key+"_chat_history.json")
}

func (s *FileStore) Load(_ context.Context, username string) (*MedicalRecord, error) {
	key := Key(username)
	l := s.userLock(key)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(s.recordPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("read record: %w", err)
	}

	var rec MedicalRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec.Username == "" {
		rec.Username = username
	}
	rec.Normalize()
	return &rec, nil
}

func (s *FileStore) Save(_ context.Context, rec *MedicalRecord) error {
	key := Key(rec.Username)
	l := s.userLock(key)
	l.Lock()
	defer l.Unlock()

	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := os.WriteFile(s.recordPath(key), data, 0o644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, username string) error {
	key := Key(username)
	l := s.userLock(key)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(s.recordPath(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("delete record: %w", err)
	}
	// Transcript removal is best-effort; a leftover transcript without a
	// record is harmless.
	_ = os.Remove(s.transcriptPath(key))
	return nil
}

func (s *FileStore) SaveTranscript(_ context.Context, username string, entries []TranscriptEntry) error {
	key := Key(username)
	l := s.userLock(key)
	l.Lock()
	defer l.Unlock()

	if entries == nil {
		entries = []TranscriptEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := os.WriteFile(s.transcriptPath(key), data, 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

func (s *FileStore) LoadTranscript(_ context.Context, username string) ([]TranscriptEntry, error) {
	key := Key(username)
	l := s.userLock(key)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(s.transcriptPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return []TranscriptEntry{}, nil
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var entries []TranscriptEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return entries, nil
}
