// Package registry persists registered events as a JSON object mapping each
// event id to its scheduler job id and event file path:
//
//	{"0": [12, "/home/me/events/hw1.json"]}
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/fulmenhq/repodeploy/pkg/safeio"
	"github.com/gofrs/flock"
)

var (
	// ErrNotFound is returned for an event id that is not registered.
	ErrNotFound = errors.New("event not registered")
	// ErrExists is returned when reserving an id that is already registered.
	ErrExists = errors.New("event already registered")
)

// PendingJob is the job id of a reserved entry whose job is not scheduled yet.
const PendingJob = 0

// Entry is one registered event.
type Entry struct {
	JobID      int
	ConfigPath string
}

// MarshalJSON encodes the entry as a [job_id, config_path] pair.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.JobID, e.ConfigPath})
}

// UnmarshalJSON decodes a [job_id, config_path] pair.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("registry entry must be [job_id, config_path], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.JobID); err != nil {
		return fmt.Errorf("job id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &e.ConfigPath); err != nil {
		return fmt.Errorf("config path: %w", err)
	}
	return nil
}

// Store is the registry file at one path. Reads take a shared lock and
// updates an exclusive one, so concurrent processes never see a torn file.
type Store struct {
	path string
	lock *flock.Flock
}

// New returns the store backed by path. Nothing is touched until first use.
func New(path string) *Store {
	return &Store{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the registry file path.
func (s *Store) Path() string { return s.path }

// Load returns every entry, creating an empty registry file when none exists.
func (s *Store) Load() (map[string]Entry, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("locking registry: %w", err)
	}
	entries, err := s.read()
	_ = s.lock.Unlock()
	if err != nil {
		return nil, err
	}
	if entries == nil {
		if err := s.update(func(map[string]Entry) error { return nil }); err != nil {
			return nil, err
		}
		entries = map[string]Entry{}
	}
	return entries, nil
}

// Get returns the entry for id.
func (s *Store) Get(id string) (Entry, error) {
	entries, err := s.Load()
	if err != nil {
		return Entry{}, err
	}
	entry, ok := entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry, nil
}

// Add records id. An id that is already registered is left alone and
// ErrExists is returned.
func (s *Store) Add(id string, entry Entry) error {
	return s.update(func(entries map[string]Entry) error {
		if _, taken := entries[id]; taken {
			return fmt.Errorf("%w: %s", ErrExists, id)
		}
		entries[id] = entry
		return nil
	})
}

// Reserve claims id for configPath in a single locked update, so concurrent
// registrations cannot take the same id. An empty id claims the lowest free
// numeric id. The entry holds PendingJob until SetJob is called.
func (s *Store) Reserve(id, configPath string) (string, error) {
	err := s.update(func(entries map[string]Entry) error {
		if id == "" {
			id = nextFreeID(entries)
		} else if _, taken := entries[id]; taken {
			return fmt.Errorf("%w: %s", ErrExists, id)
		}
		entries[id] = Entry{JobID: PendingJob, ConfigPath: configPath}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetJob records the scheduler job of a registered id.
func (s *Store) SetJob(id string, jobID int) error {
	return s.update(func(entries map[string]Entry) error {
		entry, ok := entries[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		entry.JobID = jobID
		entries[id] = entry
		return nil
	})
}

// Remove deletes id and returns the removed entry.
func (s *Store) Remove(id string) (Entry, error) {
	var removed Entry
	err := s.update(func(entries map[string]Entry) error {
		entry, ok := entries[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		removed = entry
		delete(entries, id)
		return nil
	})
	return removed, err
}

// IDs returns the registered ids, numeric ids first in numeric order.
func (s *Store) IDs() ([]string, error) {
	entries, err := s.Load()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids, nil
}

// NextFreeID returns the lowest non-negative integer not yet used as an id.
// Non-numeric ids are ignored.
func (s *Store) NextFreeID() (string, error) {
	entries, err := s.Load()
	if err != nil {
		return "", err
	}
	return nextFreeID(entries), nil
}

func nextFreeID(entries map[string]Entry) string {
	used := make(map[int]bool, len(entries))
	for id := range entries {
		if n, err := strconv.Atoi(id); err == nil && n >= 0 {
			used[n] = true
		}
	}
	for candidate := 0; ; candidate++ {
		if !used[candidate] {
			return strconv.Itoa(candidate)
		}
	}
}

// SortIDs orders numeric ids numerically, followed by the rest lexically.
func SortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, aErr := strconv.Atoi(ids[i])
		b, bErr := strconv.Atoi(ids[j])
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}

// read returns nil entries when the file does not exist yet.
func (s *Store) read() (map[string]Entry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	entries := map[string]Entry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *Store) update(fn func(map[string]Entry) error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking registry: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	entries, err := s.read()
	if err != nil {
		return err
	}
	if entries == nil {
		entries = map[string]Entry{}
	}
	if err := fn(entries); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return err
	}
	return safeio.WriteFileAtomic(s.path, append(data, '\n'), 0o600)
}
