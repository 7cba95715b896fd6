package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/loaders"
)

// Checkpoint records progress through a service-year parameter list. Year is
// nil in the service-complete sentinel written after the last year finishes.
type Checkpoint struct {
	Year           *int `json:"year"`
	LastParamIndex int  `json:"last_param_index"`
}

// CheckpointStore persists per-(service, year) resume state in the control
// directory. Each key gets its own lock so concurrent year workers never
// interleave a read-modify-write on the same file.
type CheckpointStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCheckpointStore returns a store rooted at the control directory.
func NewCheckpointStore(dir string) *CheckpointStore {
	return &CheckpointStore{dir: dir, locks: map[string]*sync.Mutex{}}
}

func (s *CheckpointStore) path(service string, year *int) string {
	if year == nil {
		return filepath.Join(s.dir, fmt.Sprintf("%s_checkpoint_global.json", service))
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s_checkpoint_%d.json", service, *year))
}

func (s *CheckpointStore) lockFor(service string, year *int) *sync.Mutex {
	key := service + ":global"
	if year != nil {
		key = fmt.Sprintf("%s:%d", service, *year)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Load returns the checkpoint for a service-year. Missing or corrupt files
// read as a fresh start (last_param_index -1).
func (s *CheckpointStore) Load(service string, year int) Checkpoint {
	l := s.lockFor(service, &year)
	l.Lock()
	defer l.Unlock()

	var cp Checkpoint
	if err := loaders.ReadJSON(s.path(service, &year), &cp); err != nil {
		return Checkpoint{LastParamIndex: -1}
	}
	return cp
}

// Save persists the checkpoint for a service-year atomically.
func (s *CheckpointStore) Save(service string, year int, lastParamIndex int) error {
	l := s.lockFor(service, &year)
	l.Lock()
	defer l.Unlock()
	y := year
	return loaders.AtomicWriteJSON(s.path(service, &year), Checkpoint{Year: &y, LastParamIndex: lastParamIndex})
}

// Clear removes the checkpoint for a completed service-year.
func (s *CheckpointStore) Clear(service string, year int) error {
	l := s.lockFor(service, &year)
	l.Lock()
	defer l.Unlock()
	err := os.Remove(s.path(service, &year))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MarkServiceComplete writes the global sentinel {year: null,
// last_param_index: -1} recording that every year of the service finished.
func (s *CheckpointStore) MarkServiceComplete(service string) error {
	l := s.lockFor(service, nil)
	l.Lock()
	defer l.Unlock()
	return loaders.AtomicWriteJSON(s.path(service, nil), Checkpoint{Year: nil, LastParamIndex: -1})
}
