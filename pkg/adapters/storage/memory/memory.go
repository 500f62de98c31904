package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/dagrun/pkg/domain"
)

// RunStore implements ports.RunStore using an in-memory map
type RunStore struct {
	records map[string]domain.RunRecord
	mu      sync.RWMutex
}

// NewRunStore creates a new in-memory run store
func NewRunStore() *RunStore {
	return &RunStore{
		records: make(map[string]domain.RunRecord),
	}
}

// Save stores a copy of the record, replacing any previous version
func (s *RunStore) Save(ctx context.Context, record *domain.RunRecord) error {
	if record == nil || record.RunID == "" {
		return fmt.Errorf("run record must have an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.RunID] = *record
	return nil
}

// Get retrieves a run record
func (s *RunStore) Get(ctx context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}

	return &record, nil
}

// List returns the ids of all stored runs in lexical order
func (s *RunStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runIDs := make([]string, 0, len(s.records))
	for id := range s.records {
		runIDs = append(runIDs, id)
	}
	sort.Strings(runIDs)

	return runIDs, nil
}

// Delete removes a run record
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, runID)
	return nil
}
