package memory

import (
	"context"
	"sync"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// FailureStore is an in-memory implementation of storage.FailureStore.
type FailureStore struct {
	mu       sync.RWMutex
	failures []domain.FailureRecord
}

// Compile-time interface check.
var _ storage.FailureStore = (*FailureStore)(nil)

// NewFailureStore creates a new in-memory failure store.
func NewFailureStore() *FailureStore {
	return &FailureStore{}
}

// InsertBulk appends copies of failures.
func (s *FailureStore) InsertBulk(_ context.Context, failures []*domain.FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range failures {
		if f == nil {
			return storage.ErrInvalidInput
		}
	}
	for _, f := range failures {
		s.failures = append(s.failures, *f)
	}
	return nil
}

// GetByRunID returns copies of one run's failures.
func (s *FailureStore) GetByRunID(_ context.Context, runID string) ([]*domain.FailureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.FailureRecord
	for _, f := range s.failures {
		if f.RunID == runID {
			f := f
			out = append(out, &f)
		}
	}
	return out, nil
}
