package memory

import (
	"context"
	"sort"
	"sync"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// ManifestStore is an in-memory implementation of storage.ManifestStore.
type ManifestStore struct {
	mu      sync.RWMutex
	records map[string]domain.ManifestRecord
}

// Compile-time interface check.
var _ storage.ManifestStore = (*ManifestStore)(nil)

// NewManifestStore creates a new in-memory manifest store.
func NewManifestStore() *ManifestStore {
	return &ManifestStore{records: make(map[string]domain.ManifestRecord)}
}

// Get returns a copy of the record for endpoint.
func (s *ManifestStore) Get(_ context.Context, endpoint string) (*domain.ManifestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[endpoint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

// Upsert stores a copy of rec.
func (s *ManifestStore) Upsert(_ context.Context, rec *domain.ManifestRecord) error {
	if rec == nil || rec.Endpoint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Endpoint] = *rec
	return nil
}

// List returns all records ordered by endpoint.
func (s *ManifestStore) List(_ context.Context) ([]*domain.ManifestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ManifestRecord, 0, len(s.records))
	for _, rec := range s.records {
		rec := rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out, nil
}
