package csvfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// ManifestFile is the default manifest name under the output root.
const ManifestFile = ".harvest_manifest.json"

// Manifest is a JSON-file implementation of storage.ManifestStore used when
// no relational sink is configured.
type Manifest struct {
	path string
	mu   sync.Mutex
}

// Compile-time interface check.
var _ storage.ManifestStore = (*Manifest)(nil)

// NewManifest creates a manifest stored at <root>/.harvest_manifest.json.
func NewManifest(root string) *Manifest {
	return &Manifest{path: filepath.Join(root, ManifestFile)}
}

// Get returns the record for endpoint.
func (m *Manifest) Get(_ context.Context, endpoint string) (*domain.ManifestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.load()
	if err != nil {
		return nil, err
	}
	rec, ok := records[endpoint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

// Upsert replaces the record for rec.Endpoint and rewrites the file.
func (m *Manifest) Upsert(_ context.Context, rec *domain.ManifestRecord) error {
	if rec == nil || rec.Endpoint == "" {
		return storage.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.load()
	if err != nil {
		return err
	}
	cp := *rec
	records[rec.Endpoint] = &cp
	return m.save(records)
}

// List returns all records ordered by endpoint.
func (m *Manifest) List(_ context.Context) ([]*domain.ManifestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.load()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ManifestRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out, nil
}

func (m *Manifest) load() (map[string]*domain.ManifestRecord, error) {
	records := make(map[string]*domain.ManifestRecord)
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return records, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return records, nil
}

func (m *Manifest) save(records map[string]*domain.ManifestRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return os.Rename(tmp, m.path)
}
