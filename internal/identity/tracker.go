// Package identity tracks the set of entity keys seen across a sequence of
// fetch windows for a single endpoint.
package identity

import (
	"errors"
	"fmt"
	"sort"

	"aeso-harvester/internal/domain"
)

// ErrNoKeyColumn is returned when a tracker is created for an endpoint that
// does not declare an asset key column.
var ErrNoKeyColumn = errors.New("endpoint has no asset key column")

// Tracker accumulates known keys for one endpoint. It is not safe for
// concurrent use; each endpoint worker owns its own tracker.
//
// Keys are never retracted: a key missing from a later window is reported
// as Absent but stays Known.
type Tracker struct {
	endpoint  string
	column    string
	known     map[domain.AssetKey]struct{}
	firstSeen map[domain.AssetKey]domain.FetchWindow
}

// NewTracker creates a tracker keyed on cfg.AssetKeyColumn.
func NewTracker(cfg domain.EndpointConfig) (*Tracker, error) {
	if cfg.AssetKeyColumn == "" {
		return nil, fmt.Errorf("%s: %w", cfg.ID, ErrNoKeyColumn)
	}
	return &Tracker{
		endpoint:  cfg.ID,
		column:    cfg.AssetKeyColumn,
		known:     make(map[domain.AssetKey]struct{}),
		firstSeen: make(map[domain.AssetKey]domain.FetchWindow),
	}, nil
}

// Observe folds the keys of one window's table into the known set.
// Empty key cells are ignored.
func (t *Tracker) Observe(window domain.FetchWindow, table *domain.Table) (domain.IdentitySnapshot, error) {
	current := make(map[domain.AssetKey]struct{})
	if table != nil && table.Len() > 0 {
		keys, err := table.Column(t.column)
		if err != nil {
			return domain.IdentitySnapshot{}, fmt.Errorf("%s: %w", t.endpoint, err)
		}
		for _, k := range keys {
			if k != "" {
				current[domain.AssetKey(k)] = struct{}{}
			}
		}
	}

	var added, absent []domain.AssetKey
	for k := range current {
		if _, ok := t.known[k]; !ok {
			added = append(added, k)
			t.known[k] = struct{}{}
			t.firstSeen[k] = window
		}
	}
	for k := range t.known {
		if _, ok := current[k]; !ok {
			absent = append(absent, k)
		}
	}

	return domain.IdentitySnapshot{
		AsOf:   window,
		Known:  sortedKeys(t.known),
		New:    sortKeys(added),
		Absent: sortKeys(absent),
	}, nil
}

// Known returns the sorted set of keys observed so far.
func (t *Tracker) Known() []domain.AssetKey {
	return sortedKeys(t.known)
}

// FirstSeen returns the window in which key first appeared.
func (t *Tracker) FirstSeen(key domain.AssetKey) (domain.FetchWindow, bool) {
	w, ok := t.firstSeen[key]
	return w, ok
}

func sortedKeys(set map[domain.AssetKey]struct{}) []domain.AssetKey {
	out := make([]domain.AssetKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return sortKeys(out)
}

func sortKeys(keys []domain.AssetKey) []domain.AssetKey {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
