// Package registry holds the static catalog of AESO report endpoints.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"aeso-harvester/internal/domain"
)

var (
	// ErrUnknownEndpoint is returned when an endpoint ID is not registered.
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrInvalidEndpoint is returned when an endpoint definition is inconsistent.
	ErrInvalidEndpoint = errors.New("invalid endpoint definition")
)

// Override replaces the run/consolidate defaults of one endpoint.
// Nil fields keep the registered value.
type Override struct {
	Run         *bool
	Consolidate *bool
}

// Registry is an immutable, ordered set of endpoint configurations.
type Registry struct {
	endpoints []domain.EndpointConfig
	byID      map[string]int
}

// New validates the given endpoints and builds a registry preserving their order.
func New(endpoints ...domain.EndpointConfig) (*Registry, error) {
	r := &Registry{byID: make(map[string]int, len(endpoints))}
	for _, ep := range endpoints {
		if err := validate(ep); err != nil {
			return nil, err
		}
		if _, dup := r.byID[ep.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidEndpoint, ep.ID)
		}
		r.byID[ep.ID] = len(r.endpoints)
		r.endpoints = append(r.endpoints, clone(ep))
	}
	return r, nil
}

// Default returns the built-in AESO catalog.
func Default() *Registry {
	r, err := New(Catalog()...)
	if err != nil {
		panic(fmt.Sprintf("registry: built-in catalog is invalid: %v", err))
	}
	return r
}

// Get returns the endpoint with the given ID.
func (r *Registry) Get(id string) (domain.EndpointConfig, error) {
	i, ok := r.byID[id]
	if !ok {
		return domain.EndpointConfig{}, fmt.Errorf("%w: %s", ErrUnknownEndpoint, id)
	}
	return clone(r.endpoints[i]), nil
}

// All returns every endpoint in registration order.
func (r *Registry) All() []domain.EndpointConfig {
	out := make([]domain.EndpointConfig, len(r.endpoints))
	for i, ep := range r.endpoints {
		out[i] = clone(ep)
	}
	return out
}

// Enabled returns the endpoints whose Run flag is set.
func (r *Registry) Enabled() []domain.EndpointConfig {
	var out []domain.EndpointConfig
	for _, ep := range r.endpoints {
		if ep.Run {
			out = append(out, clone(ep))
		}
	}
	return out
}

// IDs returns the registered endpoint IDs in order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.endpoints))
	for i, ep := range r.endpoints {
		ids[i] = ep.ID
	}
	return ids
}

// WithOverrides returns a new registry with run/consolidate flags replaced.
// Unknown IDs are rejected.
func (r *Registry) WithOverrides(overrides map[string]Override) (*Registry, error) {
	endpoints := r.All()
	for id, o := range overrides {
		i, ok := r.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, id)
		}
		if o.Run != nil {
			endpoints[i].Run = *o.Run
		}
		if o.Consolidate != nil {
			endpoints[i].Consolidate = *o.Consolidate
		}
	}
	return New(endpoints...)
}

func validate(ep domain.EndpointConfig) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidEndpoint, ep.ID, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(ep.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEndpoint)
	}
	if !ep.Granularity.IsValid() {
		return fail("granularity %q", ep.Granularity)
	}
	if ep.ReportPath == "" {
		return fail("report path is required")
	}
	if len(ep.Columns) == 0 {
		return fail("column order is required")
	}
	if ep.FileTemplate == "" {
		return fail("file template is required")
	}
	if ep.IsTimeSliced() && !strings.Contains(ep.FileTemplate, domain.YearPlaceholder) {
		return fail("time-sliced template %q lacks %s", ep.FileTemplate, domain.YearPlaceholder)
	}
	if ep.Strategy == domain.StrategyReportRecords && ep.ReportKey == "" {
		return fail("report key is required for %s", ep.Strategy)
	}

	seen := make(map[string]struct{}, len(ep.Columns))
	for _, c := range ep.Columns {
		if _, dup := seen[c]; dup {
			return fail("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	for _, c := range []string{ep.TimeColumn, ep.LocalTimeColumn, ep.AssetKeyColumn} {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; !ok {
			return fail("column %q not in column order", c)
		}
	}
	for _, d := range ep.Derived {
		if _, ok := seen[d.Column]; !ok {
			return fail("derived column %q not in column order", d.Column)
		}
	}
	if ep.Consolidate && ep.TimeColumn == "" {
		return fail("consolidation requires a time column")
	}
	return nil
}

func clone(ep domain.EndpointConfig) domain.EndpointConfig {
	ep.Columns = slices.Clone(ep.Columns)
	ep.Derived = slices.Clone(ep.Derived)
	return ep
}
