// Package normalization turns raw AESO report payloads into canonical tables.
//
// Each endpoint names a strategy tag. A strategy validates the nested payload
// shape and flattens it into records; the dispatcher then applies derived
// columns and projects every record onto the endpoint's column order.
package normalization

import (
	"bytes"
	"encoding/json"
	"fmt"

	"aeso-harvester/internal/domain"
)

// Record is one flattened payload row keyed by field name.
type Record map[string]any

// Strategy flattens one payload into records. Strategies are pure.
type Strategy func(cfg domain.EndpointConfig, payload any) ([]Record, error)

var strategies = map[domain.StrategyTag]Strategy{
	domain.StrategyReportRecords:  reportRecords,
	domain.StrategyRecordList:     recordList,
	domain.StrategyEnergyBlocks:   energyBlocks,
	domain.StrategyMeteredVolume:  meteredVolume,
	domain.StrategyCSDInterchange: csdInterchange,
}

// Dispatcher routes batches to the strategy registered for their endpoint.
type Dispatcher struct {
	strategies map[domain.StrategyTag]Strategy
}

// NewDispatcher creates a dispatcher and verifies that every endpoint's
// strategy tag is implemented.
func NewDispatcher(endpoints ...domain.EndpointConfig) (*Dispatcher, error) {
	for _, ep := range endpoints {
		if _, ok := strategies[ep.Strategy]; !ok {
			return nil, fmt.Errorf("%w: %q (endpoint %s)", ErrUnknownStrategy, ep.Strategy, ep.ID)
		}
	}
	return &Dispatcher{strategies: strategies}, nil
}

// Normalize converts a batch payload into a table with exactly cfg.Columns.
func (d *Dispatcher) Normalize(cfg domain.EndpointConfig, batch domain.RawBatch) (*domain.Table, error) {
	strategy, ok := d.strategies[cfg.Strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %q (endpoint %s)", ErrUnknownStrategy, cfg.Strategy, cfg.ID)
	}

	payload, err := decode(batch.Payload)
	if err != nil {
		return nil, &SchemaMismatchError{Endpoint: cfg.ID, Path: "return", Expected: "JSON", Got: err.Error()}
	}

	records, err := strategy(cfg, payload)
	if err != nil {
		return nil, err
	}

	if err := derive(cfg, records); err != nil {
		return nil, err
	}

	return project(cfg, records)
}

// decode parses the payload keeping numbers as json.Number so cell text
// does not depend on float64 round trips.
func decode(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
