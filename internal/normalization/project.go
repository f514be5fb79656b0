package normalization

import (
	"encoding/json"
	"fmt"
	"strconv"

	"aeso-harvester/internal/domain"
)

// derive computes the endpoint's derived columns in place.
func derive(cfg domain.EndpointConfig, records []Record) error {
	for _, d := range cfg.Derived {
		for i, rec := range records {
			src, ok := rec[d.From]
			if !ok {
				return &MissingColumnError{Endpoint: cfg.ID, Column: d.From, Record: i}
			}
			value, err := deriveValue(d.Kind, cell(src))
			if err != nil {
				return &SchemaMismatchError{
					Endpoint: cfg.ID,
					Path:     fmt.Sprintf("record[%d].%s", i, d.From),
					Expected: string(d.Kind) + " source",
					Got:      err.Error(),
				}
			}
			rec[d.Column] = value
		}
	}
	return nil
}

func deriveValue(kind domain.DeriveKind, src string) (string, error) {
	if src == "" {
		return "", nil
	}
	switch kind {
	case domain.DeriveHourOfDay:
		ts, err := domain.ParseTimestamp(src)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(ts.Hour()), nil
	default:
		return "", fmt.Errorf("unsupported derivation %q", kind)
	}
}

// project keeps exactly cfg.Columns, in order. Unknown fields are dropped.
func project(cfg domain.EndpointConfig, records []Record) (*domain.Table, error) {
	table := domain.NewTable(cfg.Columns...)
	table.Rows = make([][]string, 0, len(records))
	for i, rec := range records {
		row := make([]string, len(cfg.Columns))
		for c, col := range cfg.Columns {
			v, ok := rec[col]
			if !ok {
				return nil, &MissingColumnError{Endpoint: cfg.ID, Column: col, Record: i}
			}
			row[c] = cell(v)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// cell renders a JSON value as canonical cell text.
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
