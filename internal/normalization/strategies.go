package normalization

import (
	"fmt"

	"aeso-harvester/internal/domain"
)

// reportRecords handles {"<ReportKey>": [ {...}, ... ]}.
func reportRecords(cfg domain.EndpointConfig, payload any) ([]Record, error) {
	if payload == nil {
		return nil, nil
	}
	obj, err := asObject(cfg, "return", payload)
	if err != nil {
		return nil, err
	}
	list, ok := obj[cfg.ReportKey]
	if !ok {
		return nil, &SchemaMismatchError{
			Endpoint: cfg.ID,
			Path:     "return",
			Expected: fmt.Sprintf("member %q", cfg.ReportKey),
			Got:      "absent",
		}
	}
	return objectList(cfg, "return."+cfg.ReportKey, list, nil)
}

// recordList handles [ {...}, ... ].
func recordList(cfg domain.EndpointConfig, payload any) ([]Record, error) {
	return objectList(cfg, "return", payload, nil)
}

// energyBlocks handles {"data": [ {begin_dateTime_utc, ..., "energy_blocks": [ {...} ]} ]}.
// Each block inherits the scalar fields of its hourly parent.
func energyBlocks(cfg domain.EndpointConfig, payload any) ([]Record, error) {
	if payload == nil {
		return nil, nil
	}
	obj, err := asObject(cfg, "return", payload)
	if err != nil {
		return nil, err
	}
	hours, err := objectList(cfg, "return.data", obj["data"], nil)
	if err != nil {
		return nil, err
	}

	var out []Record
	for i, hour := range hours {
		blocks, err := objectList(cfg, fmt.Sprintf("return.data[%d].energy_blocks", i), hour["energy_blocks"], hour)
		if err != nil {
			return nil, err
		}
		out = append(out, blocks...)
	}
	return out, nil
}

// meteredVolume handles
// [ {pool_participant_ID, "asset_list": [ {asset_ID, asset_class, "metered_volume_list": [ {...} ]} ]} ].
func meteredVolume(cfg domain.EndpointConfig, payload any) ([]Record, error) {
	participants, err := objectList(cfg, "return", payload, nil)
	if err != nil {
		return nil, err
	}

	var out []Record
	for i, p := range participants {
		assetPath := fmt.Sprintf("return[%d].asset_list", i)
		assets, err := objectList(cfg, assetPath, p["asset_list"], p)
		if err != nil {
			return nil, err
		}
		for j, a := range assets {
			volumes, err := objectList(cfg, fmt.Sprintf("%s[%d].metered_volume_list", assetPath, j), a["metered_volume_list"], a)
			if err != nil {
				return nil, err
			}
			out = append(out, volumes...)
		}
	}
	return out, nil
}

// csdInterchange handles {effective_datetime_utc, ..., "interchange_list": [ {path, actual_flow} ]}.
func csdInterchange(cfg domain.EndpointConfig, payload any) ([]Record, error) {
	if payload == nil {
		return nil, nil
	}
	obj, err := asObject(cfg, "return", payload)
	if err != nil {
		return nil, err
	}
	return objectList(cfg, "return.interchange_list", obj["interchange_list"], Record(obj))
}

// objectList validates that v is a list of objects (null counts as empty)
// and returns each element merged over the scalar fields of parent.
func objectList(cfg domain.EndpointConfig, path string, v any, parent Record) ([]Record, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, &SchemaMismatchError{Endpoint: cfg.ID, Path: path, Expected: "list", Got: kindOf(v)}
	}

	out := make([]Record, 0, len(list))
	for i, item := range list {
		obj, err := asObject(cfg, fmt.Sprintf("%s[%d]", path, i), item)
		if err != nil {
			return nil, err
		}
		rec := make(Record, len(parent)+len(obj))
		for k, pv := range parent {
			if isScalar(pv) {
				rec[k] = pv
			}
		}
		for k, cv := range obj {
			rec[k] = cv
		}
		out = append(out, rec)
	}
	return out, nil
}

func asObject(cfg domain.EndpointConfig, path string, v any) (map[string]any, error) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, nil
	case Record:
		return obj, nil
	default:
		return nil, &SchemaMismatchError{Endpoint: cfg.ID, Path: path, Expected: "object", Got: kindOf(v)}
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case []any, map[string]any, Record:
		return false
	default:
		return true
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "list"
	case map[string]any, Record:
		return "object"
	case string:
		return "string"
	case bool:
		return "bool"
	default:
		return "number"
	}
}
