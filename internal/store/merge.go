package store

import (
	"encoding/json"
	"fmt"
)

// mergeDocument applies a shallow field merge onto doc, writing the result
// into out. Field names follow the document's JSON encoding, so the same
// field maps work against both backends.
func mergeDocument(doc any, fields map[string]any, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	var merged map[string]any
	if err := json.Unmarshal(raw, &merged); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	normalized, err := normalizeFields(fields)
	if err != nil {
		return err
	}
	for key, value := range normalized {
		merged[key] = value
	}
	combined, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode merged document: %w", err)
	}
	if err := json.Unmarshal(combined, out); err != nil {
		return fmt.Errorf("decode merged document: %w", err)
	}
	return nil
}

// normalizeFields runs the field values through a JSON round trip so typed
// values (slices of domain structs, time.Time) merge the same way the wire
// representation would.
func normalizeFields(fields map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return normalized, nil
}
