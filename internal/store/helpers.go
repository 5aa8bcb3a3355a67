package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// marshalNames converts []string to JSON text for storage.
func marshalNames(names []string) string {
	if len(names) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(names)
	return string(b)
}

// unmarshalNames converts JSON text back to a non-nil []string.
func unmarshalNames(s string) ([]string, error) {
	names := []string{}
	if s == "" || s == "null" {
		return names, nil
	}
	if err := json.Unmarshal([]byte(s), &names); err != nil {
		return nil, fmt.Errorf("decode names %q: %w", s, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}
