package utils

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap stores free-form objects in jsonb columns.
type JSONMap map[string]any

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("JSONMap: Scan failed, expected []byte but got %T", value)
	}

	return json.Unmarshal(b, j)
}

// ToJSONMap round-trips any JSON-serializable value into a JSONMap.
func ToJSONMap(v any) (JSONMap, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	var m JSONMap
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value into map: %w", err)
	}
	return m, nil
}

// ScanJSON decodes a jsonb column value into dst.
func ScanJSON(value any, dst any, typeName string) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("%s: Scan failed, expected []byte but got %T", typeName, value)
	}
}
