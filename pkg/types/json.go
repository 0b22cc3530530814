package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONSlice stores a slice as JSON text, portable across sqlite and postgres.
type JSONSlice[T any] []T

// Value serializes the slice to a JSON string. A nil slice is stored as [].
func (s JSONSlice[T]) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]T(s))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSON into the slice.
func (s *JSONSlice[T]) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded []T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*s = decoded
	return nil
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
