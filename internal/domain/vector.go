package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Vector is a text embedding stored as a JSON array column. A nil Vector
// means the concept has not been embedded yet and is invisible to
// similarity search.
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (v *Vector) Scan(src any) error {
	if src == nil {
		*v = nil
		return nil
	}
	var raw []byte
	switch s := src.(type) {
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return fmt.Errorf("vector: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*v = nil
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (Vector) GormDataType() string { return "jsonb" }
