package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Attributes holds free-form line options such as the chosen color or size.
// It is stored as a JSON column and decodes NULL as an empty set.
type Attributes map[string]string

func (a Attributes) Value() (driver.Value, error) {
	if len(a) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(map[string]string(a))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (a *Attributes) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot decode %T into Attributes", src)
	}

	if len(data) == 0 || string(data) == "null" {
		*a = nil
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode attributes: %w", err)
	}
	*a = out
	return nil
}

// Clone returns an independent copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
