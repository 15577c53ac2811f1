package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONList stores an owned slice of sub-records as a JSON column. Embedded
// records (entities, story events, buttons, params) have no identity of
// their own, so they live inside the owning row.
type JSONList[T any] []T

func (l JSONList[T]) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *JSONList[T]) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported json column source %T", src)
	}
	if len(b) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(b, l)
}

func (JSONList[T]) GormDataType() string { return "jsonb" }

// StringList is a JSON-stored list of strings (checkpoints, trigger names,
// categorical slot values).
type StringList = JSONList[string]

// JSONObject stores a single owned record as a JSON column.
type JSONObject[T any] struct {
	Data T
}

func Object[T any](v T) JSONObject[T] { return JSONObject[T]{Data: v} }

func (o JSONObject[T]) Value() (driver.Value, error) {
	return json.Marshal(o.Data)
}

func (o *JSONObject[T]) Scan(src interface{}) error {
	if src == nil {
		var zero T
		o.Data = zero
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported json column source %T", src)
	}
	if len(b) == 0 {
		var zero T
		o.Data = zero
		return nil
	}
	return json.Unmarshal(b, &o.Data)
}

func (o JSONObject[T]) MarshalJSON() ([]byte, error) { return json.Marshal(o.Data) }

func (o *JSONObject[T]) UnmarshalJSON(b []byte) error { return json.Unmarshal(b, &o.Data) }

func (JSONObject[T]) GormDataType() string { return "jsonb" }
