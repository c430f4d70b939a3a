package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB scans and writes a Postgres jsonb column. Valid is false for SQL NULL.
type JSONB[T any] struct {
	Data  T
	Valid bool
}

func NewJSONB[T any](data T) JSONB[T] {
	return JSONB[T]{Data: data, Valid: true}
}

func (p *JSONB[T]) Scan(src any) error {
	var zero T
	switch v := src.(type) {
	case nil:
		p.Data, p.Valid = zero, false
		return nil
	case []byte:
		if err := json.Unmarshal(v, &p.Data); err != nil {
			return fmt.Errorf("JSONB.Scan: %w", err)
		}
	case string:
		if err := json.Unmarshal([]byte(v), &p.Data); err != nil {
			return fmt.Errorf("JSONB.Scan: %w", err)
		}
	default:
		return fmt.Errorf("JSONB.Scan: expected []byte, got %T", src)
	}
	p.Valid = true
	return nil
}

func (p JSONB[T]) Value() (driver.Value, error) {
	if !p.Valid {
		return nil, nil
	}
	return json.Marshal(p.Data)
}
