package model

import (
	"bytes"
	"encoding/json"
)

// Null holds an optional value. The zero Null is absent.
type Null[T any] struct {
	V     T
	Valid bool
}

// Some returns a present value
func Some[T any](v T) Null[T] {
	return Null[T]{V: v, Valid: true}
}

// None returns an absent value
func None[T any]() Null[T] {
	return Null[T]{}
}

// Get returns the value and whether it is present
func (n Null[T]) Get() (T, bool) {
	return n.V, n.Valid
}

// Or returns the value, or fallback when absent
func (n Null[T]) Or(fallback T) T {
	if !n.Valid {
		return fallback
	}
	return n.V
}

// MarshalJSON encodes an absent value as null
func (n Null[T]) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.V)
}

// UnmarshalJSON decodes null as absent
func (n *Null[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = Null[T]{}
		return nil
	}
	if err := json.Unmarshal(data, &n.V); err != nil {
		return err
	}
	n.Valid = true
	return nil
}
