// Package table provides Table, an immutable ordered sequence of records, and
// the group-by and index helpers the pipeline stages are built from.
//
// A Table copies its rows on construction and on Rows, so a stage can hand
// its output downstream without any later stage being able to change it.
package table

import (
	"encoding/json"
	"iter"
	"slices"
)

// Table is an immutable ordered sequence of records of type T.
type Table[T any] struct {
	rows []T
}

// From builds a table from rows. The slice is copied.
func From[T any](rows []T) Table[T] {
	return Table[T]{rows: slices.Clone(rows)}
}

// Len returns the number of rows
func (t Table[T]) Len() int {
	return len(t.rows)
}

// At returns a copy of row i. It panics when i is out of range, like a slice.
func (t Table[T]) At(i int) T {
	return t.rows[i]
}

// Rows returns a copy of all rows
func (t Table[T]) Rows() []T {
	return slices.Clone(t.rows)
}

// All iterates rows in order
func (t Table[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, row := range t.rows {
			if !yield(i, row) {
				return
			}
		}
	}
}

// Head returns the first n rows (all rows when n <= 0 or n >= Len).
func (t Table[T]) Head(n int) Table[T] {
	if n <= 0 || n >= len(t.rows) {
		return t
	}
	return From(t.rows[:n])
}

// Filter returns the rows for which keep is true, in order
func (t Table[T]) Filter(keep func(T) bool) Table[T] {
	out := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	return Table[T]{rows: out}
}

// SortStable returns a copy sorted by cmp; equal rows keep their order.
func (t Table[T]) SortStable(cmp func(a, b T) int) Table[T] {
	out := slices.Clone(t.rows)
	slices.SortStableFunc(out, cmp)
	return Table[T]{rows: out}
}

// MarshalJSON encodes the table as a JSON array of rows
func (t Table[T]) MarshalJSON() ([]byte, error) {
	if t.rows == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.rows)
}

// Map applies fn to every row
func Map[T, U any](t Table[T], fn func(T) U) Table[U] {
	out := make([]U, len(t.rows))
	for i, row := range t.rows {
		out[i] = fn(row)
	}
	return Table[U]{rows: out}
}

// Group is one group produced by GroupBy
type Group[K comparable, T any] struct {
	Key  K
	Rows []T
}

// GroupBy partitions rows by key. Groups appear in order of the first row
// carrying each key; rows keep their order inside a group.
func GroupBy[T any, K comparable](t Table[T], key func(T) K) []Group[K, T] {
	positions := make(map[K]int)
	var groups []Group[K, T]

	for _, row := range t.rows {
		k := key(row)
		pos, exists := positions[k]
		if !exists {
			pos = len(groups)
			positions[k] = pos
			groups = append(groups, Group[K, T]{Key: k})
		}
		groups[pos].Rows = append(groups[pos].Rows, row)
	}

	return groups
}

// Index maps each key to the position of its first row
func Index[T any, K comparable](t Table[T], key func(T) K) map[K]int {
	index := make(map[K]int, len(t.rows))
	for i, row := range t.rows {
		k := key(row)
		if _, exists := index[k]; !exists {
			index[k] = i
		}
	}
	return index
}

// Lookup returns the first row whose key matches
func Lookup[T any, K comparable](t Table[T], index map[K]int, k K) (T, bool) {
	pos, ok := index[k]
	if !ok {
		var zero T
		return zero, false
	}
	return t.rows[pos], true
}

// DistinctBy keeps the first row for each key, in original order
func DistinctBy[T any, K comparable](t Table[T], key func(T) K) Table[T] {
	seen := make(map[K]struct{}, len(t.rows))
	out := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		k := key(row)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return Table[T]{rows: out}
}
