package errors

import (
	stderrors "errors"
	"fmt"
)

// Sentinels matched by errors.Is against the typed pipeline errors.
var (
	ErrParse      = stderrors.New("parse error")
	ErrEmptyGroup = stderrors.New("empty group")
)

// ParseError reports a missing source column or a value that cannot be
// converted to its declared type. It aborts the run.
type ParseError struct {
	Source  string // Source table or file name
	Column  string
	Row     int // 1-based data row, 0 when the error concerns the header
	Value   string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	location := e.Source
	if location == "" {
		location = "input"
	}
	if e.Column != "" {
		location += fmt.Sprintf(" column '%s'", e.Column)
	}
	if e.Row > 0 {
		location += fmt.Sprintf(" row %d", e.Row)
	}
	msg := fmt.Sprintf("parse %s: %s", location, e.Message)
	if e.Value != "" {
		msg += fmt.Sprintf(" (value %q)", e.Value)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrParse
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// NewMissingColumnError creates a ParseError for an absent required column
func NewMissingColumnError(source, column string) *ParseError {
	return &ParseError{
		Source:  source,
		Column:  column,
		Message: "required column is missing",
	}
}

// NewParseError creates a ParseError for a malformed value
func NewParseError(source, column string, row int, value, message string) *ParseError {
	return &ParseError{
		Source:  source,
		Column:  column,
		Row:     row,
		Value:   value,
		Message: message,
	}
}

// EmptyGroupError reports a quantile, mode or mean computed over zero rows.
type EmptyGroupError struct {
	Op     string
	Column string
}

// Error implements the error interface
func (e *EmptyGroupError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s over column '%s': no rows to aggregate", e.Op, e.Column)
	}
	return fmt.Sprintf("%s: no rows to aggregate", e.Op)
}

// Is reports whether target is ErrEmptyGroup
func (e *EmptyGroupError) Is(target error) bool {
	return target == ErrEmptyGroup
}

// NewEmptyGroupError creates an EmptyGroupError
func NewEmptyGroupError(op, column string) *EmptyGroupError {
	return &EmptyGroupError{Op: op, Column: column}
}

// JoinIntegrityWarning records foreign keys that found no match in the
// referenced table. Rows are kept (left join) or dropped (inner join) by the
// caller; the warning only reports them.
type JoinIntegrityWarning struct {
	Join    string // e.g. "order_items.product_id -> products"
	Key     string
	Missing int
	Example string // first unmatched key value
}

// String renders the warning for logs and diagnostics
func (w JoinIntegrityWarning) String() string {
	if w.Example == "" {
		return fmt.Sprintf("%s: %d unmatched %s", w.Join, w.Missing, w.Key)
	}
	return fmt.Sprintf("%s: %d unmatched %s (e.g. %q)", w.Join, w.Missing, w.Key, w.Example)
}
