// Package validation provides reusable input checks for source tables and
// pipeline parameters.
package validation

import (
	"fmt"

	"github.com/paveg/olist-eda/internal/errors"
)

// Validator interface for input validation
type Validator interface {
	Validate() error
}

// ColumnProvider interface for types that provide column information
type ColumnProvider interface {
	HasColumn(name string) bool
	Columns() []string
	Len() int
	Width() int
}

// RequiredColumnsValidator checks that a source table carries every column the
// loader needs. A miss is a ParseError.
type RequiredColumnsValidator struct {
	df      ColumnProvider
	source  string
	columns []string
}

// NewRequiredColumnsValidator creates a validator for a named source
func NewRequiredColumnsValidator(df ColumnProvider, source string, columns ...string) *RequiredColumnsValidator {
	return &RequiredColumnsValidator{
		df:      df,
		source:  source,
		columns: columns,
	}
}

// Validate checks if all columns exist
func (v *RequiredColumnsValidator) Validate() error {
	for _, column := range v.columns {
		if !v.df.HasColumn(column) {
			return errors.NewMissingColumnError(v.source, column)
		}
	}
	return nil
}

// LengthValidator validates array length consistency
type LengthValidator struct {
	expected int
	actual   int
	op       string
	context  string
}

// NewLengthValidator creates a validator for length consistency
func NewLengthValidator(expected, actual int, op, context string) *LengthValidator {
	return &LengthValidator{
		expected: expected,
		actual:   actual,
		op:       op,
		context:  context,
	}
}

// Validate checks if lengths match
func (v *LengthValidator) Validate() error {
	if v.expected != v.actual {
		message := fmt.Sprintf("%s: expected length %d, got %d", v.context, v.expected, v.actual)
		return errors.NewValidationError(v.op, "", message)
	}
	return nil
}

// RangeValidator checks min < value <= max (or min <= value when inclusiveMin).
type RangeValidator struct {
	name         string
	value        float64
	min, max     float64
	inclusiveMin bool
	op           string
}

// NewRangeValidator creates a validator for a half-open range (min, max]
func NewRangeValidator(op, name string, value, minValue, maxValue float64) *RangeValidator {
	return &RangeValidator{op: op, name: name, value: value, min: minValue, max: maxValue}
}

// Inclusive makes the lower bound inclusive
func (v *RangeValidator) Inclusive() *RangeValidator {
	v.inclusiveMin = true
	return v
}

// Validate checks the bounds
func (v *RangeValidator) Validate() error {
	belowMin := v.value <= v.min
	if v.inclusiveMin {
		belowMin = v.value < v.min
	}
	if belowMin || v.value > v.max {
		lower := "("
		if v.inclusiveMin {
			lower = "["
		}
		message := fmt.Sprintf("%s must be in %s%g, %g], got %g", v.name, lower, v.min, v.max, v.value)
		return errors.NewInvalidInputError(v.op, message)
	}
	return nil
}

// NotEmptyValidator fails with an EmptyGroupError when a table has no rows
type NotEmptyValidator struct {
	length int
	op     string
	column string
}

// NewNotEmptyValidator creates a validator for row count checks
func NewNotEmptyValidator(length int, op, column string) *NotEmptyValidator {
	return &NotEmptyValidator{length: length, op: op, column: column}
}

// Validate checks the row count
func (v *NotEmptyValidator) Validate() error {
	if v.length == 0 {
		return errors.NewEmptyGroupError(v.op, v.column)
	}
	return nil
}

// CompoundValidator combines multiple validators
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator that checks multiple conditions
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{
		validators: validators,
	}
}

// Validate runs all validators and returns the first error encountered
func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRequiredColumns is a convenience function for source column validation
func ValidateRequiredColumns(df ColumnProvider, source string, columns ...string) error {
	return NewRequiredColumnsValidator(df, source, columns...).Validate()
}

// ValidateLength is a convenience function for length validation
func ValidateLength(expected, actual int, op, context string) error {
	return NewLengthValidator(expected, actual, op, context).Validate()
}

// ValidateFraction checks 0 < value <= 1
func ValidateFraction(op, name string, value float64) error {
	return NewRangeValidator(op, name, value, 0, 1).Validate()
}

// ValidateNotEmpty is a convenience function for empty input validation
func ValidateNotEmpty(length int, op, column string) error {
	return NewNotEmptyValidator(length, op, column).Validate()
}
