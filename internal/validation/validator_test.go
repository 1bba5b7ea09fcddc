package validation_test

import (
	stderrors "errors"
	"testing"

	dferrors "github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockColumnProvider implements ColumnProvider for testing.
type MockColumnProvider struct {
	columns []string
	length  int
}

func (m *MockColumnProvider) HasColumn(name string) bool {
	for _, col := range m.columns {
		if col == name {
			return true
		}
	}
	return false
}

func (m *MockColumnProvider) Columns() []string {
	return m.columns
}

func (m *MockColumnProvider) Len() int {
	return m.length
}

func (m *MockColumnProvider) Width() int {
	return len(m.columns)
}

func TestRequiredColumnsValidator(t *testing.T) {
	mockDF := &MockColumnProvider{
		columns: []string{"order_id", "customer_id"},
		length:  3,
	}

	t.Run("all present", func(t *testing.T) {
		err := validation.ValidateRequiredColumns(mockDF, "orders", "order_id", "customer_id")
		require.NoError(t, err)
	})

	t.Run("missing column", func(t *testing.T) {
		err := validation.ValidateRequiredColumns(mockDF, "orders", "order_id", "order_approved_at")
		require.Error(t, err)

		var parseErr *dferrors.ParseError
		require.True(t, stderrors.As(err, &parseErr))
		assert.Equal(t, "orders", parseErr.Source)
		assert.Equal(t, "order_approved_at", parseErr.Column)
		assert.ErrorIs(t, err, dferrors.ErrParse)
	})
}

func TestLengthValidator(t *testing.T) {
	require.NoError(t, validation.ValidateLength(3, 3, "New", "columns"))

	err := validation.ValidateLength(3, 2, "New", "columns")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns: expected length 3, got 2")
}

func TestValidateFraction(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		wantErr bool
	}{
		{"small fraction", 0.05, false},
		{"whole table", 1, false},
		{"zero", 0, true},
		{"negative", -0.1, true},
		{"above one", 1.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.ValidateFraction("Sample", "fraction", tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "fraction must be in (0, 1]")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRangeValidator_Inclusive(t *testing.T) {
	require.NoError(t, validation.NewRangeValidator("Segment", "quantile", 0, 0, 1).Inclusive().Validate())
	require.Error(t, validation.NewRangeValidator("Segment", "quantile", 0, 0, 1).Validate())
}

func TestValidateNotEmpty(t *testing.T) {
	require.NoError(t, validation.ValidateNotEmpty(1, "mode", "lag"))

	err := validation.ValidateNotEmpty(0, "mode", "lag")
	assert.ErrorIs(t, err, dferrors.ErrEmptyGroup)
}

func TestCompoundValidator(t *testing.T) {
	mockDF := &MockColumnProvider{columns: []string{"price"}, length: 1}

	v := validation.NewCompoundValidator(
		validation.NewRequiredColumnsValidator(mockDF, "order_items", "price"),
		validation.NewNotEmptyValidator(0, "quantile", "total_spent"),
		validation.NewLengthValidator(1, 2, "New", "never reached"),
	)

	err := v.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, dferrors.ErrEmptyGroup)
}
