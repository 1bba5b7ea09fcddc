package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/paveg/olist-eda/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestParseError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *errors.ParseError
		expected string
	}{
		{
			name:     "missing column",
			err:      errors.NewMissingColumnError("orders", "order_approved_at"),
			expected: "parse orders column 'order_approved_at': required column is missing",
		},
		{
			name: "bad value",
			err: errors.NewParseError("orders", "order_purchase_timestamp", 7,
				"2017/10/02", "timestamp does not match layout"),
			expected: `parse orders column 'order_purchase_timestamp' row 7: timestamp does not match layout (value "2017/10/02")`,
		},
		{
			name: "with cause",
			err: &errors.ParseError{
				Column:  "price",
				Row:     2,
				Message: "invalid number",
				Cause:   stderrors.New("strconv failure"),
			},
			expected: "parse input column 'price' row 2: invalid number: strconv failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestParseError_Is(t *testing.T) {
	err := fmt.Errorf("loading: %w", errors.NewMissingColumnError("customers", "customer_id"))

	assert.ErrorIs(t, err, errors.ErrParse)
	assert.NotErrorIs(t, err, errors.ErrEmptyGroup)

	var parseErr *errors.ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "customer_id", parseErr.Column)
}

func TestEmptyGroupError(t *testing.T) {
	err := errors.NewEmptyGroupError("quantile", "total_spent")
	assert.Equal(t, "quantile over column 'total_spent': no rows to aggregate", err.Error())
	assert.Equal(t, "mode: no rows to aggregate", errors.NewEmptyGroupError("mode", "").Error())

	wrapped := fmt.Errorf("segmenting: %w", err)
	assert.ErrorIs(t, wrapped, errors.ErrEmptyGroup)
	assert.NotErrorIs(t, wrapped, errors.ErrParse)
}

func TestJoinIntegrityWarning_String(t *testing.T) {
	w := errors.JoinIntegrityWarning{
		Join:    "order_items -> products",
		Key:     "product_id",
		Missing: 3,
		Example: "p-9",
	}
	assert.Equal(t, `order_items -> products: 3 unmatched product_id (e.g. "p-9")`, w.String())

	w.Example = ""
	assert.Equal(t, "order_items -> products: 3 unmatched product_id", w.String())
}
