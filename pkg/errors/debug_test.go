package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpExtractsPgxDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "orders_razorpay_payment_id_key",
		TableName:      "orders",
		Message:        "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeStorage, fmt.Errorf("update order: %w", pgErr), "mark order paid")

	d := Dump(err)
	assert.Equal(t, CodeStorage, d.Code)
	assert.True(t, d.Retryable)
	assert.Equal(t, "23505", d.PGCode)
	assert.Equal(t, "orders_razorpay_payment_id_key", d.PGConstraint)
	assert.True(t, d.UniqueViolation)
	require.Len(t, d.Chain, 3)
}

func TestDumpExtractsPqDiagnostics(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23503", Table: "inventory_history", Message: "fk"})

	d := Dump(err)
	assert.Equal(t, "23503", d.PGCode)
	assert.Equal(t, "inventory_history", d.PGTable)
	assert.False(t, d.UniqueViolation)
	assert.Empty(t, d.Code)
}

func TestDumpNil(t *testing.T) {
	assert.Equal(t, ErrorDump{}, Dump(nil))
}
