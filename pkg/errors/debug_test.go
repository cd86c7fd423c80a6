package errors

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectFlattensChain(t *testing.T) {
	inner := errors.New("row locked")
	err := Wrap(CodeDependency, inner, "reserve stock")

	report := Inspect(err)

	assert.Equal(t, CodeDependency, report.Code)
	assert.Contains(t, report.Message, "reserve stock")
	require.Len(t, report.Chain, 2)
	assert.Nil(t, report.PG)

	fields := report.Fields()
	assert.Equal(t, report.Message, fields["error"])
	assert.NotContains(t, fields, "pg_code")
}

func TestInspectSurfacesPostgresDetail(t *testing.T) {
	driverErr := &pq.Error{
		Code:       "23505",
		Constraint: "orders_order_number_key",
		Table:      "orders",
	}
	err := Wrap(CodeDependency, driverErr, "create order")

	report := Inspect(err)

	require.NotNil(t, report.PG)
	assert.Equal(t, "23505", report.PG.Code)
	assert.Equal(t, "orders_order_number_key", report.PG.Constraint)

	fields := report.Fields()
	assert.Equal(t, "23505", fields["pg_code"])
	assert.Equal(t, "orders", fields["pg_table"])
}

func TestInspectNil(t *testing.T) {
	report := Inspect(nil)
	assert.Empty(t, report.Message)
	assert.Empty(t, report.Chain)
	assert.Nil(t, report.PG)
}
