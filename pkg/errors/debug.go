package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Report is the loggable shape of an error chain.
type Report struct {
	Message string
	Code    Code
	Chain   []string
	PG      *PGReport
}

// PGReport carries the postgres driver detail that lib/pq and pgx both
// expose under different types.
type PGReport struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// Inspect flattens an error chain for structured logging, surfacing
// postgres driver detail when a driver error is wrapped anywhere in it.
func Inspect(err error) Report {
	if err == nil {
		return Report{}
	}

	r := Report{Message: err.Error()}
	if te := As(err); te != nil {
		r.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		r.Chain = append(r.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	r.PG = pgReport(err)
	return r
}

func pgReport(err error) *PGReport {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGReport{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGReport{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}

	return nil
}

// Fields renders the report as logger fields, omitting the postgres
// keys when no driver error was found.
func (r Report) Fields() map[string]any {
	fields := map[string]any{
		"error":       r.Message,
		"error_code":  r.Code,
		"error_chain": r.Chain,
	}
	if r.PG != nil {
		fields["pg_code"] = r.PG.Code
		fields["pg_constraint"] = r.PG.Constraint
		fields["pg_table"] = r.PG.Table
		fields["pg_column"] = r.PG.Column
		fields["pg_detail"] = r.PG.Detail
		fields["pg_message"] = r.PG.Message
	}
	return fields
}
