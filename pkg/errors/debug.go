package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the loggable shape of an error chain. Postgres fields are
// filled from whichever driver produced the error.
type ErrorDump struct {
	TopMessage      string   `json:"top_message"`
	Code            Code     `json:"code,omitempty"`
	Retryable       bool     `json:"retryable"`
	Chain           []string `json:"chain,omitempty"`
	PGCode          string   `json:"pg_code,omitempty"`
	PGConstraint    string   `json:"pg_constraint,omitempty"`
	PGTable         string   `json:"pg_table,omitempty"`
	PGColumn        string   `json:"pg_column,omitempty"`
	PGDetail        string   `json:"pg_detail,omitempty"`
	PGMessage       string   `json:"pg_message,omitempty"`
	UniqueViolation bool     `json:"unique_violation,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Retryable: IsRetryable(err)}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.fillPostgres(err)
	d.UniqueViolation = d.PGCode == pgerrcode.UniqueViolation
	return d
}

func (d *ErrorDump) fillPostgres(err error) {
	if pgx := (*pgconn.PgError)(nil); stdErrors.As(err, &pgx) {
		d.PGCode, d.PGMessage, d.PGDetail = pgx.Code, pgx.Message, pgx.Detail
		d.PGConstraint, d.PGTable, d.PGColumn = pgx.ConstraintName, pgx.TableName, pgx.ColumnName
		return
	}
	if pqErr := (*pq.Error)(nil); stdErrors.As(err, &pqErr) {
		d.PGCode, d.PGMessage, d.PGDetail = string(pqErr.Code), pqErr.Message, pqErr.Detail
		d.PGConstraint, d.PGTable, d.PGColumn = pqErr.Constraint, pqErr.Table, pqErr.Column
	}
}
