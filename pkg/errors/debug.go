package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PGClass groups the SQLSTATEs the order and payment paths react to.
type PGClass string

const (
	PGClassNone          PGClass = ""
	PGClassUnique        PGClass = "unique_violation"
	PGClassCheck         PGClass = "check_violation"
	PGClassForeignKey    PGClass = "foreign_key_violation"
	PGClassSerialization PGClass = "serialization_failure"
	PGClassDeadlock      PGClass = "deadlock_detected"
	PGClassLockTimeout   PGClass = "lock_not_available"
	PGClassOther         PGClass = "other"
)

var pgClasses = map[string]PGClass{
	"23505": PGClassUnique,
	"23514": PGClassCheck,
	"23503": PGClassForeignKey,
	"40001": PGClassSerialization,
	"40P01": PGClassDeadlock,
	"55P03": PGClassLockTimeout,
}

// ClassifyPGCode maps a SQLSTATE to its class.
func ClassifyPGCode(code string) PGClass {
	if code == "" {
		return PGClassNone
	}
	if class, ok := pgClasses[code]; ok {
		return class
	}
	return PGClassOther
}

// Retryable reports whether the transaction can be rerun unchanged.
func (c PGClass) Retryable() bool {
	switch c {
	case PGClassSerialization, PGClassDeadlock, PGClassLockTimeout:
		return true
	}
	return false
}

// ErrorDump is the flattened view of an error written to request logs.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string  `json:"pg_code,omitempty"`
	PGClass      PGClass `json:"pg_class,omitempty"`
	PGRetryable  bool    `json:"pg_retryable,omitempty"`
	PGConstraint string  `json:"pg_constraint,omitempty"`
	PGTable      string  `json:"pg_table,omitempty"`
	PGColumn     string  `json:"pg_column,omitempty"`
	PGDetail     string  `json:"pg_detail,omitempty"`
	PGMessage    string  `json:"pg_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	if fillPG(&d, err) {
		d.PGClass = ClassifyPGCode(d.PGCode)
		d.PGRetryable = d.PGClass.Retryable()
	}
	return d
}

// PGClassOf returns the class of the first postgres error in err's chain.
func PGClassOf(err error) PGClass {
	var d ErrorDump
	if !fillPG(&d, err) {
		return PGClassNone
	}
	return ClassifyPGCode(d.PGCode)
}

// fillPG copies driver error fields from either pgx or lib/pq.
func fillPG(d *ErrorDump, err error) bool {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.PGCode, d.PGConstraint = pgxErr.Code, pgxErr.ConstraintName
		d.PGTable, d.PGColumn = pgxErr.TableName, pgxErr.ColumnName
		d.PGDetail, d.PGMessage = pgxErr.Detail, pgxErr.Message
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.PGCode, d.PGConstraint = string(pqErr.Code), pqErr.Constraint
		d.PGTable, d.PGColumn = pqErr.Table, pqErr.Column
		d.PGDetail, d.PGMessage = pqErr.Detail, pqErr.Message
		return true
	}
	return false
}
