package authz

import (
	"fmt"

	"github.com/rs/zerolog"
)

// OperationNotAllowedError occurs when a table's policy has no entry for the
// requested operation. This is table-level denial: a hard failure, distinct
// from an entry with an empty rule list (unconditional allow) and from
// row-level filtering (silent).
type OperationNotAllowedError struct {
	error
	table     string
	operation Operation
}

func NewOperationNotAllowedErr(table string, operation Operation) OperationNotAllowedError {
	return OperationNotAllowedError{
		error:     fmt.Errorf("operation %s is not allowed on table %q", operation, table),
		table:     table,
		operation: operation,
	}
}

// Table returns the table whose policy lacked an entry.
func (err OperationNotAllowedError) Table() string { return err.table }

func (err OperationNotAllowedError) MarshalZerologObject(e *zerolog.Event) {
	e.Str("error", err.Error()).Str("table", err.table).Str("operation", string(err.operation))
}

// AccessDeniedError occurs when a non-fieldCheck rule list evaluates to Deny
// for the whole operation.
type AccessDeniedError struct {
	error
	table     string
	operation Operation
}

func NewAccessDeniedErr(table string, operation Operation) AccessDeniedError {
	return AccessDeniedError{
		error:     fmt.Errorf("access denied for %s on table %q", operation, table),
		table:     table,
		operation: operation,
	}
}

func (err AccessDeniedError) MarshalZerologObject(e *zerolog.Event) {
	e.Str("error", err.Error()).Str("table", err.table).Str("operation", string(err.operation))
}

// MissingContextError occurs when a customSql template references a user
// context field that is undefined.
type MissingContextError struct {
	error
	field    string
	template string
}

func NewMissingContextErr(field, template string) MissingContextError {
	return MissingContextError{
		error:    fmt.Errorf("custom sql rule references undefined context field %q", field),
		field:    field,
		template: template,
	}
}

// Field returns the undefined context field.
func (err MissingContextError) Field() string { return err.field }

func (err MissingContextError) MarshalZerologObject(e *zerolog.Event) {
	e.Str("error", err.Error()).Str("field", err.field).Str("template", err.template)
}
