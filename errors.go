package sqlprov

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for the failure classes of the provider.
var (
	// ErrUnsupported is returned when the generator has no rendering rule
	// for an operator or query shape.
	ErrUnsupported = errors.New("sqlprov: unsupported construct")

	// ErrInvariant is returned when a caller breaks a contract of the
	// generator or the flush executor, e.g. paging without ordering.
	ErrInvariant = errors.New("sqlprov: invariant violation")

	// ErrNotFound is returned when an UPDATE or DELETE of a tracked entity
	// matched no row.
	ErrNotFound = errors.New("sqlprov: entity not found")
)

// UnsupportedError reports a construct that no renderer could handle.
// It is always fatal to the single generation call that produced it.
type UnsupportedError struct {
	Construct string // Short description, e.g. "operation" or "join"
	Node      any    // The offending node, for diagnostics
}

// Error returns the error string.
func (e *UnsupportedError) Error() string {
	if e.Node != nil {
		return fmt.Sprintf("sqlprov: unsupported %s: %v", e.Construct, e.Node)
	}
	return fmt.Sprintf("sqlprov: unsupported %s", e.Construct)
}

// Is reports whether the target error matches UnsupportedError.
func (e *UnsupportedError) Is(err error) bool {
	return err == ErrUnsupported
}

// NewUnsupportedError returns a new UnsupportedError.
func NewUnsupportedError(construct string, node any) *UnsupportedError {
	return &UnsupportedError{Construct: construct, Node: node}
}

// IsUnsupported returns true if the error is an UnsupportedError.
func IsUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupported)
}

// InvariantError signals caller misuse rather than a data error.
type InvariantError struct {
	Rule   string // Name of the broken rule, e.g. "paging requires ordering"
	Detail string
}

// Error returns the error string.
func (e *InvariantError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("sqlprov: %s: %s", e.Rule, e.Detail)
	}
	return fmt.Sprintf("sqlprov: %s", e.Rule)
}

// Is reports whether the target error matches InvariantError.
func (e *InvariantError) Is(err error) bool {
	return err == ErrInvariant
}

// NewInvariantError returns a new InvariantError.
func NewInvariantError(rule, format string, args ...any) *InvariantError {
	return &InvariantError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// IsInvariant returns true if the error is an InvariantError.
func IsInvariant(err error) bool {
	if err == nil {
		return false
	}
	var e *InvariantError
	return errors.As(err, &e) || errors.Is(err, ErrInvariant)
}

// NotFoundError represents a write that matched no row.
type NotFoundError struct {
	table string
	key   any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.key != nil {
		return fmt.Sprintf("sqlprov: %s not found (key=%v)", e.table, e.key)
	}
	return fmt.Sprintf("sqlprov: %s not found", e.table)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Table returns the table full name.
func (e *NotFoundError) Table() string {
	return e.table
}

// Key returns the key that was searched for, if available.
func (e *NotFoundError) Key() any {
	return e.key
}

// NewNotFoundError returns a new NotFoundError for the given table and key.
func NewNotFoundError(table string, key any) *NotFoundError {
	return &NotFoundError{table: table, key: key}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("sqlprov: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// MutationError wraps a statement execution failure of the flush executor.
// The underlying driver error is reachable with errors.Unwrap.
type MutationError struct {
	Entity string // Table full name
	Op     string // "insert", "update" or "delete"
	Index  int    // Position of the entity in the batch
	Err    error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("sqlprov: %s %s (batch position %d): %v", e.Op, e.Entity, e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, index int, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Index: index, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("sqlprov: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "sqlprov: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("sqlprov: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
