package schema

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every *LookupError.
var ErrNotFound = errors.New("schema: not found")

// LookupError reports a table, column or type that is absent from the
// schema. Soft lookups report a miss with a boolean instead.
type LookupError struct {
	Table  string // Full table name
	Column string // Set for column misses
	DBType string // Set for unmapped native types
}

// Error returns the error string.
func (e *LookupError) Error() string {
	switch {
	case e.DBType != "" && e.Column != "":
		return fmt.Sprintf("schema: no type mapping for %q (column %q of %q)", e.DBType, e.Column, e.Table)
	case e.DBType != "":
		return fmt.Sprintf("schema: no type mapping for %q", e.DBType)
	case e.Column != "":
		return fmt.Sprintf("schema: column %q not found in %q", e.Column, e.Table)
	default:
		return fmt.Sprintf("schema: table %q not found", e.Table)
	}
}

// Is reports whether the target error matches LookupError.
func (e *LookupError) Is(err error) bool {
	return err == ErrNotFound
}

// IsLookupError returns true if the error is a *LookupError.
func IsLookupError(err error) bool {
	var e *LookupError
	return errors.As(err, &e)
}
