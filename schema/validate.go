package schema

import (
	"fmt"
	"strings"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the errors as a single error, or nil.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return fmt.Errorf("schema: %d validation error(s):\n%s", len(r.Errors), r)
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	write := func(title string, list []*ValidationError) {
		if len(list) == 0 {
			return
		}
		sb.WriteString(title)
		sb.WriteString(":\n")
		for _, e := range list {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	write("Errors", r.Errors)
	write("Warnings", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func (r *ValidationResult) errorf(table, column, format string, args ...any) {
	r.Errors = append(r.Errors, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warnf(table, column, format string, args ...any) {
	r.Warnings = append(r.Warnings, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

// unsafeIdentifier reports names that cannot be quoted safely.
func unsafeIdentifier(s string) bool {
	return s == "" || strings.ContainsAny(s, "\x00\x1a")
}

// ValidateTable validates a single table definition.
func ValidateTable(t *Table) *ValidationResult {
	result := &ValidationResult{}
	name := t.FullName()
	if unsafeIdentifier(t.Name) || (t.Schema != "" && unsafeIdentifier(t.Schema)) {
		result.errorf(name, "", "invalid table name %q", name)
	}

	if len(t.PrimaryKey) == 0 && t.Kind == BaseTable {
		result.warnf(name, "", "table has no primary key")
	}

	colNames := make(map[string]bool)
	for _, c := range t.Columns {
		f := fold(c.Name)
		if unsafeIdentifier(c.Name) {
			result.errorf(name, c.Name, "invalid column name")
		}
		if colNames[f] {
			result.errorf(name, c.Name, "duplicate column name")
		}
		colNames[f] = true
		if !c.Type.Valid() {
			result.errorf(name, c.Name, "no type mapping for %q", c.Type.DBType)
		}
		if c.PrimaryKey && c.Nullable {
			result.warnf(name, c.Name, "nullable primary key column")
		}
	}

	for _, k := range t.PrimaryKey {
		if !colNames[fold(k)] {
			result.errorf(name, "", "primary key references non-existent column %q", k)
		}
	}

	relNames := make(map[string]bool)
	for _, r := range t.Relationships {
		if relNames[r.Name] {
			result.errorf(name, "", "duplicate relationship name: %s", r.Name)
		}
		relNames[r.Name] = true
		if _, err := r.Pairs(); err != nil {
			result.errorf(name, "", "%v", err)
		}
		for _, col := range r.Columns {
			if !colNames[fold(col)] {
				result.errorf(name, "", "relationship %q references non-existent column %q", r.Name, col)
			}
		}
	}
	return result
}

// ValidateSchema validates all tables and the relationships between them.
func ValidateSchema(tables []*Table) *ValidationResult {
	result := &ValidationResult{}

	byName := make(map[string]*Table, len(tables))
	for _, t := range tables {
		f := fold(t.FullName())
		if _, ok := byName[f]; ok {
			result.errorf(t.FullName(), "", "duplicate table name")
		}
		byName[f] = t

		tableResult := ValidateTable(t)
		result.Errors = append(result.Errors, tableResult.Errors...)
		result.Warnings = append(result.Warnings, tableResult.Warnings...)
	}

	for _, t := range tables {
		for _, r := range t.Relationships {
			ref, ok := byName[fold(r.RefFullName())]
			if !ok {
				result.errorf(t.FullName(), "", "relationship %q references non-existent table %q", r.Name, r.RefFullName())
				continue
			}
			for _, col := range r.RefColumns {
				if _, ok := ref.Column(col); !ok {
					result.errorf(t.FullName(), "", "relationship %q references non-existent column %q of %q", r.Name, col, ref.FullName())
				}
			}
		}
	}
	return result
}
