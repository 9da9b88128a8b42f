package sqlgen

import (
	stdsql "database/sql"
	"strconv"
	"strings"

	"github.com/syssam/sqlprov"
)

// KeyMode tells how an INSERT reports the generated key.
type KeyMode uint8

// Key capture modes.
const (
	// KeyNone means the statement reports no key.
	KeyNone KeyMode = iota
	// KeyReturning means the statement returns the key columns as a row.
	KeyReturning
	// KeyLastInsertID means the key is read from the driver result.
	KeyLastInsertID
)

// Statement is a finalized SQL statement. Params are in placeholder order.
type Statement struct {
	SQL        string
	Params     []Param
	Keys       KeyMode
	KeyColumns []string // Columns reported by Keys, in result order
	named      bool
}

// Args returns the driver arguments of the statement.
func (s *Statement) Args() []any {
	args := make([]any, len(s.Params))
	for i, p := range s.Params {
		if s.named {
			args[i] = stdsql.Named(p.Name, p.Value)
		} else {
			args[i] = p.Value
		}
	}
	return args
}

// finalize numbers the parameter markers of f from left to right.
func finalize(d Dialect, f Frag) (*Statement, error) {
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(f.SQL) + 2*len(f.Params))
	params := make([]Param, len(f.Params))
	copy(params, f.Params)
	for i := 0; i < len(f.SQL); i++ {
		if f.SQL[i] != marker[0] {
			b.WriteByte(f.SQL[i])
			continue
		}
		n++
		b.WriteString(d.Placeholder(n))
	}
	if n != len(params) {
		return nil, sqlprov.NewInvariantError("parameter count", "%d placeholder(s) for %d parameter(s)", n, len(params))
	}
	if d.NamedParams() {
		for i := range params {
			params[i].Name = "p" + strconv.Itoa(i+1)
		}
	}
	return &Statement{SQL: b.String(), Params: params, named: d.NamedParams()}, nil
}
