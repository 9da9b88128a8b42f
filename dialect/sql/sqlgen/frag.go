package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/query"
	"github.com/syssam/sqlprov/schema"
)

// marker stands for one bound parameter inside a Frag. It is replaced by the
// dialect placeholder when the statement is finalized.
const marker = "\x1a"

// Direction is the direction of a statement parameter.
type Direction uint8

// Parameter directions.
const (
	In Direction = iota
	Out
	InOut
	Return
)

// Param is one bound statement parameter.
type Param struct {
	Name      string // Set for dialects with named placeholders
	Value     any
	Direction Direction
	Type      schema.DataType
}

// Frag is a piece of SQL text with the parameters it binds, in the order
// their markers appear in the text.
type Frag struct {
	SQL    string
	Params []Param
}

// Text returns a fragment without parameters.
func Text(s string) Frag { return Frag{SQL: s} }

// Bind returns a fragment binding v as a single parameter.
func Bind(v any, t schema.DataType) Frag {
	return Frag{SQL: marker, Params: []Param{{Value: v, Type: t}}}
}

// Concat appends fragments without separator.
func Concat(frags ...Frag) Frag {
	return Join("", frags...)
}

// Join appends fragments separated by sep.
func Join(sep string, frags ...Frag) Frag {
	var (
		b      strings.Builder
		params []Param
	)
	for i, f := range frags {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(f.SQL)
		params = append(params, f.Params...)
	}
	return Frag{SQL: b.String(), Params: params}
}

// Empty reports whether the fragment has no text.
func (f Frag) Empty() bool { return f.SQL == "" }

// Tmpl fills the positional references {0}, {1}, ... of format with args.
// An argument may be referenced any number of times; its parameters are
// repeated at each reference so text and parameter order stay aligned.
func Tmpl(format string, args ...Frag) Frag {
	var (
		b      strings.Builder
		params []Param
	)
	for i := 0; i < len(format); i++ {
		if format[i] != '{' {
			b.WriteByte(format[i])
			continue
		}
		j, n := i+1, 0
		for j < len(format) && format[j] >= '0' && format[j] <= '9' {
			n = n*10 + int(format[j]-'0')
			j++
		}
		if j == i+1 || j >= len(format) || format[j] != '}' {
			b.WriteByte('{')
			continue
		}
		if n >= len(args) {
			panic(fmt.Sprintf("sqlgen: template %q references argument %d of %d", format, n, len(args)))
		}
		b.WriteString(args[n].SQL)
		params = append(params, args[n].Params...)
		i = j
	}
	return Frag{SQL: b.String(), Params: params}
}

// splice turns a pre-rendered subquery into a fragment. The ? markers of the
// subquery outside quoted strings and identifiers become parameters.
func splice(sub query.Subquery) (Frag, error) {
	if strings.Contains(sub.SQL, marker) {
		return Frag{}, sqlprov.NewInvariantError("subquery text", "subquery contains a reserved control character")
	}
	var (
		b     strings.Builder
		n     int
		quote byte
	)
	params := make([]Param, 0, len(sub.Args))
	for i := 0; i < len(sub.SQL); i++ {
		c := sub.SQL[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '[':
			quote = ']'
		case c == '?':
			if n < len(sub.Args) {
				params = append(params, Param{Value: sub.Args[n], Type: typeOf(sub.Args[n])})
			}
			n++
			b.WriteString(marker)
			continue
		}
		b.WriteByte(c)
	}
	if n != len(sub.Args) {
		return Frag{}, sqlprov.NewInvariantError("subquery parameters", "%d placeholder(s) for %d argument(s)", n, len(sub.Args))
	}
	return Frag{SQL: b.String(), Params: params}, nil
}

// unsplice renders f back into the portable subquery form.
func unsplice(f Frag) query.Subquery {
	args := make([]any, len(f.Params))
	for i, p := range f.Params {
		args[i] = p.Value
	}
	return query.Subquery{SQL: strings.ReplaceAll(f.SQL, marker, "?"), Args: args}
}

// typeOf classifies a Go value bound without a column type.
func typeOf(v any) schema.DataType {
	switch v.(type) {
	case string, []rune:
		return schema.String
	case int, int8, int16, int32, uint8, uint16:
		return schema.Int
	case int64, uint, uint32, uint64:
		return schema.Int64
	case float32, float64:
		return schema.Float
	case bool:
		return schema.Bool
	case time.Time, *time.Time:
		return schema.Time
	case []byte:
		return schema.Bytes
	case uuid.UUID:
		return schema.UUID
	}
	return schema.Unknown
}
