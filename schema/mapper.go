package schema

import (
	"strings"
	"sync"

	"github.com/syssam/sqlprov/dialect"
)

// Mapper resolves native type names of one dialect to type mappings.
// It is safe for concurrent use.
type Mapper struct {
	dialect string
	mu      sync.RWMutex
	types   map[string]TypeMapping
}

// NewMapper returns a Mapper preloaded with the builtin types of the dialect.
func NewMapper(name string) *Mapper {
	m := &Mapper{dialect: name, types: make(map[string]TypeMapping)}
	for _, t := range builtinTypes[name] {
		m.types[t.DBType] = t
	}
	return m
}

// Dialect returns the dialect name of the mapper.
func (m *Mapper) Dialect() string { return m.dialect }

// Register adds or replaces the mapping of a native type.
func (m *Mapper) Register(t TypeMapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.DBType = NormalizeType(t.DBType)
	m.types[t.DBType] = t
}

// Map resolves a native type name such as "varchar(50)" or "NUMERIC(10, 2)".
func (m *Mapper) Map(dbType string) (TypeMapping, error) {
	key := NormalizeType(dbType)
	m.mu.RLock()
	t, ok := m.types[key]
	m.mu.RUnlock()
	if !ok || !t.Valid() {
		return TypeMapping{}, &LookupError{DBType: dbType}
	}
	return t, nil
}

// NormalizeType lower-cases a native type name and strips its modifiers
// (size, precision, array and unsigned).
func NormalizeType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(s[i:], ')'); j >= 0 {
			rest = s[i+j+1:]
		}
		s = strings.TrimSpace(s[:i]) + rest
	}
	s = strings.TrimSuffix(s, "[]")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSuffix(s, " unsigned")
}

func mapping(db, goType string, dt DataType, code ...int) TypeMapping {
	t := TypeMapping{DBType: db, GoType: goType, DataType: dt}
	if len(code) > 0 {
		t.ProviderType, t.HasProviderType = code[0], true
	}
	return t
}

// builtinTypes holds the native types per dialect. Provider codes are
// Postgres OIDs, MySQL field types and SQL Server SqlDbType values.
var builtinTypes = map[string][]TypeMapping{
	dialect.Postgres: {
		mapping("boolean", "bool", Bool, 16),
		mapping("bool", "bool", Bool, 16),
		mapping("bytea", "[]byte", Bytes, 17),
		mapping("bigint", "int64", Int64, 20),
		mapping("int8", "int64", Int64, 20),
		mapping("bigserial", "int64", Int64, 20),
		mapping("smallint", "int16", Int, 21),
		mapping("int2", "int16", Int, 21),
		mapping("integer", "int32", Int, 23),
		mapping("int", "int32", Int, 23),
		mapping("int4", "int32", Int, 23),
		mapping("serial", "int32", Int, 23),
		mapping("text", "string", String, 25),
		mapping("json", "json.RawMessage", JSON, 114),
		mapping("real", "float32", Float, 700),
		mapping("float4", "float32", Float, 700),
		mapping("double precision", "float64", Float, 701),
		mapping("float8", "float64", Float, 701),
		mapping("character", "string", String, 1042),
		mapping("char", "string", String, 1042),
		mapping("character varying", "string", String, 1043),
		mapping("varchar", "string", String, 1043),
		mapping("date", "time.Time", Date, 1082),
		mapping("timestamp", "time.Time", Time, 1114),
		mapping("timestamp without time zone", "time.Time", Time, 1114),
		mapping("timestamptz", "time.Time", Time, 1184),
		mapping("timestamp with time zone", "time.Time", Time, 1184),
		mapping("numeric", "float64", Decimal, 1700),
		mapping("decimal", "float64", Decimal, 1700),
		mapping("money", "float64", Decimal, 790),
		mapping("uuid", "uuid.UUID", UUID, 2950),
		mapping("jsonb", "json.RawMessage", JSON, 3802),
	},
	dialect.MySQL: {
		mapping("tinyint", "int8", Int, 1),
		mapping("bool", "bool", Bool, 1),
		mapping("boolean", "bool", Bool, 1),
		mapping("smallint", "int16", Int, 2),
		mapping("int", "int32", Int, 3),
		mapping("integer", "int32", Int, 3),
		mapping("mediumint", "int32", Int, 9),
		mapping("float", "float32", Float, 4),
		mapping("double", "float64", Float, 5),
		mapping("timestamp", "time.Time", Time, 7),
		mapping("bigint", "int64", Int64, 8),
		mapping("date", "time.Time", Date, 10),
		mapping("datetime", "time.Time", Time, 12),
		mapping("varchar", "string", String, 15),
		mapping("json", "json.RawMessage", JSON, 245),
		mapping("decimal", "float64", Decimal, 246),
		mapping("numeric", "float64", Decimal, 246),
		mapping("text", "string", String, 252),
		mapping("longtext", "string", String, 252),
		mapping("mediumtext", "string", String, 252),
		mapping("blob", "[]byte", Bytes, 252),
		mapping("longblob", "[]byte", Bytes, 252),
		mapping("varbinary", "[]byte", Bytes, 253),
		mapping("binary", "[]byte", Bytes, 254),
		mapping("char", "string", String, 254),
	},
	dialect.SQLite: {
		mapping("integer", "int64", Int64),
		mapping("int", "int64", Int64),
		mapping("bigint", "int64", Int64),
		mapping("smallint", "int64", Int64),
		mapping("boolean", "bool", Bool),
		mapping("bool", "bool", Bool),
		mapping("real", "float64", Float),
		mapping("double", "float64", Float),
		mapping("float", "float64", Float),
		mapping("numeric", "float64", Decimal),
		mapping("decimal", "float64", Decimal),
		mapping("text", "string", String),
		mapping("varchar", "string", String),
		mapping("char", "string", String),
		mapping("blob", "[]byte", Bytes),
		mapping("date", "time.Time", Date),
		mapping("datetime", "time.Time", Time),
		mapping("timestamp", "time.Time", Time),
		mapping("uuid", "uuid.UUID", UUID),
		mapping("json", "json.RawMessage", JSON),
	},
	dialect.MSSQL: {
		mapping("bigint", "int64", Int64, 0),
		mapping("binary", "[]byte", Bytes, 1),
		mapping("bit", "bool", Bool, 2),
		mapping("char", "string", String, 3),
		mapping("datetime", "time.Time", Time, 4),
		mapping("decimal", "float64", Decimal, 5),
		mapping("numeric", "float64", Decimal, 5),
		mapping("float", "float64", Float, 6),
		mapping("image", "[]byte", Bytes, 7),
		mapping("int", "int32", Int, 8),
		mapping("money", "float64", Decimal, 9),
		mapping("nchar", "string", String, 10),
		mapping("ntext", "string", String, 11),
		mapping("nvarchar", "string", String, 12),
		mapping("real", "float32", Float, 13),
		mapping("uniqueidentifier", "uuid.UUID", UUID, 14),
		mapping("smalldatetime", "time.Time", Time, 15),
		mapping("smallint", "int16", Int, 16),
		mapping("smallmoney", "float64", Decimal, 17),
		mapping("text", "string", String, 18),
		mapping("tinyint", "uint8", Int, 20),
		mapping("varbinary", "[]byte", Bytes, 21),
		mapping("varchar", "string", String, 22),
		mapping("xml", "string", String, 25),
		mapping("date", "time.Time", Date, 31),
		mapping("datetime2", "time.Time", Time, 33),
		mapping("datetimeoffset", "time.Time", Time, 34),
	},
}
