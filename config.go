package sqlprov

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Supported dialect names. They match the names in package dialect.
var supportedDialects = []string{"postgres", "mysql", "sqlite3", "mssql"}

// Config is the provider configuration. It is usually read from a
// sqlprov.yaml file by the command line tool, but can be built in code.
type Config struct {
	// Dialect is the target SQL dialect: postgres, mysql, sqlite3 or mssql.
	Dialect string `mapstructure:"dialect" yaml:"dialect"`

	// ServerVersion is the major version of the target server. It only
	// matters where a dialect changes behaviour across versions, e.g.
	// SQL Server before 11 (2012) lacks OFFSET/FETCH.
	ServerVersion int `mapstructure:"server_version" yaml:"server_version"`

	// CacheSize is the number of generated statements kept in memory.
	// Zero disables the statement cache.
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`

	// SlowThreshold marks statements slower than this as slow in the
	// executor statistics. Zero disables slow statement logging.
	SlowThreshold time.Duration `mapstructure:"slow_threshold" yaml:"slow_threshold"`

	// LogLevel must be one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// LogFormat is either "console" or "json".
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Dialect:       "postgres",
		CacheSize:     1000,
		SlowThreshold: 100 * time.Millisecond,
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if !slices.Contains(supportedDialects, c.Dialect) {
		return fmt.Errorf("sqlprov: config: unsupported dialect %q (use %s)", c.Dialect, strings.Join(supportedDialects, ", "))
	}
	if c.ServerVersion < 0 {
		return fmt.Errorf("sqlprov: config: negative server_version %d", c.ServerVersion)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("sqlprov: config: negative cache_size %d", c.CacheSize)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("sqlprov: config: invalid log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("sqlprov: config: invalid log_format %q", c.LogFormat)
	}
	return nil
}
