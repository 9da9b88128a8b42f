package sqlprov_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlprov"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, sqlprov.DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*sqlprov.Config)
		errMsg string
	}{
		{"dialect", func(c *sqlprov.Config) { c.Dialect = "oracle" }, `unsupported dialect "oracle"`},
		{"version", func(c *sqlprov.Config) { c.ServerVersion = -1 }, "negative server_version"},
		{"cache", func(c *sqlprov.Config) { c.CacheSize = -5 }, "negative cache_size"},
		{"level", func(c *sqlprov.Config) { c.LogLevel = "trace" }, `invalid log_level "trace"`},
		{"format", func(c *sqlprov.Config) { c.LogFormat = "xml" }, `invalid log_format "xml"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := sqlprov.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCacheKeyString(t *testing.T) {
	t.Parallel()

	k := sqlprov.CacheKey{Dialect: "mssql", Version: 10, Mode: "select", Hash: 255}
	assert.Equal(t, "mssql:10:select:ff", k.String())
}
