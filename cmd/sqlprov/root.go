package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/syssam/sqlprov"
)

// cli holds the state shared by the commands of one invocation.
type cli struct {
	configPath string
	dialect    string
	cfg        sqlprov.Config
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cobra.EnableCommandSorting = false
	root := &cobra.Command{
		Use:           "sqlprov",
		Short:         "Render provider-agnostic queries to dialect SQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ./sqlprov.yaml)")
	root.PersistentFlags().StringVarP(&c.dialect, "dialect", "d", "", "override the configured dialect")

	root.AddCommand(c.renderCmd())
	root.AddCommand(c.validateCmd())
	root.AddCommand(versionCmd())
	return root
}

// setup reads the configuration and builds the logger.
func (c *cli) setup(logOut io.Writer) error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.dialect != "" {
		cfg.Dialect = c.dialect
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := newLogger(cfg, zapcore.AddSync(logOut))
	if err != nil {
		return err
	}
	c.cfg, c.log = cfg, log
	return nil
}

// newViper returns a viper instance with the defaults of sqlprov.Config.
func newViper() *viper.Viper {
	def := sqlprov.DefaultConfig()
	vi := viper.New()
	vi.SetDefault("dialect", def.Dialect)
	vi.SetDefault("server_version", def.ServerVersion)
	vi.SetDefault("cache_size", def.CacheSize)
	vi.SetDefault("slow_threshold", def.SlowThreshold)
	vi.SetDefault("log_level", def.LogLevel)
	vi.SetDefault("log_format", def.LogFormat)
	vi.SetEnvPrefix("SQLPROV")
	vi.AutomaticEnv()
	return vi
}

// loadConfig reads path, or sqlprov.yaml from the working directory when
// path is empty. A missing default file is not an error.
func loadConfig(path string) (sqlprov.Config, error) {
	vi := newViper()
	if path != "" {
		vi.SetConfigFile(path)
	} else {
		vi.SetConfigName("sqlprov")
		vi.SetConfigType("yaml")
		vi.AddConfigPath(".")
	}
	if err := vi.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return sqlprov.Config{}, fmt.Errorf("sqlprov: read config: %w", err)
		}
	}
	var cfg sqlprov.Config
	if err := vi.Unmarshal(&cfg); err != nil {
		return sqlprov.Config{}, fmt.Errorf("sqlprov: decode config: %w", err)
	}
	return cfg, nil
}

// newLogger builds a console or JSON logger at the configured level.
func newLogger(cfg sqlprov.Config, out zapcore.WriteSyncer) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		var err error
		if level, err = zapcore.ParseLevel(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	econf := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "ts",
		NameKey:        "logger",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	var enc zapcore.Encoder
	if cfg.LogFormat == "json" {
		enc = zapcore.NewJSONEncoder(econf)
	} else {
		econf.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(econf)
	}
	return zap.New(zapcore.NewCore(enc, out, level)), nil
}
