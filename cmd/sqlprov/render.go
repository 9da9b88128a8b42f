package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/provider"
	"github.com/syssam/sqlprov/query"
	"github.com/syssam/sqlprov/schema"
)

var (
	nameColor  = color.New(color.FgCyan, color.Bold)
	paramColor = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
)

func (c *cli) renderCmd() *cobra.Command {
	var (
		schemaPath  string
		queriesPath string
		watchFiles  bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the SQL and parameters of declared queries",
		Long: `Render reads a declared schema and a query document and prints the SQL
statement and parameters of every query for the configured dialect.

Examples:
  sqlprov render --schema schema.yaml --queries queries.yaml
  sqlprov render --dialect mssql
  sqlprov render --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			run := func() error {
				return renderFiles(cmd.Context(), out, c.cfg, c.log, schemaPath, queriesPath)
			}
			if !watchFiles {
				return run()
			}
			if err := run(); err != nil {
				errColor.Fprintln(out, err)
			}
			return watch(cmd.Context(), c.log, []string{schemaPath, queriesPath}, func() {
				fmt.Fprintln(out)
				if err := run(); err != nil {
					errColor.Fprintln(out, err)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "schema.yaml", "declared schema file")
	cmd.Flags().StringVarP(&queriesPath, "queries", "q", "queries.yaml", "query document file")
	cmd.Flags().BoolVarP(&watchFiles, "watch", "w", false, "render again whenever an input file changes")
	return cmd
}

// readSchema decodes and validates a declared schema for cfg.Dialect.
func readSchema(cfg sqlprov.Config, path string) ([]*schema.Table, *schema.ValidationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	tables, err := schema.DecodeYAML(f, schema.NewMapper(cfg.Dialect))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return tables, schema.ValidateSchema(tables), nil
}

// renderFiles renders every query of queriesPath against the schema of
// schemaPath. Queries that fail are reported and the rest still render.
func renderFiles(ctx context.Context, out io.Writer, cfg sqlprov.Config, log *zap.Logger, schemaPath, queriesPath string) error {
	tables, res, err := readSchema(cfg, schemaPath)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	sc := schema.NewCache()
	sc.PutTables(tables...)
	p, err := provider.New(cfg, sc, provider.WithLogger(log))
	if err != nil {
		return err
	}

	f, err := os.Open(queriesPath)
	if err != nil {
		return err
	}
	defer f.Close()
	doc, err := query.DecodeYAML(f)
	if err != nil {
		return fmt.Errorf("%s: %w", queriesPath, err)
	}

	var errs []error
	for i, qd := range doc.Queries {
		name := qd.Name
		if name == "" {
			name = fmt.Sprintf("query %d", i+1)
		}
		if err := renderQuery(ctx, out, p, name, qd); err != nil {
			errColor.Fprintf(out, "-- %s: %v\n\n", name, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	log.Debug("rendered queries",
		zap.Int("count", len(doc.Queries)),
		zap.Int("failed", len(errs)),
		zap.String("dialect", cfg.Dialect),
	)
	if len(errs) > 0 {
		return sqlprov.NewAggregateError(errs...)
	}
	return nil
}

func renderQuery(ctx context.Context, out io.Writer, p *provider.Provider, name string, qd query.QueryDoc) error {
	q, err := qd.Build(p.Schema())
	if err != nil {
		return err
	}
	render := p.Select
	if qd.Delete {
		render = p.Delete
	}
	stmt, err := render(ctx, q)
	if err != nil {
		return err
	}
	nameColor.Fprintf(out, "-- %s\n", name)
	fmt.Fprintf(out, "%s;\n", stmt.SQL)
	for i, prm := range stmt.Params {
		label := fmt.Sprintf("#%d", i+1)
		if prm.Name != "" {
			label = "@" + prm.Name
		}
		paramColor.Fprintf(out, "--   %s = %#v (%s)\n", label, prm.Value, prm.Type)
	}
	fmt.Fprintln(out)
	return nil
}

// watch calls fn whenever one of paths is written or replaced, until ctx
// is done. The parent directories are watched so that editors replacing
// files by rename are noticed.
func watch(ctx context.Context, log *zap.Logger, paths []string, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	files := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		files[abs] = true
		if err := w.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
	}
	log.Info("watching for changes", zap.Strings("files", paths))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !files[filepath.Clean(ev.Name)] || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			log.Debug("file changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
			fn()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		}
	}
}
