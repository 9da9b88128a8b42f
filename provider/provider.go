// Package provider ties the pieces of sqlprov together for one database:
// the schema cache, the SQL generator of the configured dialect, a
// statement cache, statement statistics and the change set executor.
//
//	p, err := provider.New(cfg, tables, provider.WithDriver(drv))
//	if err != nil {
//		return err
//	}
//	rows, err := p.Rows(ctx, query.From("dbo.Employees").Where(...))
//
// A Provider is safe for concurrent use.
package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/changeset"
	"github.com/syssam/sqlprov/dialect"
	entsql "github.com/syssam/sqlprov/dialect/sql"
	"github.com/syssam/sqlprov/dialect/sql/sqlgen"
	"github.com/syssam/sqlprov/query"
	"github.com/syssam/sqlprov/schema"
)

// ErrNoDriver is returned by operations that need a database when the
// provider was built without one.
var ErrNoDriver = errors.New("provider: no driver configured")

// Provider renders and executes queries for one dialect and schema.
type Provider struct {
	cfg    sqlprov.Config
	schema *schema.Cache
	gen    *sqlgen.Generator
	stmts  *statements
	drv    *entsql.StatsDriver
	log    *zap.Logger
	cache  sqlprov.Cache[*sqlgen.Statement]
	raw    dialect.Driver

	// serial is set for dialects whose connections must not write
	// concurrently. Writes then hold mu.
	serial bool
	mu     sync.Mutex
}

// Option configures a Provider.
type Option func(*Provider) error

// WithLogger sets the logger of the provider and its executors.
func WithLogger(log *zap.Logger) Option {
	return func(p *Provider) error {
		if log == nil {
			return errors.New("provider: nil logger")
		}
		p.log = log
		return nil
	}
}

// WithDriver sets the database driver. Its dialect must match the
// configured one.
func WithDriver(drv dialect.Driver) Option {
	return func(p *Provider) error {
		if drv == nil {
			return errors.New("provider: nil driver")
		}
		p.raw = drv
		return nil
	}
}

// WithCache replaces the default statement cache.
func WithCache(c sqlprov.Cache[*sqlgen.Statement]) Option {
	return func(p *Provider) error {
		if c == nil {
			return errors.New("provider: nil cache")
		}
		p.cache = c
		return nil
	}
}

// New returns a provider for cfg over the tables of sc.
func New(cfg sqlprov.Config, sc *schema.Cache, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, errors.New("provider: nil schema cache")
	}
	d, err := sqlgen.NewDialect(cfg.Dialect, cfg.ServerVersion)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		cfg:    cfg,
		schema: sc,
		gen:    sqlgen.New(d, sc),
		log:    zap.NewNop(),
		serial: d.Name() == dialect.SQLite,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.cache == nil {
		if cfg.CacheSize > 0 {
			if p.cache, err = NewStatementCache(cfg.CacheSize); err != nil {
				return nil, fmt.Errorf("provider: statement cache: %w", err)
			}
		} else {
			p.cache = nopCache{}
		}
	}
	p.stmts = &statements{cache: p.cache, dialect: d.Name(), version: sc.Version()}
	if p.raw != nil {
		if got := entsql.Normalize(p.raw.Dialect()); got != d.Name() {
			return nil, fmt.Errorf("provider: driver dialect %q does not match %q", p.raw.Dialect(), d.Name())
		}
		p.drv = entsql.NewStatsDriver(p.raw,
			entsql.WithSlowThreshold(cfg.SlowThreshold),
			entsql.WithSlowQueryLog(p.log),
		)
	}
	return p, nil
}

// Config returns the provider configuration.
func (p *Provider) Config() sqlprov.Config { return p.cfg }

// Schema returns the schema cache.
func (p *Provider) Schema() *schema.Cache { return p.schema }

// Generator returns the SQL generator.
func (p *Provider) Generator() *sqlgen.Generator { return p.gen }

// Driver returns the measured driver, or nil.
func (p *Provider) Driver() *entsql.StatsDriver { return p.drv }

// Stats returns a snapshot of the statement statistics.
func (p *Provider) Stats() entsql.StatsSnapshot {
	if p.drv == nil {
		return entsql.StatsSnapshot{}
	}
	return p.drv.QueryStats().Stats()
}

// Lock acquires the provider write lock and returns its release function.
// Dialects that allow concurrent writers get a no-op lock.
func (p *Provider) Lock() (unlock func()) {
	if !p.serial {
		return func() {}
	}
	p.mu.Lock()
	return p.mu.Unlock
}

// Select renders q as a SELECT statement.
func (p *Provider) Select(ctx context.Context, q *query.Query) (*sqlgen.Statement, error) {
	return p.statement(ctx, modeSelect, q, p.gen.Select)
}

// Delete renders q as a DELETE statement.
func (p *Provider) Delete(ctx context.Context, q *query.Query) (*sqlgen.Statement, error) {
	return p.statement(ctx, modeDelete, q, p.gen.Delete)
}

// Subquery renders q for use inside another query. Subqueries are not
// cached; the enclosing statement is.
func (p *Provider) Subquery(ctx context.Context, q *query.Query) (query.Subquery, error) {
	if err := p.load(ctx, q); err != nil {
		return query.Subquery{}, err
	}
	return p.gen.Subquery(q)
}

func (p *Provider) statement(ctx context.Context, mode string, q *query.Query, render func(*query.Query) (*sqlgen.Statement, error)) (*sqlgen.Statement, error) {
	if err := p.load(ctx, q); err != nil {
		return nil, err
	}
	version := p.schema.Version()
	p.stmts.observe(version)
	k, cacheable := p.stmts.key(mode, version, q)
	if cacheable {
		if stmt, ok := p.stmts.get(k); ok {
			return stmt, nil
		}
	}
	stmt, err := render(q)
	if err != nil {
		return nil, err
	}
	if cacheable {
		p.stmts.add(k, stmt)
	}
	return stmt, nil
}

// load makes sure every table q references is in the schema cache.
func (p *Provider) load(ctx context.Context, q *query.Query) error {
	names := []string{q.Table}
	for _, s := range q.CrossJoins {
		names = append(names, s.Table)
	}
	for _, j := range q.Joins {
		names = append(names, j.Table)
	}
	for _, n := range names {
		if _, err := p.schema.Load(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// Rows runs q and returns its rows keyed by output name.
func (p *Provider) Rows(ctx context.Context, q *query.Query) ([]map[string]any, error) {
	if p.drv == nil {
		return nil, ErrNoDriver
	}
	stmt, err := p.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	var rows entsql.Rows
	if err := p.drv.Query(ctx, stmt.SQL, stmt.Args(), &rows); err != nil {
		return nil, err
	}
	return entsql.ScanMaps(rows)
}

// DeleteRows removes the rows matched by q and returns how many were
// deleted.
func (p *Provider) DeleteRows(ctx context.Context, q *query.Query) (int64, error) {
	if p.drv == nil {
		return 0, ErrNoDriver
	}
	stmt, err := p.Delete(ctx, q)
	if err != nil {
		return 0, err
	}
	defer p.Lock()()
	var res sql.Result
	if err := p.drv.Exec(ctx, stmt.SQL, stmt.Args(), &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Tracker returns a new change tracker over the provider schema.
func (p *Provider) Tracker() *changeset.Tracker {
	return changeset.NewTracker(p.schema)
}

// Executor returns a change set executor on the provider driver.
func (p *Provider) Executor(opts ...changeset.Option) (*changeset.Executor, error) {
	if p.drv == nil {
		return nil, ErrNoDriver
	}
	opts = append([]changeset.Option{changeset.WithLogger(p.log)}, opts...)
	return changeset.NewExecutor(p.drv, p.gen, opts...), nil
}

// Flush writes changes in one transaction, holding the write lock for
// dialects that need it.
func (p *Provider) Flush(ctx context.Context, changes []*changeset.Entity) error {
	x, err := p.Executor()
	if err != nil {
		return err
	}
	defer p.Lock()()
	return x.Flush(ctx, changes)
}

// PurgeCache drops all cached statements.
func (p *Provider) PurgeCache() {
	p.cache.Purge()
}
