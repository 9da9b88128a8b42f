package sql

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/syssam/sqlprov/dialect"
)

// StatementKind classifies a statement by its leading keyword.
type StatementKind uint8

// Statement kinds.
const (
	OtherStatement StatementKind = iota
	SelectStatement
	InsertStatement
	UpdateStatement
	DeleteStatement
	numKinds
)

var kindNames = [...]string{
	OtherStatement:  "other",
	SelectStatement: "select",
	InsertStatement: "insert",
	UpdateStatement: "update",
	DeleteStatement: "delete",
}

func (k StatementKind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("StatementKind(%d)", k)
}

// KindOf returns the kind of a generated statement. Row-number paging
// wraps selects in a WITH clause, so WITH counts as a select.
func KindOf(query string) StatementKind {
	query = strings.TrimLeftFunc(query, unicode.IsSpace)
	end := strings.IndexFunc(query, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
	if end >= 0 {
		query = query[:end]
	}
	switch strings.ToUpper(query) {
	case "SELECT", "WITH":
		return SelectStatement
	case "INSERT":
		return InsertStatement
	case "UPDATE":
		return UpdateStatement
	case "DELETE":
		return DeleteStatement
	default:
		return OtherStatement
	}
}

// QueryStats holds statement execution statistics.
type QueryStats struct {
	queries  atomic.Int64
	execs    atomic.Int64
	duration atomic.Int64 // nanoseconds
	slow     atomic.Int64
	errors   atomic.Int64
	kinds    [numKinds]atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	snap := StatsSnapshot{
		TotalQueries:  s.queries.Load(),
		TotalExecs:    s.execs.Load(),
		TotalDuration: time.Duration(s.duration.Load()),
		SlowQueries:   s.slow.Load(),
		Errors:        s.errors.Load(),
	}
	for k := range s.kinds {
		snap.Statements[k] = s.kinds[k].Load()
	}
	return snap
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	for _, c := range []*atomic.Int64{&s.queries, &s.execs, &s.duration, &s.slow, &s.errors} {
		c.Store(0)
	}
	for k := range s.kinds {
		s.kinds[k].Store(0)
	}
}

// StatsSnapshot is a point-in-time snapshot of statement statistics.
// Statements is indexed by StatementKind.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
	Statements    [numKinds]int64
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
	for k, n := range s.Statements {
		if n > 0 {
			fmt.Fprintf(&b, " %s=%d", StatementKind(k), n)
		}
	}
	return b.String()
}

// SlowQueryHook is a function called when a slow statement is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver wraps a dialect.Driver with statement statistics collection.
// Transactions and sessions started from it are measured as well.
type StatsDriver struct {
	dialect.Driver
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow statement detection.
// Default is 100ms. Zero disables detection.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to the given logger at warn level.
func WithSlowQueryLog(log *zap.Logger) StatsOption {
	return WithSlowQueryHook(func(_ context.Context, query string, args []any, duration time.Duration) {
		log.Warn("slow statement detected",
			zap.Stringer("kind", KindOf(query)),
			zap.Duration("duration", duration),
			zap.String("query", query),
			zap.Int("args", len(args)),
		)
	})
}

// NewStatsDriver wraps a Driver with statistics collection.
//
//	drv := sql.NewStatsDriver(sql.OpenDB(dialect.Postgres, db),
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(logger),
//	)
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

// Query executes a query and records statistics.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.measure(ctx, d.Driver.Query, true, query, args, v)
}

// Exec executes a statement and records statistics.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.measure(ctx, d.Driver.Exec, false, query, args, v)
}

type execFunc func(ctx context.Context, query string, args, v any) error

// measure runs fn and records its outcome.
func (d *StatsDriver) measure(ctx context.Context, fn execFunc, isQuery bool, query string, args, v any) error {
	start := time.Now()
	err := fn(ctx, query, args, v)
	duration := time.Since(start)

	if isQuery {
		d.stats.queries.Add(1)
	} else {
		d.stats.execs.Add(1)
	}
	d.stats.kinds[KindOf(query)].Add(1)
	d.stats.duration.Add(int64(duration))
	if err != nil {
		d.stats.errors.Add(1)
	}

	d.mu.RLock()
	threshold, hook := d.slowThreshold, d.slowHook
	d.mu.RUnlock()
	if threshold > 0 && duration > threshold {
		d.stats.slow.Add(1)
		if hook != nil {
			list, _ := args.([]any)
			hook(ctx, query, list, duration)
		}
	}
	return err
}

// Tx starts a transaction that also records statistics.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// Session pins a connection of the wrapped driver, if it supports sessions.
func (d *StatsDriver) Session(ctx context.Context) (dialect.Session, error) {
	s, ok := d.Driver.(dialect.Sessioner)
	if !ok {
		return nil, fmt.Errorf("dialect/sql: driver %T does not support sessions", d.Driver)
	}
	sess, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}
	return &statsSession{Session: sess, driver: d}, nil
}

// StatsTx wraps a transaction with statistics collection.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

// Query executes a query within the transaction and records statistics.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.driver.measure(ctx, tx.Tx.Query, true, query, args, v)
}

// Exec executes a statement within the transaction and records statistics.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	return tx.driver.measure(ctx, tx.Tx.Exec, false, query, args, v)
}

type statsSession struct {
	dialect.Session
	driver *StatsDriver
}

func (s *statsSession) Query(ctx context.Context, query string, args, v any) error {
	return s.driver.measure(ctx, s.Session.Query, true, query, args, v)
}

func (s *statsSession) Exec(ctx context.Context, query string, args, v any) error {
	return s.driver.measure(ctx, s.Session.Exec, false, query, args, v)
}

func (s *statsSession) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := s.Session.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: s.driver}, nil
}

var (
	_ dialect.Driver    = (*StatsDriver)(nil)
	_ dialect.Sessioner = (*StatsDriver)(nil)
	_ dialect.Tx        = (*StatsTx)(nil)
)
