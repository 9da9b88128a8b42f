package changeset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/dialect"
	entsql "github.com/syssam/sqlprov/dialect/sql"
	"github.com/syssam/sqlprov/dialect/sql/sqlgen"
	"github.com/syssam/sqlprov/dialect/sql/sqlgraph"
	"github.com/syssam/sqlprov/schema"
)

// Completer loads the full row of a partially attached entity before it is
// updated.
type Completer interface {
	Complete(ctx context.Context, q dialect.ExecQuerier, e *Entity) error
}

// CompleterFunc is an adapter to allow the use of ordinary functions as Completer.
type CompleterFunc func(context.Context, dialect.ExecQuerier, *Entity) error

// Complete calls f(ctx, q, e).
func (f CompleterFunc) Complete(ctx context.Context, q dialect.ExecQuerier, e *Entity) error {
	return f(ctx, q, e)
}

// KeyLoader is the default Completer. It reads the row by primary key.
type KeyLoader struct {
	Generator *sqlgen.Generator
}

// Complete implements Completer.
func (l KeyLoader) Complete(ctx context.Context, q dialect.ExecQuerier, e *Entity) error {
	key, ok := e.key()
	if !ok {
		return sqlprov.NewInvariantError("missing key", "partial %q entity has no key", e.table.FullName())
	}
	stmt, err := l.Generator.SelectByKey(e.table.FullName(), key)
	if err != nil {
		return err
	}
	var rows entsql.Rows
	if err := q.Query(ctx, stmt.SQL, stmt.Args(), &rows); err != nil {
		return err
	}
	maps, err := entsql.ScanMaps(rows)
	if err != nil {
		return err
	}
	if len(maps) == 0 {
		pk, _ := e.PrimaryKey()
		return sqlprov.NewNotFoundError(e.table.FullName(), pk)
	}
	return e.load(maps[0])
}

// Executor flushes change lists. Entities of one batch are processed one at
// a time in list order, inside one transaction.
type Executor struct {
	drv       dialect.Driver
	gen       *sqlgen.Generator
	completer Completer
	log       *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithCompleter sets the Completer used for partially attached entities.
func WithCompleter(c Completer) Option {
	return func(x *Executor) {
		x.completer = c
	}
}

// WithLogger sets the logger. Batches and statements are logged at debug
// level.
func WithLogger(log *zap.Logger) Option {
	return func(x *Executor) {
		x.log = log
	}
}

// NewExecutor returns an executor running the statements of gen on drv.
func NewExecutor(drv dialect.Driver, gen *sqlgen.Generator, opts ...Option) *Executor {
	x := &Executor{
		drv:       drv,
		gen:       gen,
		completer: KeyLoader{Generator: gen},
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Flush persists changes in one transaction. Created entities are inserted,
// Modified entities update their changed fields and Delete entities are
// deleted by key. Each entity transitions right after its statement
// succeeded. On the first failure the transaction is rolled back and the
// remaining entities are left untouched.
//
// Once the transaction has begun the batch runs to completion or failure;
// cancelling ctx does not interrupt it.
func (x *Executor) Flush(ctx context.Context, changes []*Entity) error {
	if len(changes) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkBatch(changes, nil); err != nil {
		return err
	}
	for _, e := range changes {
		if e.state != Modified || !e.partial {
			continue
		}
		if err := x.completer.Complete(ctx, x.drv, e); err != nil {
			return fmt.Errorf("changeset: complete %s: %w", e.table.FullName(), err)
		}
		e.partial = false
	}

	ctx = context.WithoutCancel(ctx)
	log := x.log.With(zap.String("batch", uuid.NewString()), zap.Int("size", len(changes)))
	conn, release, err := x.session(ctx)
	if err != nil {
		return err
	}
	defer release()
	tx, err := conn.Tx(ctx)
	if err != nil {
		return fmt.Errorf("changeset: begin: %w", err)
	}
	log.Debug("flush begin")
	for i, e := range changes {
		if err := x.apply(ctx, tx, log, i, e); err != nil {
			return rollback(tx, log, err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Debug("flush commit failed", zap.Error(err))
		return fmt.Errorf("changeset: commit: %w", err)
	}
	log.Debug("flush commit")
	return nil
}

// Pending is a flush running on its own goroutine.
type Pending struct {
	done chan struct{}
	err  error
}

// Done is closed when the flush has finished.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the flush has finished and returns its error.
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}

// FlushAsync runs Flush on a new goroutine. The entities of the batch keep
// their strict order; the caller must not touch them before the flush is
// done.
func (x *Executor) FlushAsync(ctx context.Context, changes []*Entity) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.err = x.Flush(ctx, changes)
	}()
	return p
}

// Batch is a change list bound to the executor that flushes it.
type Batch struct {
	Executor *Executor
	Changes  []*Entity
}

// FlushAll flushes independent batches concurrently, each in its own
// transaction. A failing batch does not stop the others. The errors of all
// failed batches are returned together.
func FlushAll(ctx context.Context, batches ...Batch) error {
	seen := make(map[*Entity]bool)
	for _, b := range batches {
		if err := checkBatch(b.Changes, seen); err != nil {
			return err
		}
	}
	var (
		wg   sync.WaitGroup
		errs = make([]error, len(batches))
	)
	wg.Add(len(batches))
	for i, b := range batches {
		go func() {
			defer wg.Done()
			errs[i] = b.Executor.Flush(ctx, b.Changes)
		}()
	}
	wg.Wait()
	return sqlprov.NewAggregateError(errs...)
}

// checkBatch rejects entities without pending work and entities that
// appear twice, in this batch or in the batches recorded in seen.
func checkBatch(changes []*Entity, seen map[*Entity]bool) error {
	if seen == nil {
		seen = make(map[*Entity]bool, len(changes))
	}
	for i, e := range changes {
		if !e.state.Pending() {
			return sqlprov.NewInvariantError("entity state", "%s %q entity at batch position %d", e.state, e.table.FullName(), i)
		}
		if seen[e] {
			return sqlprov.NewInvariantError("entity state", "%q entity at batch position %d is flushed twice", e.table.FullName(), i)
		}
		seen[e] = true
	}
	return nil
}

// txStarter is a driver or a session.
type txStarter interface {
	Tx(context.Context) (dialect.Tx, error)
}

// session returns a dedicated connection when the driver offers one. The
// release function closes it.
func (x *Executor) session(ctx context.Context) (txStarter, func(), error) {
	s, ok := x.drv.(dialect.Sessioner)
	if !ok {
		return x.drv, func() {}, nil
	}
	sess, err := s.Session(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("changeset: session: %w", err)
	}
	return sess, func() {
		if err := sess.Close(); err != nil {
			x.log.Warn("closing flush session", zap.Error(err))
		}
	}, nil
}

func rollback(tx dialect.Tx, log *zap.Logger, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		log.Debug("flush rollback failed", zap.Error(rerr))
		return &sqlprov.RollbackError{Err: sqlprov.NewAggregateError(err, rerr)}
	}
	log.Debug("flush rollback", zap.Error(err))
	return err
}

func (x *Executor) apply(ctx context.Context, tx dialect.ExecQuerier, log *zap.Logger, i int, e *Entity) error {
	switch e.state {
	case Created:
		return x.insert(ctx, tx, log, i, e)
	case Modified:
		return x.update(ctx, tx, log, i, e)
	case Delete:
		return x.delete(ctx, tx, log, i, e)
	}
	// The state changed after the batch was checked.
	return sqlprov.NewInvariantError("entity state", "%s %q entity at batch position %d", e.state, e.table.FullName(), i)
}

func (x *Executor) insert(ctx context.Context, tx dialect.ExecQuerier, log *zap.Logger, i int, e *Entity) error {
	if err := clientKeys(e); err != nil {
		return err
	}
	table := e.table.FullName()
	stmt, err := x.gen.Insert(table, e.assignments())
	if err != nil {
		return err
	}
	logStatement(log, i, "insert", table, stmt)
	switch stmt.Keys {
	case sqlgen.KeyReturning:
		var rows entsql.Rows
		if err := tx.Query(ctx, stmt.SQL, stmt.Args(), &rows); err != nil {
			return mutationError(table, "insert", i, err)
		}
		maps, err := entsql.ScanMaps(rows)
		if err != nil {
			return mutationError(table, "insert", i, err)
		}
		if len(maps) == 0 {
			return mutationError(table, "insert", i, errors.New("no key returned"))
		}
		for _, col := range stmt.KeyColumns {
			e.values[col] = lookup(maps[0], col)
		}
	case sqlgen.KeyLastInsertID:
		var res entsql.Result
		if err := tx.Exec(ctx, stmt.SQL, stmt.Args(), &res); err != nil {
			return mutationError(table, "insert", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return mutationError(table, "insert", i, err)
		}
		e.values[stmt.KeyColumns[0]] = id
	default:
		if err := tx.Exec(ctx, stmt.SQL, stmt.Args(), nil); err != nil {
			return mutationError(table, "insert", i, err)
		}
	}
	e.MarkUnchanged()
	return nil
}

func (x *Executor) update(ctx context.Context, tx dialect.ExecQuerier, log *zap.Logger, i int, e *Entity) error {
	table := e.table.FullName()
	key, ok := e.key()
	if !ok {
		return sqlprov.NewInvariantError("missing key", "modified %q entity at batch position %d has no key", table, i)
	}
	stmt, err := x.gen.Update(table, e.assignments(), key)
	if err != nil {
		return err
	}
	logStatement(log, i, "update", table, stmt)
	if err := x.execAffecting(ctx, tx, stmt, e); err != nil {
		return mutationError(table, "update", i, err)
	}
	e.MarkUnchanged()
	return nil
}

func (x *Executor) delete(ctx context.Context, tx dialect.ExecQuerier, log *zap.Logger, i int, e *Entity) error {
	table := e.table.FullName()
	key, ok := e.key()
	if !ok {
		return sqlprov.NewInvariantError("missing key", "deleted %q entity at batch position %d has no key", table, i)
	}
	stmt, err := x.gen.DeleteByKey(table, key)
	if err != nil {
		return err
	}
	logStatement(log, i, "delete", table, stmt)
	if err := x.execAffecting(ctx, tx, stmt, e); err != nil {
		return mutationError(table, "delete", i, err)
	}
	e.SetPrimaryKey(nil, false)
	e.markDeleted()
	return nil
}

// execAffecting runs stmt and fails with a not found error when no row was
// affected.
func (x *Executor) execAffecting(ctx context.Context, tx dialect.ExecQuerier, stmt *sqlgen.Statement, e *Entity) error {
	var res entsql.Result
	if err := tx.Exec(ctx, stmt.SQL, stmt.Args(), &res); err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		pk, _ := e.PrimaryKey()
		return sqlprov.NewNotFoundError(e.table.FullName(), pk)
	}
	return nil
}

// clientKeys generates the values of UUID key columns the database does
// not fill in itself.
func clientKeys(e *Entity) error {
	for _, c := range e.table.KeyColumns() {
		if c.Type.DataType != schema.UUID || c.AutoNumber || c.HasDefault {
			continue
		}
		if v, ok := e.values[c.Name]; ok && v != nil {
			continue
		}
		if err := e.Set(c.Name, uuid.New()); err != nil {
			return err
		}
	}
	return nil
}

func mutationError(table, op string, i int, err error) error {
	return sqlprov.NewMutationError(table, op, i, sqlgraph.Wrap(err))
}

func logStatement(log *zap.Logger, i int, op, table string, stmt *sqlgen.Statement) {
	log.Debug("flush statement",
		zap.Int("position", i),
		zap.String("op", op),
		zap.String("table", table),
		zap.String("sql", stmt.SQL),
		zap.Int("params", len(stmt.Params)),
	)
}

// lookup returns the value of column in a scanned row. Drivers may report
// column names in another case.
func lookup(row map[string]any, column string) any {
	if v, ok := row[column]; ok {
		return v
	}
	for k, v := range row {
		if strings.EqualFold(k, column) {
			return v
		}
	}
	return nil
}
