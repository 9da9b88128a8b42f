package sql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlprov/dialect"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres", dialect.Postgres},
		{"pgx", dialect.Postgres},
		{"postgres-otel", dialect.Postgres},
		{"mysql", dialect.MySQL},
		{"sqlite", dialect.SQLite},
		{"sqlite3", dialect.SQLite},
		{"sqlserver", dialect.MSSQL},
		{"mssql", dialect.MSSQL},
		{"oracle", "oracle"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestDriverExecResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.MySQL, db)

	mock.ExpectExec("INSERT INTO `users`").
		WithArgs("Alice").
		WillReturnResult(sqlmock.NewResult(42, 1))

	var res sql.Result
	err = drv.Exec(context.Background(), "INSERT INTO `users` (`name`) VALUES (?)", []any{"Alice"}, &res)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverInvalidArgs(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	err = drv.Exec(context.Background(), "SELECT 1", "not-a-slice", nil)
	require.ErrorContains(t, err, "expect []any for args")

	err = drv.Exec(context.Background(), "SELECT 1", []any{}, new(int))
	require.ErrorContains(t, err, "expect *sql.Result")

	err = drv.Query(context.Background(), "SELECT 1", []any{}, new(int))
	require.ErrorContains(t, err, "expect *sql.Rows")
}

func TestSessionTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	t.Run("commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "users"`).WithArgs("Bob", 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		sess, err := drv.Session(context.Background())
		require.NoError(t, err)
		tx, err := sess.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Exec(context.Background(), `UPDATE "users" SET "name" = $1 WHERE "id" = $2`, []any{"Bob", 1}, nil))
		require.NoError(t, tx.Commit())
		require.NoError(t, sess.Close())
		require.NoError(t, sess.Close(), "second close is a no-op")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "users"`).WillReturnError(errors.New("locked"))
		mock.ExpectRollback()

		sess, err := drv.Session(context.Background())
		require.NoError(t, err)
		defer sess.Close()
		tx, err := sess.Tx(context.Background())
		require.NoError(t, err)
		err = tx.Exec(context.Background(), `DELETE FROM "users" WHERE "id" = $1`, []any{1}, nil)
		require.ErrorContains(t, err, "locked")
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestScanMaps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.SQLite, db)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Alice").AddRow(int64(2), "Bob"))

	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT id, name FROM users", []any{}, rows))
	got, err := ScanMaps(rows)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[1]["id"])
	assert.Equal(t, "Alice", got[0]["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}
