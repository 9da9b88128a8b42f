package sqlprov_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlprov"
)

func TestUnsupportedError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := sqlprov.NewUnsupportedError("operation", "OpFoo")
		assert.Equal(t, "sqlprov: unsupported operation: OpFoo", err.Error())
		assert.Equal(t, "sqlprov: unsupported join", sqlprov.NewUnsupportedError("join", nil).Error())
	})

	t.Run("IsUnsupported", func(t *testing.T) {
		err := sqlprov.NewUnsupportedError("operation", 1)
		assert.True(t, errors.Is(err, sqlprov.ErrUnsupported))
		assert.True(t, sqlprov.IsUnsupported(fmt.Errorf("wrapper: %w", err)))
		assert.False(t, sqlprov.IsUnsupported(errors.New("other error")))
		assert.False(t, sqlprov.IsUnsupported(nil))
	})
}

func TestInvariantError(t *testing.T) {
	err := sqlprov.NewInvariantError("paging requires ordering", "skip=%d take=%d", 10, 5)
	assert.Equal(t, "sqlprov: paging requires ordering: skip=10 take=5", err.Error())
	assert.True(t, errors.Is(err, sqlprov.ErrInvariant))
	assert.True(t, sqlprov.IsInvariant(fmt.Errorf("wrapper: %w", err)))
	assert.False(t, sqlprov.IsInvariant(sqlprov.NewUnsupportedError("x", nil)))
}

func TestNotFoundError(t *testing.T) {
	err := sqlprov.NewNotFoundError("dbo.Employees", 7)
	assert.Equal(t, "sqlprov: dbo.Employees not found (key=7)", err.Error())
	assert.Equal(t, "dbo.Employees", err.Table())
	assert.Equal(t, 7, err.Key())
	assert.True(t, sqlprov.IsNotFound(fmt.Errorf("wrapper: %w", err)))
	assert.True(t, sqlprov.IsNotFound(sqlprov.ErrNotFound))
	assert.False(t, sqlprov.IsNotFound(nil))
	assert.Equal(t, "sqlprov: t not found", sqlprov.NewNotFoundError("t", nil).Error())
}

func TestConstraintError(t *testing.T) {
	cause := errors.New("duplicate key")
	err := sqlprov.NewConstraintError("unique", cause)
	assert.Equal(t, "sqlprov: constraint failed: unique", err.Error())
	assert.True(t, sqlprov.IsConstraintError(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, sqlprov.IsConstraintError(cause))
}

func TestMutationError(t *testing.T) {
	cause := errors.New("boom")
	err := sqlprov.NewMutationError("main.users", "insert", 2, cause)
	assert.Equal(t, "sqlprov: insert main.users (batch position 2): boom", err.Error())
	assert.True(t, sqlprov.IsMutationError(fmt.Errorf("wrapper: %w", err)))
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestRollbackError(t *testing.T) {
	cause := errors.New("conn reset")
	err := &sqlprov.RollbackError{Err: cause}
	assert.Equal(t, "sqlprov: rollback failed: conn reset", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestAggregateError(t *testing.T) {
	require.NoError(t, sqlprov.NewAggregateError(nil, nil))

	one := errors.New("one")
	assert.Same(t, one, sqlprov.NewAggregateError(nil, one))

	two := errors.New("two")
	err := sqlprov.NewAggregateError(one, nil, two)
	var agg *sqlprov.AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Errors, 2)
	assert.Equal(t, "sqlprov: multiple errors:\n  [1] one\n  [2] two", err.Error())
	assert.ErrorIs(t, err, two)
}
