package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTransaction_CommitRunsHooks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO things`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var calls []string
	err = m.WithinTransaction(context.Background(), func(ctx context.Context) error {
		assert.True(t, m.InTransaction(ctx))
		assert.True(t, m.AfterCommit(ctx, func(hookCtx context.Context) {
			assert.False(t, m.InTransaction(hookCtx))
			calls = append(calls, "hook")
		}))
		_, err := m.Executor(ctx).ExecContext(ctx, "INSERT INTO things VALUES (1)")
		calls = append(calls, "work")
		return err
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"work", "hook"}, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTransaction_RollbackSkipsHooks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewTxManager(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	hookRan := false
	err = m.WithinTransaction(context.Background(), func(ctx context.Context) error {
		m.AfterCommit(ctx, func(context.Context) { hookRan = true })
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, hookRan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTransaction_JoinsOuterTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	hooks := 0
	err = m.WithinTransaction(context.Background(), func(outer context.Context) error {
		return m.WithinTransaction(outer, func(inner context.Context) error {
			assert.Same(t, m.Executor(outer), m.Executor(inner))
			m.AfterCommit(inner, func(context.Context) { hooks++ })
			return nil
		})
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, hooks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTransaction_PanicRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = m.WithinTransaction(context.Background(), func(context.Context) error {
			panic("handler")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAfterCommit_NoTransaction(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewTxManager(db)
	ctx := context.Background()

	assert.False(t, m.InTransaction(ctx))
	assert.False(t, m.AfterCommit(ctx, func(context.Context) {}))
	assert.Equal(t, Executor(db), m.Executor(ctx))
}
