package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Executor is satisfied by both *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type txState struct {
	tx          *sql.Tx
	afterCommit []func(ctx context.Context)
}

// TxManager keeps the active transaction in the context so repositories called
// inside WithinTransaction share it.
type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// DB returns the underlying pool.
func (m *TxManager) DB() *sql.DB {
	return m.db
}

// Executor returns the transaction bound to ctx, or the pool when there is none.
func (m *TxManager) Executor(ctx context.Context) Executor {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return state.tx
	}
	return m.db
}

// InTransaction reports whether ctx carries an open transaction.
func (m *TxManager) InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// WithinTransaction runs fn in a transaction. A transaction already bound to ctx
// is joined instead of nesting a new one. After-commit hooks run once the
// outermost transaction commits, never on rollback.
func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if m.InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	state := &txState{tx: tx}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, state)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	for _, hook := range state.afterCommit {
		hook(ctx)
	}
	return nil
}

// AfterCommit registers fn to run after the transaction bound to ctx commits.
// It returns false when ctx has no transaction; fn is not registered then.
func (m *TxManager) AfterCommit(ctx context.Context, fn func(ctx context.Context)) bool {
	state, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		return false
	}
	state.afterCommit = append(state.afterCommit, fn)
	return true
}
