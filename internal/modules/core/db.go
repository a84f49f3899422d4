package core

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type txConfig struct {
	options   sql.TxOptions
	attempts  int
	retryable func(error) bool
}

type TransactionOption func(*txConfig)

func WithIsolationLevel(isolationLevel sql.IsolationLevel) TransactionOption {
	return func(c *txConfig) {
		c.options.Isolation = isolationLevel
	}
}

// WithRetry reruns the whole transaction, up to attempts times in total,
// while retryable reports true for the error it failed with.
func WithRetry(attempts int, retryable func(error) bool) TransactionOption {
	return func(c *txConfig) {
		c.attempts = attempts
		c.retryable = retryable
	}
}

// Tx commits only when transaction returns nil. An error or a panic rolls
// back every statement made through tx.
func Tx(
	ctx context.Context,
	db *sql.DB,
	transaction func(context.Context, *sql.Tx) error,
	opts ...TransactionOption,
) error {
	cfg := txConfig{attempts: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	var err error
	for attempt := 1; attempt <= cfg.attempts; attempt++ {
		err = runTx(ctx, db, transaction, cfg.options)
		if err == nil || cfg.retryable == nil || !cfg.retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return errors.Wrapf(err, "transaction failed after %d attempts", cfg.attempts)
}

func runTx(
	ctx context.Context,
	db *sql.DB,
	transaction func(context.Context, *sql.Tx) error,
	options sql.TxOptions,
) (err error) {
	tx, err := db.BeginTx(ctx, &options)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}

		err = errors.Errorf("transaction panicked with: %v", r)
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			err = errors.Wrap(err, rollbackErr.Error())
		}
	}()

	if err = transaction(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrapf(err, "rollback failed: %s", rollbackErr)
		}
		return err
	}

	return errors.Wrap(tx.Commit(), "commit transaction")
}
