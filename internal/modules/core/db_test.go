package core

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var errConflict = errors.New("conflict")

func openDB(t *testing.T) *sql.DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	db, err := gormDB.DB()
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE entry (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	return db
}

func countEntries(t *testing.T, db *sql.DB) int {
	t.Helper()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM entry`).Scan(&count))
	return count
}

func Test_Tx_Commits_When_Callback_Succeeds(t *testing.T) {
	// Arrange
	db := openDB(t)

	// Act
	err := Tx(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO entry (id) VALUES (1)`)
		return err
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, 1, countEntries(t, db))
}

func Test_Tx_Rolls_Back_On_Error(t *testing.T) {
	// Arrange
	db := openDB(t)

	// Act
	err := Tx(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO entry (id) VALUES (1)`); err != nil {
			return err
		}
		return Errorf(CodeInvariantViolation, "stake mismatch")
	})

	// Assert
	require.ErrorIs(t, err, ErrInvariantViolation)
	require.Equal(t, 0, countEntries(t, db))
}

func Test_Tx_Rolls_Back_On_Panic(t *testing.T) {
	// Arrange
	db := openDB(t)

	// Act
	err := Tx(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO entry (id) VALUES (1)`); err != nil {
			return err
		}
		panic("boom")
	})

	// Assert
	require.ErrorContains(t, err, "panicked with: boom")
	require.Equal(t, 0, countEntries(t, db))
}

func Test_Tx_Retries_Transient_Errors(t *testing.T) {
	// Arrange
	db := openDB(t)
	calls := 0

	// Act
	err := Tx(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		calls++
		if calls < 3 {
			return errConflict
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO entry (id) VALUES (1)`)
		return err
	}, WithRetry(3, func(err error) bool { return errors.Is(err, errConflict) }))

	// Assert
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 1, countEntries(t, db))
}

func Test_Tx_Gives_Up_After_Last_Attempt(t *testing.T) {
	// Arrange
	db := openDB(t)
	calls := 0

	// Act
	err := Tx(context.Background(), db, func(context.Context, *sql.Tx) error {
		calls++
		return errConflict
	}, WithRetry(2, func(err error) bool { return errors.Is(err, errConflict) }))

	// Assert
	require.ErrorIs(t, err, errConflict)
	require.ErrorContains(t, err, "after 2 attempts")
	require.Equal(t, 2, calls)
}

func Test_Tx_Does_Not_Retry_Other_Errors(t *testing.T) {
	// Arrange
	db := openDB(t)
	calls := 0

	// Act
	err := Tx(context.Background(), db, func(context.Context, *sql.Tx) error {
		calls++
		return Errorf(CodeStaleVersion, "stale")
	}, WithRetry(5, func(err error) bool { return errors.Is(err, errConflict) }))

	// Assert
	require.ErrorIs(t, err, ErrStaleVersion)
	require.Equal(t, 1, calls)
}
