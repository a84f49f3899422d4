package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/eskrenkovic/session-ledger/internal/modules/storage/storagetest"
	"github.com/eskrenkovic/session-ledger/internal/modules/tests"
	sqlmigration "github.com/eskrenkovic/session-ledger/internal/sql-migrations"

	"github.com/stretchr/testify/require"
)

var fixture = tests.NewLocalTestFixture()

func TestMain(m *testing.M) {
	ctx := context.Background()

	if err := fixture.Start(ctx); err != nil {
		_ = fixture.Stop(ctx)
		panic(err)
	}

	code := m.Run()

	if err := fixture.Stop(ctx); err != nil {
		panic(err)
	}

	os.Exit(code)
}

func Test_Store_Conformance(t *testing.T) {
	if tests.SkipInfrastructure() {
		t.Skip("infrastructure disabled")
	}

	// Arrange
	ctx := context.Background()

	store, err := Open(fixture.DatabaseURL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = sqlmigration.Run(ctx, store.DB(), sqlmigration.Ledger())
	require.NoError(t, err)

	// Act & Assert
	storagetest.Run(t, store)
}

func Test_Migrations_Are_Idempotent(t *testing.T) {
	if tests.SkipInfrastructure() {
		t.Skip("infrastructure disabled")
	}

	// Arrange
	ctx := context.Background()

	store, err := Open(fixture.DatabaseURL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = sqlmigration.Run(ctx, store.DB(), sqlmigration.Ledger())
	require.NoError(t, err)

	// Act
	applied, err := sqlmigration.Run(ctx, store.DB(), sqlmigration.Ledger())

	// Assert
	require.NoError(t, err)
	require.Zero(t, applied)
}
