package queries

import (
	"context"
	"testing"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage/sqlite"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_ListTransfers_Returns_Only_Transfers_To_Address(t *testing.T) {
	// Arrange
	ctx := context.Background()

	store, err := sqlite.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		return repo.AppendTransfers(ctx, []core.Transfer{
			core.NewTransfer(core.TransferKindSettle, uuid.New(), "alice", core.NativeToken, 10),
			core.NewTransfer(core.TransferKindAward, uuid.New(), "alice", "trophy", 1),
			core.NewTransfer(core.TransferKindRefund, uuid.New(), "bob", core.NativeToken, 5),
		})
	}))

	// Act
	transfers, err := NewListTransfersQueryHandler(store).Handle(ctx, ListTransfersQuery{To: "alice"})

	// Assert
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	for _, transfer := range transfers {
		require.Equal(t, core.Address("alice"), transfer.To)
	}
}
