package commands

import (
	"context"
	"testing"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage/sqlite"
	"github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	admin core.Address = "admin"
	house core.Address = "house"
	dev   core.Address = "dev"
)

func newStoreWithSlot(t *testing.T) (storage.Store, CreateRecipientResponse) {
	t.Helper()

	store, err := sqlite.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	response, err := NewCreateRecipientCommandHandler(store).Handle(context.Background(), CreateRecipientCommand{
		Admin: admin,
		Slots: []SlotRequest{{
			Name:      "rake",
			Kind:      domain.AssetKindFungible,
			TokenType: core.NativeToken,
			Shares: []domain.Share{
				{Owner: domain.ShareOwner{Address: house}, Weight: 30},
				{Owner: domain.ShareOwner{Role: "dev"}, Weight: 70},
			},
		}},
	})
	require.NoError(t, err)
	require.Len(t, response.SlotIDs, 1)

	return store, response
}

func Test_CreateRecipient_Persists_Recipient_And_Slots(t *testing.T) {
	// Arrange
	store, created := newStoreWithSlot(t)

	// Act
	var recipient *domain.Recipient
	var slot *domain.Slot
	err := store.Tx(context.Background(), func(ctx context.Context, repo storage.Repository) (err error) {
		if recipient, err = repo.GetRecipient(ctx, created.RecipientID); err != nil {
			return err
		}
		slot, err = repo.GetSlot(ctx, created.SlotIDs[0])
		return err
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, admin, recipient.Admin)
	require.True(t, recipient.Holds(slot.ID))
	require.Equal(t, uint64(100), slot.TotalWeight())
}

func Test_CreateRecipient_Fails_When_Shares_Are_Invalid(t *testing.T) {
	// Arrange
	store, err := sqlite.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	// Act
	_, err = NewCreateRecipientCommandHandler(store).Handle(context.Background(), CreateRecipientCommand{
		Admin: admin,
		Slots: []SlotRequest{{
			Name:      "empty",
			Kind:      domain.AssetKindFungible,
			TokenType: core.NativeToken,
		}},
	})

	// Assert
	require.Error(t, err)
}

func Test_Claim_Pays_Weighted_Share_Once(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, created := newStoreWithSlot(t)
	slotID := created.SlotIDs[0]

	_, err := NewDepositToSlotCommandHandler(store).Handle(ctx, DepositToSlotCommand{
		SlotID:    slotID,
		Depositor: "table",
		Amount:    1000,
	})
	require.NoError(t, err)

	claim := NewClaimCommandHandler(store)

	// Act
	first, err := claim.Handle(ctx, ClaimCommand{SlotID: slotID, Claimant: house})
	require.NoError(t, err)

	second, err := claim.Handle(ctx, ClaimCommand{SlotID: slotID, Claimant: house})
	require.NoError(t, err)

	// Assert
	require.Equal(t, uint64(300), first.Amount)
	require.NotNil(t, first.Transfer)
	require.Equal(t, core.TransferKindClaim, first.Transfer.Kind)

	require.Zero(t, second.Amount)
	require.Nil(t, second.Transfer)

	var recipient *domain.Recipient
	var journal []core.Transfer
	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		if recipient, err = repo.GetRecipient(ctx, created.RecipientID); err != nil {
			return err
		}
		journal, err = repo.ListTransfers(ctx, house)
		return err
	}))
	require.Equal(t, uint64(700), recipient.Slots[0].Balance)
	require.Len(t, journal, 1)
}

func Test_Claim_Fails_For_Unassigned_Role_Until_Admin_Assigns_It(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, created := newStoreWithSlot(t)
	slotID := created.SlotIDs[0]

	_, err := NewDepositToSlotCommandHandler(store).Handle(ctx, DepositToSlotCommand{
		SlotID:    slotID,
		Depositor: "table",
		Amount:    10,
	})
	require.NoError(t, err)

	claim := NewClaimCommandHandler(store)
	assign := NewAssignRoleCommandHandler(store)

	// Act
	_, beforeErr := claim.Handle(ctx, ClaimCommand{SlotID: slotID, Claimant: dev})
	_, strangerErr := assign.Handle(ctx, AssignRoleCommand{SlotID: slotID, Caller: dev, Role: "dev", Address: dev})
	_, assignErr := assign.Handle(ctx, AssignRoleCommand{SlotID: slotID, Caller: admin, Role: "dev", Address: dev})
	after, afterErr := claim.Handle(ctx, ClaimCommand{SlotID: slotID, Claimant: dev})

	// Assert
	require.ErrorIs(t, beforeErr, core.ErrUnauthorizedCaller)
	require.ErrorIs(t, strangerErr, core.ErrUnauthorizedCaller)
	require.NoError(t, assignErr)
	require.NoError(t, afterErr)
	require.Equal(t, uint64(7), after.Amount)
}

func Test_DepositToSlot_Fails_When_Slot_Is_Missing(t *testing.T) {
	// Arrange
	store, _ := newStoreWithSlot(t)

	// Act
	_, err := NewDepositToSlotCommandHandler(store).Handle(context.Background(), DepositToSlotCommand{
		SlotID:    uuid.New(),
		Depositor: "table",
		Amount:    10,
	})

	// Assert
	require.ErrorIs(t, err, core.ErrRecordNotFound)
}
