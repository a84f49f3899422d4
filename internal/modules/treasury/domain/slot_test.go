package domain

import (
	"math"
	"testing"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newSplitSlot(t *testing.T) *Slot {
	t.Helper()

	slot, err := NewSlot(uuid.New(), "platform fee", AssetKindFungible, core.NativeToken, []Share{
		{Owner: ShareOwner{Address: "a"}, Weight: 30},
		{Owner: ShareOwner{Address: "b"}, Weight: 70},
	})
	require.NoError(t, err)

	return slot
}

func Test_Claim_Scenario_30_70_Split(t *testing.T) {
	// Arrange
	slot := newSplitSlot(t)
	require.NoError(t, slot.Deposit(100))

	// Act
	first, err := slot.Claim("a")
	require.NoError(t, err)

	require.NoError(t, slot.Deposit(100))

	second, err := slot.Claim("a")
	require.NoError(t, err)

	b, err := slot.Claim("b")
	require.NoError(t, err)

	// Assert
	require.Equal(t, uint64(30), first)
	require.Equal(t, uint64(30), second)
	require.Equal(t, uint64(140), b)
	require.Zero(t, slot.Balance)
	require.Equal(t, uint64(60), slot.Shares[0].ClaimedToDate)
	require.Equal(t, uint64(140), slot.Shares[1].ClaimedToDate)
}

func Test_Claim_Twice_Without_Deposit_Pays_Nothing(t *testing.T) {
	// Arrange
	slot := newSplitSlot(t)
	require.NoError(t, slot.Deposit(100))

	_, err := slot.Claim("b")
	require.NoError(t, err)

	// Act
	payout, err := slot.Claim("b")

	// Assert
	require.NoError(t, err)
	require.Zero(t, payout)
	require.Equal(t, uint64(70), slot.Shares[1].ClaimedToDate)
}

func Test_Claim_Is_Monotonic_And_Bounded(t *testing.T) {
	// Arrange
	slot, err := NewSlot(uuid.New(), "odd", AssetKindFungible, core.NativeToken, []Share{
		{Owner: ShareOwner{Address: "a"}, Weight: 1},
		{Owner: ShareOwner{Address: "b"}, Weight: 2},
	})
	require.NoError(t, err)

	var deposited, paidA, paidB uint64
	var lastA uint64

	// Act
	for _, amount := range []uint64{7, 1, 1, 13, 2, 5} {
		require.NoError(t, slot.Deposit(amount))
		deposited += amount

		a, err := slot.Claim("a")
		require.NoError(t, err)
		paidA += a

		require.GreaterOrEqual(t, slot.Shares[0].ClaimedToDate, lastA)
		lastA = slot.Shares[0].ClaimedToDate

		if amount%2 == 0 {
			b, err := slot.Claim("b")
			require.NoError(t, err)
			paidB += b
		}
	}

	// Assert
	require.LessOrEqual(t, paidA, deposited/3)
	require.LessOrEqual(t, paidB, deposited*2/3)
	require.Equal(t, deposited-paidA-paidB, slot.Balance)
}

func Test_Claim_Does_Not_Overflow_On_Large_Deposits(t *testing.T) {
	// Arrange
	slot := newSplitSlot(t)
	require.NoError(t, slot.Deposit(math.MaxUint64))

	// Act
	payout, err := slot.Claim("b")

	// Assert
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64/100*70+(math.MaxUint64%100)*70/100), payout)
}

func Test_Claim_Fails_For_Unknown_Claimant(t *testing.T) {
	// Arrange
	slot := newSplitSlot(t)

	// Act
	_, err := slot.Claim("mallory")

	// Assert
	require.ErrorIs(t, err, core.ErrUnauthorizedCaller)
}

func Test_Role_Share_Is_Claimable_Only_After_Assignment(t *testing.T) {
	// Arrange
	slot, err := NewSlot(uuid.New(), "royalty", AssetKindFungible, core.NativeToken, []Share{
		{Owner: ShareOwner{Role: "creator"}, Weight: 1},
		{Owner: ShareOwner{Address: "platform"}, Weight: 1},
	})
	require.NoError(t, err)
	require.NoError(t, slot.Deposit(10))

	_, err = slot.Claim("creator")
	require.ErrorIs(t, err, core.ErrUnauthorizedCaller)

	// Act
	require.NoError(t, slot.AssignRole("creator", "carol"))
	payout, err := slot.Claim("carol")

	// Assert
	require.NoError(t, err)
	require.Equal(t, uint64(5), payout)
	require.ErrorIs(t, slot.AssignRole("creator", "dave"), core.ErrRecordNotFound)
}

func Test_NewSlot_Rejects_Invalid_Shares(t *testing.T) {
	cases := map[string][]Share{
		"empty":       nil,
		"zero weight": {{Owner: ShareOwner{Address: "a"}, Weight: 0}},
		"no owner":    {{Weight: 1}},
		"both owners": {{Owner: ShareOwner{Address: "a", Role: "r"}, Weight: 1}},
	}

	for name, shares := range cases {
		_, err := NewSlot(uuid.New(), name, AssetKindFungible, core.NativeToken, shares)
		require.ErrorIs(t, err, core.ErrInvalidArgument, name)
	}

	_, err := NewSlot(uuid.New(), "dup", AssetKindFungible, core.NativeToken, []Share{
		{Owner: ShareOwner{Address: "a"}, Weight: 1},
		{Owner: ShareOwner{Address: "a"}, Weight: 1},
	})
	require.ErrorIs(t, err, core.ErrDuplicateMembership)
}

func Test_Recipient_Sync_Tracks_Slot_Balance(t *testing.T) {
	// Arrange
	recipient, slots, err := NewRecipient("admin", []SlotSpec{{
		Name:      "fee",
		Kind:      AssetKindFungible,
		TokenType: core.NativeToken,
		Shares:    []Share{{Owner: ShareOwner{Address: "a"}, Weight: 1}},
	}})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.NoError(t, slots[0].Deposit(42))

	// Act
	err = recipient.Sync(slots[0])

	// Assert
	require.NoError(t, err)
	require.Equal(t, uint64(42), recipient.Slots[0].Balance)
	require.Equal(t, recipient.ID, slots[0].RecipientID)

	foreign := newSplitSlot(t)
	require.ErrorIs(t, recipient.Sync(foreign), core.ErrRecordNotFound)
}
