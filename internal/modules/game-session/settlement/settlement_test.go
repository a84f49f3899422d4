package settlement

import (
	"testing"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	prize "github.com/eskrenkovic/session-ledger/internal/modules/prize/domain"
	treasury "github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	session   *domain.Session
	recipient *treasury.Recipient
	slot      *treasury.Slot
	alice     domain.PlayerEntry
	bob       domain.PlayerEntry
}

// newFixture seats alice (150) and bob (100) behind host "host".
func newFixture(t *testing.T) fixture {
	t.Helper()

	recipient, slots, err := treasury.NewRecipient("admin", []treasury.SlotSpec{{
		Name:      "fee",
		Kind:      treasury.AssetKindFungible,
		TokenType: core.NativeToken,
		Shares:    []treasury.Share{{Owner: treasury.ShareOwner{Address: "platform"}, Weight: 1}},
	}})
	require.NoError(t, err)

	session, err := domain.NewSession(domain.NewSessionParams{
		Title:       "table",
		Owner:       "owner",
		RecipientID: recipient.ID,
		MaxPlayers:  4,
		EntryType:   domain.CashEntry(100, 200),
	})
	require.NoError(t, err)

	_, err = session.HostJoin("host", "wss://host", "kh")
	require.NoError(t, err)

	alice, err := session.Join("alice", 0, 150, "ka")
	require.NoError(t, err)

	bob, err := session.Join("bob", 1, 100, "kb")
	require.NoError(t, err)

	return fixture{session: session, recipient: recipient, slot: slots[0], alice: alice, bob: bob}
}

func (f fixture) ledger() Ledger {
	return Ledger{
		Session:   f.session,
		Recipient: f.recipient,
		Slots:     map[uuid.UUID]*treasury.Slot{f.slot.ID: f.slot},
		Prizes:    map[uuid.UUID]*prize.Prize{},
	}
}

func Test_Check_Rejects_Non_Transactor(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	_, err := Check(f.session, "alice", 0, 1)

	// Assert
	require.ErrorIs(t, err, core.ErrUnauthorizedCaller)
}

func Test_Check_Rejects_Stale_Versions(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	_, staleErr := Check(f.session, "host", 1, 2)
	_, notAdvancingErr := Check(f.session, "host", 0, 0)

	// Assert
	require.ErrorIs(t, staleErr, core.ErrStaleVersion)
	require.ErrorIs(t, notAdvancingErr, core.ErrStaleVersion)
}

func Test_Zero_Token_Is_Rejected(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	_, err := ApplySettles(f.session, nil, Token{})

	// Assert
	require.ErrorIs(t, err, core.ErrUnauthorizedCaller)
}

func Test_Token_Is_Bound_To_Its_Session(t *testing.T) {
	// Arrange
	f := newFixture(t)
	other := newFixture(t)

	token, err := Check(other.session, "host", 0, 1)
	require.NoError(t, err)

	// Act
	_, err = ApplySettles(f.session, nil, token)

	// Assert
	require.ErrorIs(t, err, core.ErrUnauthorizedCaller)
}

func Test_ApplySettles_Pays_And_Ejects(t *testing.T) {
	// Arrange
	f := newFixture(t)
	token, err := Check(f.session, "host", 0, 1)
	require.NoError(t, err)

	// Act
	transfers, err := ApplySettles(f.session, []SettleRecord{
		{PlayerID: f.alice.AccessVersion, Amount: 200, Eject: true},
		{PlayerID: f.bob.AccessVersion, Amount: 0},
	}, token)

	// Assert
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	require.Equal(t, core.Address("alice"), transfers[0].To)
	require.Equal(t, uint64(200), transfers[0].Amount)
	require.Equal(t, uint64(50), f.session.Balance)
	require.Len(t, f.session.Players, 1)
	require.Equal(t, core.Address("bob"), f.session.Players[0].Address)
}

func Test_ApplySettles_Is_Atomic_When_Player_Is_Unknown(t *testing.T) {
	// Arrange
	f := newFixture(t)
	token, err := Check(f.session, "host", 0, 1)
	require.NoError(t, err)

	// Act
	_, err = ApplySettles(f.session, []SettleRecord{
		{PlayerID: f.alice.AccessVersion, Amount: 50, Eject: true},
		{PlayerID: 999, Amount: 10},
	}, token)

	// Assert
	require.ErrorIs(t, err, core.ErrRecordNotFound)
	require.Equal(t, uint64(250), f.session.Balance)
	require.Len(t, f.session.Players, 2)
}

func Test_ApplySettles_Fails_When_Payout_Exceeds_Balance(t *testing.T) {
	// Arrange
	f := newFixture(t)
	token, err := Check(f.session, "host", 0, 1)
	require.NoError(t, err)

	// Act
	_, err = ApplySettles(f.session, []SettleRecord{
		{PlayerID: f.alice.AccessVersion, Amount: 251},
	}, token)

	// Assert
	require.ErrorIs(t, err, core.ErrInsufficientBalance)
	require.Equal(t, uint64(250), f.session.Balance)
}

func Test_TransferToSlot_Moves_Escrow_And_Syncs_Recipient(t *testing.T) {
	// Arrange
	f := newFixture(t)
	token, err := Check(f.session, "host", 0, 1)
	require.NoError(t, err)

	// Act
	err = TransferToSlot(f.session, f.slot, f.recipient, 25, token)

	// Assert
	require.NoError(t, err)
	require.Equal(t, uint64(225), f.session.Balance)
	require.Equal(t, uint64(25), f.slot.Balance)
	require.Equal(t, uint64(25), f.recipient.Slots[0].Balance)
}

func Test_TransferToSlot_Rejects_Foreign_Slot(t *testing.T) {
	// Arrange
	f := newFixture(t)
	other := newFixture(t)
	token, err := Check(f.session, "host", 0, 1)
	require.NoError(t, err)

	// Act
	err = TransferToSlot(f.session, other.slot, other.recipient, 25, token)

	// Assert
	require.ErrorIs(t, err, core.ErrInvalidArgument)
	require.Equal(t, uint64(250), f.session.Balance)
}

func Test_Finish_Accepts_Deposits_And_Advances_Version(t *testing.T) {
	// Arrange
	f := newFixture(t)
	token, err := Check(f.session, "host", 0, 1)
	require.NoError(t, err)

	closed := domain.EntryLockClosed

	// Act
	err = Finish(f.session, FinishParams{
		AcceptedDeposits:  []uint64{f.alice.AccessVersion, f.bob.AccessVersion},
		NextSettleVersion: 1,
		Checkpoint:        []byte("round-1"),
		EntryLock:         &closed,
		Balances: []PlayerBalance{
			{PlayerID: f.alice.AccessVersion, Balance: 180},
			{PlayerID: f.bob.AccessVersion, Balance: 70},
		},
	}, token)

	// Assert
	require.NoError(t, err)
	require.Equal(t, uint64(1), f.session.SettleVersion)
	require.Equal(t, []byte("round-1"), f.session.Checkpoint)
	require.Equal(t, domain.EntryLockClosed, f.session.EntryLock)
	require.Empty(t, f.session.Deposits)

	// the token does not outlive the round
	err = Finish(f.session, FinishParams{NextSettleVersion: 1}, token)
	require.ErrorIs(t, err, core.ErrStaleVersion)
}

func Test_Finish_Rejects_Conservation_Violation(t *testing.T) {
	// Arrange
	f := newFixture(t)
	token, err := Check(f.session, "host", 0, 1)
	require.NoError(t, err)

	// Act
	err = Finish(f.session, FinishParams{
		AcceptedDeposits:  []uint64{f.alice.AccessVersion},
		NextSettleVersion: 1,
		Balances: []PlayerBalance{
			{PlayerID: f.alice.AccessVersion, Balance: 151},
		},
	}, token)

	// Assert
	require.ErrorIs(t, err, core.ErrInvariantViolation)
	require.Zero(t, f.session.SettleVersion)
	require.Len(t, f.session.Deposits, 2)
	require.Equal(t, domain.DepositStatusPending, f.session.Deposits[0].Status)
}

func Test_Finish_Counts_Pending_Deposits_Towards_Stake(t *testing.T) {
	// Arrange
	f := newFixture(t)
	token, err := Check(f.session, "host", 0, 1)
	require.NoError(t, err)

	// Act
	err = Finish(f.session, FinishParams{
		AcceptedDeposits:  []uint64{f.alice.AccessVersion},
		NextSettleVersion: 1,
		Balances: []PlayerBalance{
			{PlayerID: f.alice.AccessVersion, Balance: 150},
		},
	}, token)

	// Assert
	require.NoError(t, err)
	require.Len(t, f.session.Deposits, 1)
	require.Equal(t, f.bob.AccessVersion, f.session.Deposits[0].AccessVersion)
}

func Test_Finish_Rejects_Version_Other_Than_Checked(t *testing.T) {
	// Arrange
	f := newFixture(t)
	token, err := Check(f.session, "host", 0, 1)
	require.NoError(t, err)

	// Act
	err = Finish(f.session, FinishParams{NextSettleVersion: 5}, token)

	// Assert
	require.ErrorIs(t, err, core.ErrStaleVersion)
}

func Test_Settle_Runs_Full_Round(t *testing.T) {
	// Arrange
	f := newFixture(t)

	bonus, err := prize.Create(f.session.ID, "sponsor", "weekly", core.NativeToken, 40, nil)
	require.NoError(t, err)
	require.NoError(t, f.session.AttachBonus(bonus.ID))

	ledger := f.ledger()
	ledger.Prizes[bonus.ID] = bonus

	// Act
	outcome, err := Settle(ledger, Batch{
		Caller:                "host",
		ExpectedSettleVersion: 0,
		Settles: []SettleRecord{
			{PlayerID: f.bob.AccessVersion, Amount: 90, Eject: true},
		},
		Transfers: []SlotTransfer{{SlotID: f.slot.ID, Amount: 10}},
		Awards: []BonusAward{{
			PrizeID:       bonus.ID,
			Identifier:    "weekly",
			PlayerID:      f.alice.AccessVersion,
			PlayerAddress: "alice",
		}},
		Finish: FinishParams{
			AcceptedDeposits:  []uint64{f.alice.AccessVersion, f.bob.AccessVersion},
			NextSettleVersion: 1,
			Checkpoint:        []byte("cp"),
			Balances:          []PlayerBalance{{PlayerID: f.alice.AccessVersion, Balance: 150}},
		},
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, uint64(150), outcome.Session.Balance)
	require.Equal(t, uint64(1), outcome.Session.SettleVersion)
	require.Empty(t, outcome.Session.Bonuses)
	require.Len(t, outcome.Session.Players, 1)
	require.Equal(t, []uuid.UUID{bonus.ID}, outcome.ConsumedPrizes)
	require.Len(t, outcome.Slots, 1)
	require.Equal(t, uint64(10), outcome.Slots[0].Balance)
	require.Equal(t, uint64(10), outcome.Recipient.Slots[0].Balance)
	require.Len(t, outcome.Transfers, 2)

	// inputs are untouched
	require.Equal(t, uint64(250), f.session.Balance)
	require.Zero(t, f.slot.Balance)
	require.False(t, bonus.Consumed)
}

func Test_Settle_Commits_Nothing_When_Finish_Fails(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	_, err := Settle(f.ledger(), Batch{
		Caller:                "host",
		ExpectedSettleVersion: 0,
		Settles:               []SettleRecord{{PlayerID: f.bob.AccessVersion, Amount: 100, Eject: true}},
		Transfers:             []SlotTransfer{{SlotID: f.slot.ID, Amount: 10}},
		Finish: FinishParams{
			AcceptedDeposits:  []uint64{f.alice.AccessVersion, f.bob.AccessVersion},
			NextSettleVersion: 1,
		},
	})

	// Assert
	require.ErrorIs(t, err, core.ErrInvariantViolation)
	require.Equal(t, uint64(250), f.session.Balance)
	require.Len(t, f.session.Players, 2)
	require.Zero(t, f.slot.Balance)
	require.Zero(t, f.recipient.Slots[0].Balance)
}

func Test_Settle_Rejects_Award_Of_Wrong_Prize(t *testing.T) {
	// Arrange
	f := newFixture(t)

	bonus, err := prize.Create(f.session.ID, "sponsor", "weekly", core.NativeToken, 40, nil)
	require.NoError(t, err)
	require.NoError(t, f.session.AttachBonus(bonus.ID))

	ledger := f.ledger()
	ledger.Prizes[bonus.ID] = bonus

	// Act
	_, err = Settle(ledger, Batch{
		Caller: "host",
		Awards: []BonusAward{{
			PrizeID:       bonus.ID,
			Identifier:    "monthly",
			PlayerID:      f.alice.AccessVersion,
			PlayerAddress: "alice",
		}},
		Finish: FinishParams{NextSettleVersion: 1},
	})

	// Assert
	require.ErrorIs(t, err, core.ErrInvalidArgument)
	require.Len(t, f.session.Bonuses, 1)
}

func Test_Reset_Requires_Empty_Escrow(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	outcome, err := Settle(f.ledger(), Batch{
		Caller: "host",
		Settles: []SettleRecord{
			{PlayerID: f.alice.AccessVersion, Amount: 150, Eject: true},
			{PlayerID: f.bob.AccessVersion, Amount: 100, Eject: true},
		},
		Finish: FinishParams{
			AcceptedDeposits:  []uint64{f.alice.AccessVersion, f.bob.AccessVersion},
			NextSettleVersion: 1,
			Reset:             true,
		},
	})

	// Assert
	require.NoError(t, err)
	require.Zero(t, outcome.Session.Balance)
	require.Empty(t, outcome.Session.Players)
	require.Empty(t, outcome.Session.Deposits)
	require.NoError(t, outcome.Session.CanClose("owner"))
}

func Test_Round_Finishes_After_Rejected_Rebuy(t *testing.T) {
	// Arrange
	f := newFixture(t)

	token, err := Check(f.session, "host", 0, 1)
	require.NoError(t, err)
	require.NoError(t, Finish(f.session, FinishParams{
		AcceptedDeposits:  []uint64{f.alice.AccessVersion, f.bob.AccessVersion},
		NextSettleVersion: 1,
		Balances: []PlayerBalance{
			{PlayerID: f.alice.AccessVersion, Balance: 150},
			{PlayerID: f.bob.AccessVersion, Balance: 100},
		},
	}, token))

	rebuy, err := f.session.Deposit("alice", 150, 1)
	require.NoError(t, err)

	_, err = f.session.RejectDeposits("host", []uint64{rebuy.AccessVersion})
	require.NoError(t, err)

	token, err = Check(f.session, "host", 1, 2)
	require.NoError(t, err)

	// Act
	err = Finish(f.session, FinishParams{
		NextSettleVersion: 2,
		Balances: []PlayerBalance{
			{PlayerID: f.alice.AccessVersion, Balance: 150},
			{PlayerID: f.bob.AccessVersion, Balance: 100},
		},
	}, token)

	// Assert
	require.NoError(t, err)
	require.Equal(t, uint64(2), f.session.SettleVersion)
	require.Equal(t, uint64(250), f.session.Balance)
	require.Len(t, f.session.Players, 2)
	require.Empty(t, f.session.Deposits)
}
