package settlement

import (
	"math"
	"slices"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	prize "github.com/eskrenkovic/session-ledger/internal/modules/prize/domain"
	treasury "github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"
)

// SettleRecord pays Amount to the player seated with access version
// PlayerID, optionally removing the player from the roster.
type SettleRecord struct {
	PlayerID uint64 `json:"player_id"`
	Amount   uint64 `json:"amount"`
	Eject    bool   `json:"eject"`
}

// PlayerBalance is a seated player's credited balance as computed by the
// game after the round.
type PlayerBalance struct {
	PlayerID uint64 `json:"player_id"`
	Balance  uint64 `json:"balance"`
}

type FinishParams struct {
	AcceptedDeposits  []uint64          `json:"accepted_deposits"`
	NextSettleVersion uint64            `json:"next_settle_version"`
	Checkpoint        []byte            `json:"checkpoint"`
	EntryLock         *domain.EntryLock `json:"entry_lock,omitempty"`
	Reset             bool              `json:"reset"`
	Balances          []PlayerBalance   `json:"balances"`
}

// ApplySettles pays out every record of the batch or none of them.
func ApplySettles(session *domain.Session, records []SettleRecord, token Token) ([]core.Transfer, error) {
	if err := token.verify(session); err != nil {
		return nil, err
	}

	type payout struct {
		to     core.Address
		amount uint64
	}

	payouts := make([]payout, 0, len(records))
	ejected := make(map[int]struct{})
	var total uint64

	for _, record := range records {
		idx := session.PlayerIndex(record.PlayerID)
		if idx < 0 {
			return nil, core.Errorf(core.CodeRecordNotFound, "player %d is not seated", record.PlayerID)
		}

		if total > math.MaxUint64-record.Amount {
			return nil, core.Errorf(core.CodeInvariantViolation, "settle amounts overflow")
		}
		total += record.Amount

		payouts = append(payouts, payout{to: session.Players[idx].Address, amount: record.Amount})
		if record.Eject {
			ejected[idx] = struct{}{}
		}
	}

	if len(payouts) != len(records) {
		return nil, core.Errorf(
			core.CodeInvariantViolation,
			"resolved %d of %d settle records",
			len(payouts),
			len(records),
		)
	}

	if total > session.Balance {
		return nil, core.Errorf(core.CodeInsufficientBalance, "settle total %d exceeds balance %d", total, session.Balance)
	}

	if len(ejected) > 0 {
		players := make([]domain.PlayerEntry, 0, len(session.Players)-len(ejected))
		for i, p := range session.Players {
			if _, eject := ejected[i]; !eject {
				players = append(players, p)
			}
		}
		session.Players = players
	}

	transfers := make([]core.Transfer, 0, len(payouts))
	for _, p := range payouts {
		if err := session.Debit(p.amount); err != nil {
			return nil, err
		}

		if p.amount == 0 {
			continue
		}

		transfers = append(transfers, core.NewTransfer(core.TransferKindSettle, session.ID, p.to, core.NativeToken, p.amount))
	}

	return transfers, nil
}

// TransferToSlot moves escrow into a fungible slot of the session's
// recipient and refreshes the recipient's snapshot.
func TransferToSlot(
	session *domain.Session,
	slot *treasury.Slot,
	recipient *treasury.Recipient,
	amount uint64,
	token Token,
) error {
	if err := token.verify(session); err != nil {
		return err
	}

	if amount == 0 {
		return core.Errorf(core.CodeInvalidArgument, "transfer amount must be positive")
	}

	if recipient.ID != session.RecipientID || slot.RecipientID != session.RecipientID || !recipient.Holds(slot.ID) {
		return core.Errorf(core.CodeInvalidArgument, "slot %s does not belong to the session recipient", slot.ID)
	}

	if slot.Kind != treasury.AssetKindFungible || slot.TokenType != core.NativeToken {
		return core.Errorf(core.CodeInvalidArgument, "slot %s cannot hold the native asset", slot.ID)
	}

	if amount > session.Balance {
		return core.Errorf(core.CodeInsufficientBalance, "transfer %d exceeds balance %d", amount, session.Balance)
	}

	if err := slot.Deposit(amount); err != nil {
		return err
	}

	if err := session.Debit(amount); err != nil {
		return err
	}

	return recipient.Sync(slot)
}

// AwardBonus hands an attached prize to a seated player and destroys the
// escrow.
func AwardBonus(
	session *domain.Session,
	p *prize.Prize,
	identifier string,
	playerID uint64,
	playerAddress core.Address,
	token Token,
) (core.Transfer, error) {
	if err := token.verify(session); err != nil {
		return core.Transfer{}, err
	}

	if p.SessionID != session.ID || !slices.Contains(session.Bonuses, p.ID) {
		return core.Transfer{}, core.Errorf(core.CodeRecordNotFound, "bonus %s is not attached", p.ID)
	}

	idx := session.PlayerIndex(playerID)
	if idx < 0 || session.Players[idx].Address != playerAddress {
		return core.Transfer{}, core.Errorf(
			core.CodeRecordNotFound,
			"player %d (%s) is not seated",
			playerID,
			playerAddress,
		)
	}

	if !p.ValidateIdentifier(identifier) {
		return core.Transfer{}, core.Errorf(core.CodeInvalidArgument, "bonus %s is not '%s'", p.ID, identifier)
	}

	amount, payload, err := p.Unpack()
	if err != nil {
		return core.Transfer{}, err
	}

	if err := session.DetachBonus(p.ID); err != nil {
		return core.Transfer{}, err
	}

	transfer := core.NewTransfer(core.TransferKindAward, p.ID, playerAddress, p.TokenType, amount)
	transfer.Payload = payload

	return transfer, nil
}

// Finish accepts deposits, verifies stake conservation and closes the
// round. Nothing is changed unless every check passes.
func Finish(session *domain.Session, params FinishParams, token Token) error {
	if err := token.verify(session); err != nil {
		return err
	}

	if params.NextSettleVersion != token.nextVersion {
		return core.Errorf(
			core.CodeStaleVersion,
			"finish to version %d, check authorized %d",
			params.NextSettleVersion,
			token.nextVersion,
		)
	}

	if params.EntryLock != nil {
		if err := params.EntryLock.Validate(); err != nil {
			return err
		}
	}

	next := session.Clone()

	for _, accessVersion := range params.AcceptedDeposits {
		idx := slices.IndexFunc(next.Deposits, func(d domain.Deposit) bool {
			return d.AccessVersion == accessVersion
		})
		if idx < 0 {
			return core.Errorf(core.CodeRecordNotFound, "deposit %d not found", accessVersion)
		}

		if status := next.Deposits[idx].Status; status != domain.DepositStatusPending {
			return core.Errorf(core.CodeInvalidArgument, "deposit %d is %s", accessVersion, status)
		}

		next.Deposits[idx].Status = domain.DepositStatusAccepted
	}

	next.Deposits = slices.DeleteFunc(next.Deposits, func(d domain.Deposit) bool {
		return d.Status.Resolved()
	})

	if err := checkStakeConservation(next, params.Balances); err != nil {
		return err
	}

	next.SettleVersion = params.NextSettleVersion
	next.Checkpoint = slices.Clone(params.Checkpoint)

	if params.EntryLock != nil {
		next.EntryLock = *params.EntryLock
	}

	if params.Reset {
		if next.Balance != 0 {
			return core.Errorf(core.CodeInvariantViolation, "reset with %d still in escrow", next.Balance)
		}

		next.Players = []domain.PlayerEntry{}
		next.Deposits = []domain.Deposit{}
	}

	*session = *next
	return nil
}

// checkStakeConservation verifies balance == player balances + pending +
// rejected-but-unrefunded deposits.
func checkStakeConservation(session *domain.Session, balances []PlayerBalance) error {
	seen := make(map[uint64]struct{}, len(balances))
	var held uint64

	add := func(amount uint64) error {
		if held > math.MaxUint64-amount {
			return core.Errorf(core.CodeInvariantViolation, "held stake overflows")
		}
		held += amount
		return nil
	}

	for _, b := range balances {
		if _, dup := seen[b.PlayerID]; dup {
			return core.Errorf(core.CodeInvalidArgument, "balance for player %d reported twice", b.PlayerID)
		}
		seen[b.PlayerID] = struct{}{}

		if session.PlayerIndex(b.PlayerID) < 0 {
			return core.Errorf(core.CodeRecordNotFound, "player %d is not seated", b.PlayerID)
		}

		if err := add(b.Balance); err != nil {
			return err
		}
	}

	for _, d := range session.Deposits {
		switch d.Status {
		case domain.DepositStatusPending, domain.DepositStatusRejected:
			if err := add(d.Amount); err != nil {
				return err
			}
		case domain.DepositStatusAccepted, domain.DepositStatusRefunded:
		default:
			return core.Errorf(core.CodeInvariantViolation, "deposit %d has unknown status '%s'", d.AccessVersion, d.Status)
		}
	}

	if held != session.Balance {
		return core.Errorf(
			core.CodeInvariantViolation,
			"stake conservation violated: balance %d, held %d",
			session.Balance,
			held,
		)
	}

	return nil
}
