package settlement

import (
	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	prize "github.com/eskrenkovic/session-ledger/internal/modules/prize/domain"
	treasury "github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"

	"github.com/google/uuid"
)

type SlotTransfer struct {
	SlotID uuid.UUID `json:"slot_id"`
	Amount uint64    `json:"amount"`
}

type BonusAward struct {
	PrizeID       uuid.UUID    `json:"prize_id"`
	Identifier    string       `json:"identifier"`
	PlayerID      uint64       `json:"player_id"`
	PlayerAddress core.Address `json:"player_address"`
}

// Batch is one complete settlement round as submitted by the transactor.
type Batch struct {
	Caller                core.Address
	ExpectedSettleVersion uint64
	Settles               []SettleRecord
	Transfers             []SlotTransfer
	Awards                []BonusAward
	Finish                FinishParams
}

// Ledger is the state a round may touch.
type Ledger struct {
	Session   *domain.Session
	Recipient *treasury.Recipient
	Slots     map[uuid.UUID]*treasury.Slot
	Prizes    map[uuid.UUID]*prize.Prize
}

// Outcome holds the post-round state. Only records present here changed.
type Outcome struct {
	Session        *domain.Session
	Recipient      *treasury.Recipient
	Slots          []*treasury.Slot
	ConsumedPrizes []uuid.UUID
	Transfers      []core.Transfer
}

// Settle runs check, settles, slot transfers, bonus awards and finish as a
// single unit against copies of the ledger. The inputs are never modified;
// on error no outcome is produced.
func Settle(ledger Ledger, batch Batch) (Outcome, error) {
	session := ledger.Session.Clone()

	token, err := Check(session, batch.Caller, batch.ExpectedSettleVersion, batch.Finish.NextSettleVersion)
	if err != nil {
		return Outcome{}, err
	}

	transfers, err := ApplySettles(session, batch.Settles, token)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{Session: session}

	if len(batch.Transfers) > 0 {
		if ledger.Recipient == nil {
			return Outcome{}, core.Errorf(core.CodeRecordNotFound, "recipient %s not loaded", session.RecipientID)
		}
		outcome.Recipient = ledger.Recipient.Clone()

		touched := make(map[uuid.UUID]*treasury.Slot, len(batch.Transfers))
		for _, t := range batch.Transfers {
			slot, found := touched[t.SlotID]
			if !found {
				original, ok := ledger.Slots[t.SlotID]
				if !ok {
					return Outcome{}, core.Errorf(core.CodeRecordNotFound, "slot %s not found", t.SlotID)
				}
				slot = original.Clone()
				touched[t.SlotID] = slot
				outcome.Slots = append(outcome.Slots, slot)
			}

			if err := TransferToSlot(session, slot, outcome.Recipient, t.Amount, token); err != nil {
				return Outcome{}, err
			}
		}
	}

	for _, a := range batch.Awards {
		original, ok := ledger.Prizes[a.PrizeID]
		if !ok {
			return Outcome{}, core.Errorf(core.CodeRecordNotFound, "bonus %s not found", a.PrizeID)
		}

		transfer, err := AwardBonus(session, original.Clone(), a.Identifier, a.PlayerID, a.PlayerAddress, token)
		if err != nil {
			return Outcome{}, err
		}

		transfers = append(transfers, transfer)
		outcome.ConsumedPrizes = append(outcome.ConsumedPrizes, a.PrizeID)
	}

	if err := Finish(session, batch.Finish, token); err != nil {
		return Outcome{}, err
	}

	outcome.Transfers = transfers
	return outcome, nil
}
