package domain

import (
	"github.com/eskrenkovic/session-ledger/internal/modules/core"
)

type EntryKind string

const (
	EntryKindCash     EntryKind = "cash"
	EntryKindTicket   EntryKind = "ticket"
	EntryKindGating   EntryKind = "gating"
	EntryKindDisabled EntryKind = "disabled"
)

// EntryType decides which deposit amounts a session accepts. Only the
// fields belonging to Kind are meaningful.
type EntryType struct {
	Kind       EntryKind `json:"kind"`
	MinDeposit uint64    `json:"min_deposit,omitempty"`
	MaxDeposit uint64    `json:"max_deposit,omitempty"`
	Amount     uint64    `json:"amount,omitempty"`
	Collection string    `json:"collection,omitempty"`
}

func CashEntry(minDeposit, maxDeposit uint64) EntryType {
	return EntryType{Kind: EntryKindCash, MinDeposit: minDeposit, MaxDeposit: maxDeposit}
}

func TicketEntry(amount uint64) EntryType {
	return EntryType{Kind: EntryKindTicket, Amount: amount}
}

func GatingEntry(collection string) EntryType {
	return EntryType{Kind: EntryKindGating, Collection: collection}
}

func DisabledEntry() EntryType {
	return EntryType{Kind: EntryKindDisabled}
}

func (e EntryType) Validate() error {
	switch e.Kind {
	case EntryKindCash:
		if e.MinDeposit == 0 || e.MinDeposit > e.MaxDeposit {
			return core.Errorf(
				core.CodeInvalidArgument,
				"cash entry requires 0 < min_deposit <= max_deposit, got %d..%d",
				e.MinDeposit,
				e.MaxDeposit,
			)
		}
	case EntryKindTicket:
		if e.Amount == 0 {
			return core.Errorf(core.CodeInvalidArgument, "ticket entry requires a positive amount")
		}
	case EntryKindGating:
		if e.Collection == "" {
			return core.Errorf(core.CodeInvalidArgument, "gating entry requires a collection")
		}
	case EntryKindDisabled:
	default:
		return core.Errorf(core.CodeInvalidArgument, "unknown entry kind '%s'", e.Kind)
	}

	return nil
}

// CheckDeposit validates a join or rebuy amount. Gating and disabled
// entries carry no amount rule; collection ownership is not verified.
func (e EntryType) CheckDeposit(amount uint64) error {
	switch e.Kind {
	case EntryKindCash:
		if amount < e.MinDeposit || amount > e.MaxDeposit {
			return core.Errorf(
				core.CodeInvalidDepositAmount,
				"deposit %d outside of [%d, %d]",
				amount,
				e.MinDeposit,
				e.MaxDeposit,
			)
		}
	case EntryKindTicket:
		if amount != e.Amount {
			return core.Errorf(core.CodeInvalidDepositAmount, "deposit %d does not match ticket %d", amount, e.Amount)
		}
	case EntryKindGating, EntryKindDisabled:
	default:
		return core.Errorf(core.CodeInvariantViolation, "unknown entry kind '%s'", e.Kind)
	}

	return nil
}

type EntryLock string

const (
	EntryLockOpen        EntryLock = "open"
	EntryLockJoinOnly    EntryLock = "join_only"
	EntryLockDepositOnly EntryLock = "deposit_only"
	EntryLockClosed      EntryLock = "closed"
)

func (l EntryLock) Validate() error {
	switch l {
	case EntryLockOpen, EntryLockJoinOnly, EntryLockDepositOnly, EntryLockClosed:
		return nil
	default:
		return core.Errorf(core.CodeInvalidArgument, "unknown entry lock '%s'", l)
	}
}

func (l EntryLock) AllowsJoin() bool {
	switch l {
	case EntryLockOpen, EntryLockJoinOnly:
		return true
	case EntryLockDepositOnly, EntryLockClosed:
		return false
	default:
		return false
	}
}

func (l EntryLock) AllowsDeposit() bool {
	switch l {
	case EntryLockOpen, EntryLockDepositOnly:
		return true
	case EntryLockJoinOnly, EntryLockClosed:
		return false
	default:
		return false
	}
}

// DepositStatus follows Pending -> Accepted or Pending -> Rejected -> Refunded.
type DepositStatus string

const (
	DepositStatusPending  DepositStatus = "pending"
	DepositStatusRejected DepositStatus = "rejected"
	DepositStatusRefunded DepositStatus = "refunded"
	DepositStatusAccepted DepositStatus = "accepted"
)

// Resolved reports whether the deposit no longer counts towards escrow
// outside of the players' balances.
func (s DepositStatus) Resolved() bool {
	switch s {
	case DepositStatusAccepted, DepositStatusRefunded:
		return true
	case DepositStatusPending, DepositStatusRejected:
		return false
	default:
		return false
	}
}
