package storage

import (
	"context"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	directory "github.com/eskrenkovic/session-ledger/internal/modules/directory/domain"
	gamesession "github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	prize "github.com/eskrenkovic/session-ledger/internal/modules/prize/domain"
	treasury "github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"

	"github.com/google/uuid"
)

// Store hands out repositories bound to a single transaction. Everything a
// callback does through its repository commits together or not at all.
type Store interface {
	Tx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
	Close() error
}

// Repository is the persistence contract shared by all modules. Getters
// return core.ErrRecordNotFound when the record does not exist; backends
// that support it lock the returned row until the transaction ends.
type Repository interface {
	CreateSession(ctx context.Context, session *gamesession.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*gamesession.Session, error)
	UpdateSession(ctx context.Context, session *gamesession.Session) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
	ListSessions(ctx context.Context, owner core.Address) ([]*gamesession.Session, error)

	CreateRecipient(ctx context.Context, recipient *treasury.Recipient) error
	GetRecipient(ctx context.Context, id uuid.UUID) (*treasury.Recipient, error)
	UpdateRecipient(ctx context.Context, recipient *treasury.Recipient) error

	CreateSlot(ctx context.Context, slot *treasury.Slot) error
	GetSlot(ctx context.Context, id uuid.UUID) (*treasury.Slot, error)
	// SlotRecipientID reads a slot's recipient without locking the slot.
	SlotRecipientID(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	UpdateSlot(ctx context.Context, slot *treasury.Slot) error

	CreatePrize(ctx context.Context, p *prize.Prize) error
	GetPrize(ctx context.Context, id uuid.UUID) (*prize.Prize, error)
	DeletePrize(ctx context.Context, id uuid.UUID) error

	MembershipExists(ctx context.Context, kind directory.MembershipKind, address core.Address) (bool, error)
	RegisterMembership(ctx context.Context, membership directory.Membership) error

	// LockDiscovery serializes discovery registrations until the transaction
	// ends, so a capacity check and the insert that follows it cannot race.
	LockDiscovery(ctx context.Context) error
	ListDiscovery(ctx context.Context) ([]uuid.UUID, error)
	AddDiscovery(ctx context.Context, sessionID uuid.UUID) error
	RemoveDiscovery(ctx context.Context, sessionID uuid.UUID) error

	AppendTransfers(ctx context.Context, transfers []core.Transfer) error
	ListTransfers(ctx context.Context, to core.Address) ([]core.Transfer, error)
}

// CheckpointArchive keeps every finished round's checkpoint.
type CheckpointArchive interface {
	Put(sessionID uuid.UUID, settleVersion uint64, checkpoint []byte) error
	Get(sessionID uuid.UUID, settleVersion uint64) ([]byte, error)
	Versions(sessionID uuid.UUID) ([]uint64, error)
	Close() error
}
