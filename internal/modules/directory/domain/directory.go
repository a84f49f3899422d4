package domain

import (
	"slices"
	"time"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"

	"github.com/google/uuid"
)

type MembershipKind string

const (
	MembershipKindPlayerProfile MembershipKind = "player_profile"
	MembershipKindServer        MembershipKind = "server"
)

func (k MembershipKind) Validate() error {
	switch k {
	case MembershipKindPlayerProfile, MembershipKindServer:
		return nil
	default:
		return core.Errorf(core.CodeInvalidArgument, "unknown membership kind '%s'", k)
	}
}

// Membership maps a caller to at most one record of each kind.
type Membership struct {
	Address   core.Address   `json:"address"`
	Kind      MembershipKind `json:"kind"`
	RecordID  uuid.UUID      `json:"record_id"`
	Name      string         `json:"name"`
	Endpoint  string         `json:"endpoint,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func NewMembership(kind MembershipKind, address core.Address, name string, endpoint string) (Membership, error) {
	if err := kind.Validate(); err != nil {
		return Membership{}, err
	}

	if address == "" {
		return Membership{}, core.Errorf(core.CodeInvalidArgument, "address is required")
	}

	if kind == MembershipKindServer && endpoint == "" {
		return Membership{}, core.Errorf(core.CodeInvalidArgument, "server %s requires an endpoint", address)
	}

	return Membership{
		Address:   address,
		Kind:      kind,
		RecordID:  uuid.New(),
		Name:      name,
		Endpoint:  endpoint,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Discovery is the bounded list of sessions open for browsing.
type Discovery struct {
	Capacity int
	Entries  []uuid.UUID
}

func NewDiscovery(capacity int, entries []uuid.UUID) *Discovery {
	return &Discovery{Capacity: capacity, Entries: slices.Clone(entries)}
}

func (d *Discovery) Register(sessionID uuid.UUID) error {
	if slices.Contains(d.Entries, sessionID) {
		return core.Errorf(core.CodeDuplicateMembership, "session %s already listed", sessionID)
	}

	if len(d.Entries) >= d.Capacity {
		return core.Errorf(core.CodeCapacityExceeded, "discovery is full with %d sessions", d.Capacity)
	}

	d.Entries = append(d.Entries, sessionID)
	return nil
}

func (d *Discovery) Unregister(sessionID uuid.UUID) error {
	idx := slices.Index(d.Entries, sessionID)
	if idx < 0 {
		return core.Errorf(core.CodeRecordNotFound, "session %s is not listed", sessionID)
	}

	d.Entries = slices.Delete(d.Entries, idx, idx+1)
	return nil
}

func (d *Discovery) List() []uuid.UUID {
	return slices.Clone(d.Entries)
}
