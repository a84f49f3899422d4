package domain

import (
	"slices"
	"time"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"

	"github.com/google/uuid"
)

// RecipientSlot is the recipient's cached view of one slot.
type RecipientSlot struct {
	SlotID    uuid.UUID `json:"slot_id"`
	Name      string    `json:"name"`
	Kind      AssetKind `json:"kind"`
	TokenType string    `json:"token_type"`
	Balance   uint64    `json:"balance"`
}

// Recipient groups the slots a session pays into. Its balances are a
// snapshot refreshed by Sync after every slot mutation.
type Recipient struct {
	ID        uuid.UUID       `json:"id"`
	Admin     core.Address    `json:"admin"`
	Slots     []RecipientSlot `json:"slots"`
	CreatedAt time.Time       `json:"created_at"`
}

type SlotSpec struct {
	Name      string
	Kind      AssetKind
	TokenType string
	Shares    []Share
}

// NewRecipient creates a recipient together with its slots.
func NewRecipient(admin core.Address, specs []SlotSpec) (*Recipient, []*Slot, error) {
	if admin == "" {
		return nil, nil, core.Errorf(core.CodeInvalidArgument, "admin is required")
	}

	if len(specs) == 0 {
		return nil, nil, core.Errorf(core.CodeInvalidArgument, "recipient requires at least one slot")
	}

	recipient := &Recipient{
		ID:        uuid.New(),
		Admin:     admin,
		Slots:     make([]RecipientSlot, 0, len(specs)),
		CreatedAt: time.Now().UTC(),
	}

	slots := make([]*Slot, 0, len(specs))
	for _, spec := range specs {
		slot, err := NewSlot(recipient.ID, spec.Name, spec.Kind, spec.TokenType, spec.Shares)
		if err != nil {
			return nil, nil, err
		}

		slots = append(slots, slot)
		recipient.Slots = append(recipient.Slots, RecipientSlot{
			SlotID:    slot.ID,
			Name:      slot.Name,
			Kind:      slot.Kind,
			TokenType: slot.TokenType,
		})
	}

	return recipient, slots, nil
}

func (r *Recipient) Holds(slotID uuid.UUID) bool {
	return slices.ContainsFunc(r.Slots, func(s RecipientSlot) bool {
		return s.SlotID == slotID
	})
}

func (r *Recipient) Sync(slot *Slot) error {
	idx := slices.IndexFunc(r.Slots, func(s RecipientSlot) bool {
		return s.SlotID == slot.ID
	})
	if idx < 0 {
		return core.Errorf(core.CodeRecordNotFound, "slot %s does not belong to recipient %s", slot.ID, r.ID)
	}

	r.Slots[idx].Balance = slot.Balance
	return nil
}

func (r *Recipient) Clone() *Recipient {
	c := *r
	c.Slots = slices.Clone(r.Slots)
	return &c
}
