package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"
	"github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
)

// DepositToSlotCommand funds a slot directly, outside of settlement.
type DepositToSlotCommand struct {
	SlotID    uuid.UUID    `json:"-"`
	Depositor core.Address `json:"-"`
	Amount    uint64       `json:"amount"`
}

func (c DepositToSlotCommand) Validate() error {
	if c.SlotID == uuid.Nil {
		return fmt.Errorf("invalid SlotID - '%s'", c.SlotID)
	}

	if c.Depositor == "" {
		return fmt.Errorf("invalid Depositor - '%s'", c.Depositor)
	}

	if c.Amount == 0 {
		return fmt.Errorf("invalid Amount - must be positive")
	}

	return nil
}

func HandleDepositToSlot(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[DepositToSlotCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	command.SlotID, err = core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.Depositor = core.Caller(r.Context())

	response, err := mediator.Send[DepositToSlotCommand, *domain.Slot](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type DepositToSlotCommandHandler struct {
	store storage.Store
}

func NewDepositToSlotCommandHandler(store storage.Store) *DepositToSlotCommandHandler {
	return &DepositToSlotCommandHandler{store}
}

func (h *DepositToSlotCommandHandler) Handle(
	ctx context.Context,
	request DepositToSlotCommand,
) (*domain.Slot, error) {
	var slot *domain.Slot

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		var recipient *domain.Recipient
		recipient, slot, err = lockSlot(ctx, repo, request.SlotID)
		if err != nil {
			return err
		}

		if err := slot.Deposit(request.Amount); err != nil {
			return err
		}

		return saveSlot(ctx, repo, recipient, slot)
	})

	return slot, err
}

// lockSlot locks the slot's recipient before the slot, the same order a
// settlement round takes them in.
func lockSlot(ctx context.Context, repo storage.Repository, slotID uuid.UUID) (*domain.Recipient, *domain.Slot, error) {
	recipientID, err := repo.SlotRecipientID(ctx, slotID)
	if err != nil {
		return nil, nil, err
	}

	recipient, err := repo.GetRecipient(ctx, recipientID)
	if err != nil {
		return nil, nil, err
	}

	slot, err := repo.GetSlot(ctx, slotID)
	if err != nil {
		return nil, nil, err
	}

	return recipient, slot, nil
}

// saveSlot writes the slot and refreshes its recipient's snapshot.
func saveSlot(ctx context.Context, repo storage.Repository, recipient *domain.Recipient, slot *domain.Slot) error {
	if err := recipient.Sync(slot); err != nil {
		return err
	}

	if err := repo.UpdateSlot(ctx, slot); err != nil {
		return err
	}

	return repo.UpdateRecipient(ctx, recipient)
}
