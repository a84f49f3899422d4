package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
)

type ClaimCommand struct {
	SlotID   uuid.UUID
	Claimant core.Address
}

func (c ClaimCommand) Validate() error {
	if c.SlotID == uuid.Nil {
		return fmt.Errorf("invalid SlotID - '%s'", c.SlotID)
	}

	if c.Claimant == "" {
		return fmt.Errorf("invalid Claimant - '%s'", c.Claimant)
	}

	return nil
}

// ClaimResponse carries no transfer when nothing new was owed.
type ClaimResponse struct {
	Amount   uint64         `json:"amount"`
	Transfer *core.Transfer `json:"transfer,omitempty"`
}

func HandleClaim(w http.ResponseWriter, r *http.Request) {
	slotID, err := core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	command := ClaimCommand{
		SlotID:   slotID,
		Claimant: core.Caller(r.Context()),
	}

	response, err := mediator.Send[ClaimCommand, ClaimResponse](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type ClaimCommandHandler struct {
	store storage.Store
}

func NewClaimCommandHandler(store storage.Store) *ClaimCommandHandler {
	return &ClaimCommandHandler{store}
}

func (h *ClaimCommandHandler) Handle(
	ctx context.Context,
	request ClaimCommand,
) (ClaimResponse, error) {
	var response ClaimResponse

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		recipient, slot, err := lockSlot(ctx, repo, request.SlotID)
		if err != nil {
			return err
		}

		amount, err := slot.Claim(request.Claimant)
		if err != nil {
			return err
		}

		if amount == 0 {
			return nil
		}

		if err := saveSlot(ctx, repo, recipient, slot); err != nil {
			return err
		}

		transfer := core.NewTransfer(core.TransferKindClaim, slot.ID, request.Claimant, slot.TokenType, amount)
		if err := repo.AppendTransfers(ctx, []core.Transfer{transfer}); err != nil {
			return err
		}

		response = ClaimResponse{Amount: amount, Transfer: &transfer}
		return nil
	})

	return response, err
}
