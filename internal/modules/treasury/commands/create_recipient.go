package commands

import (
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"
	"github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
)

type SlotRequest struct {
	Name      string           `json:"name"`
	Kind      domain.AssetKind `json:"kind"`
	TokenType string           `json:"token_type"`
	Shares    []domain.Share   `json:"shares"`
}

type CreateRecipientCommand struct {
	Admin core.Address  `json:"-"`
	Slots []SlotRequest `json:"slots"`
}

func (c CreateRecipientCommand) Validate() error {
	if c.Admin == "" {
		return fmt.Errorf("invalid Admin - '%s'", c.Admin)
	}

	if len(c.Slots) == 0 {
		return fmt.Errorf("invalid Slots - at least one slot is required")
	}

	return nil
}

type CreateRecipientResponse struct {
	RecipientID uuid.UUID   `json:"recipient_id"`
	SlotIDs     []uuid.UUID `json:"slot_ids"`
}

func HandleCreateRecipient(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[CreateRecipientCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.Admin = core.Caller(r.Context())

	response, err := mediator.Send[CreateRecipientCommand, CreateRecipientResponse](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	location := path.Join("/recipients", response.RecipientID.String())
	core.WriteCreated(w, r, location, response)
}

type CreateRecipientCommandHandler struct {
	store storage.Store
}

func NewCreateRecipientCommandHandler(store storage.Store) *CreateRecipientCommandHandler {
	return &CreateRecipientCommandHandler{store}
}

func (h *CreateRecipientCommandHandler) Handle(
	ctx context.Context,
	request CreateRecipientCommand,
) (CreateRecipientResponse, error) {
	specs := core.Map(request.Slots, func(s SlotRequest) domain.SlotSpec {
		return domain.SlotSpec{
			Name:      s.Name,
			Kind:      s.Kind,
			TokenType: s.TokenType,
			Shares:    s.Shares,
		}
	})

	recipient, slots, err := domain.NewRecipient(request.Admin, specs)
	if err != nil {
		return CreateRecipientResponse{}, err
	}

	err = h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		if err := repo.CreateRecipient(ctx, recipient); err != nil {
			return err
		}

		for _, slot := range slots {
			if err := repo.CreateSlot(ctx, slot); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return CreateRecipientResponse{}, err
	}

	return CreateRecipientResponse{
		RecipientID: recipient.ID,
		SlotIDs: core.Map(slots, func(s *domain.Slot) uuid.UUID {
			return s.ID
		}),
	}, nil
}
