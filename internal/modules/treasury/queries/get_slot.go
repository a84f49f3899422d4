package queries

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

type GetSlotQuery struct {
	SlotID uuid.UUID
}

func (q GetSlotQuery) Validate() error {
	if q.SlotID == uuid.Nil {
		return fmt.Errorf("invalid SlotID - '%s'", q.SlotID)
	}

	return nil
}

func HandleGetSlot(w http.ResponseWriter, r *http.Request) {
	slotID, err := core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	response, err := mediator.Send[GetSlotQuery, *domain.Slot](r.Context(), GetSlotQuery{SlotID: slotID})
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type GetSlotQueryHandler struct {
	store storage.Store
}

func NewGetSlotQueryHandler(store storage.Store) *GetSlotQueryHandler {
	return &GetSlotQueryHandler{store}
}

func (h *GetSlotQueryHandler) Handle(
	ctx context.Context,
	request GetSlotQuery,
) (*domain.Slot, error) {
	var slot *domain.Slot

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		slot, err = repo.GetSlot(ctx, request.SlotID)
		return err
	})

	return slot, err
}
