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

type GetRecipientQuery struct {
	RecipientID uuid.UUID
}

func (q GetRecipientQuery) Validate() error {
	if q.RecipientID == uuid.Nil {
		return fmt.Errorf("invalid RecipientID - '%s'", q.RecipientID)
	}

	return nil
}

func HandleGetRecipient(w http.ResponseWriter, r *http.Request) {
	recipientID, err := core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	response, err := mediator.Send[GetRecipientQuery, *domain.Recipient](
		r.Context(),
		GetRecipientQuery{RecipientID: recipientID},
	)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type GetRecipientQueryHandler struct {
	store storage.Store
}

func NewGetRecipientQueryHandler(store storage.Store) *GetRecipientQueryHandler {
	return &GetRecipientQueryHandler{store}
}

func (h *GetRecipientQueryHandler) Handle(
	ctx context.Context,
	request GetRecipientQuery,
) (*domain.Recipient, error) {
	var recipient *domain.Recipient

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		recipient, err = repo.GetRecipient(ctx, request.RecipientID)
		return err
	})

	return recipient, err
}
