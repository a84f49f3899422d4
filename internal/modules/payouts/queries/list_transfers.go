package queries

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"

	"github.com/eskrenkovic/mediator-go"
)

// ListTransfersQuery returns every outbound transfer made to an address,
// oldest first.
type ListTransfersQuery struct {
	To core.Address
}

func (q ListTransfersQuery) Validate() error {
	if q.To == "" {
		return fmt.Errorf("invalid To - '%s'", q.To)
	}

	return nil
}

func HandleListTransfers(w http.ResponseWriter, r *http.Request) {
	to := core.Address(r.URL.Query().Get("to"))
	if to == "" {
		to = core.Caller(r.Context())
	}

	response, err := mediator.Send[ListTransfersQuery, []core.Transfer](r.Context(), ListTransfersQuery{To: to})
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type ListTransfersQueryHandler struct {
	store storage.Store
}

func NewListTransfersQueryHandler(store storage.Store) *ListTransfersQueryHandler {
	return &ListTransfersQueryHandler{store}
}

func (h *ListTransfersQueryHandler) Handle(
	ctx context.Context,
	request ListTransfersQuery,
) ([]core.Transfer, error) {
	var transfers []core.Transfer

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		transfers, err = repo.ListTransfers(ctx, request.To)
		return err
	})

	return transfers, err
}
