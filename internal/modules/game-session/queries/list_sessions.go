package queries

import (
	"context"
	"net/http"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"

	"github.com/eskrenkovic/mediator-go"
)

// ListSessionsQuery lists every session, or only those of Owner when set.
type ListSessionsQuery struct {
	Owner core.Address
}

func HandleListSessions(w http.ResponseWriter, r *http.Request) {
	query := ListSessionsQuery{
		Owner: core.Address(r.URL.Query().Get("owner")),
	}

	response, err := mediator.Send[ListSessionsQuery, []*domain.Session](r.Context(), query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type ListSessionsQueryHandler struct {
	store storage.Store
}

func NewListSessionsQueryHandler(store storage.Store) *ListSessionsQueryHandler {
	return &ListSessionsQueryHandler{store}
}

func (h *ListSessionsQueryHandler) Handle(
	ctx context.Context,
	request ListSessionsQuery,
) ([]*domain.Session, error) {
	var sessions []*domain.Session

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		sessions, err = repo.ListSessions(ctx, request.Owner)
		return err
	})

	return sessions, err
}
