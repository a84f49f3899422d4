package queries

import (
	"context"
	"errors"
	"net/http"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"

	"github.com/eskrenkovic/mediator-go"
)

type ListDiscoveryQuery struct{}

func HandleListDiscovery(w http.ResponseWriter, r *http.Request) {
	response, err := mediator.Send[ListDiscoveryQuery, []*domain.Session](r.Context(), ListDiscoveryQuery{})
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type ListDiscoveryQueryHandler struct {
	store storage.Store
}

func NewListDiscoveryQueryHandler(store storage.Store) *ListDiscoveryQueryHandler {
	return &ListDiscoveryQueryHandler{store}
}

// Handle returns listed sessions in publication order.
func (h *ListDiscoveryQueryHandler) Handle(
	ctx context.Context,
	_ ListDiscoveryQuery,
) ([]*domain.Session, error) {
	sessions := make([]*domain.Session, 0)

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		listed, err := repo.ListDiscovery(ctx)
		if err != nil {
			return err
		}

		for _, id := range listed {
			session, err := repo.GetSession(ctx, id)
			if errors.Is(err, core.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			sessions = append(sessions, session)
		}

		return nil
	})

	return sessions, err
}
