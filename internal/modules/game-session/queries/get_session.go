package queries

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
)

type GetSessionQuery struct {
	SessionID uuid.UUID
}

func (q GetSessionQuery) Validate() error {
	if q.SessionID == uuid.Nil {
		return fmt.Errorf("invalid SessionID - '%s'", q.SessionID)
	}

	return nil
}

func HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	response, err := mediator.Send[GetSessionQuery, *domain.Session](
		r.Context(),
		GetSessionQuery{SessionID: sessionID},
	)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type GetSessionQueryHandler struct {
	store storage.Store
}

func NewGetSessionQueryHandler(store storage.Store) *GetSessionQueryHandler {
	return &GetSessionQueryHandler{store}
}

func (h *GetSessionQueryHandler) Handle(
	ctx context.Context,
	request GetSessionQuery,
) (*domain.Session, error) {
	var session *domain.Session

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		session, err = repo.GetSession(ctx, request.SessionID)
		return err
	})

	return session, err
}
