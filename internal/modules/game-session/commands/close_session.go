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

// CloseSessionCommand destroys an empty session. Closing also takes it off
// discovery.
type CloseSessionCommand struct {
	SessionID uuid.UUID
	Caller    core.Address
}

func (c CloseSessionCommand) Validate() error {
	if c.SessionID == uuid.Nil {
		return fmt.Errorf("invalid SessionID - '%s'", c.SessionID)
	}

	if c.Caller == "" {
		return fmt.Errorf("invalid Caller - '%s'", c.Caller)
	}

	return nil
}

func HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	command := CloseSessionCommand{
		SessionID: sessionID,
		Caller:    core.Caller(r.Context()),
	}

	if _, err := mediator.Send[CloseSessionCommand, core.Unit](r.Context(), command); err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, nil)
}

type CloseSessionCommandHandler struct {
	store storage.Store
}

func NewCloseSessionCommandHandler(store storage.Store) *CloseSessionCommandHandler {
	return &CloseSessionCommandHandler{store}
}

func (h *CloseSessionCommandHandler) Handle(
	ctx context.Context,
	request CloseSessionCommand,
) (core.Unit, error) {
	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		session, err := repo.GetSession(ctx, request.SessionID)
		if err != nil {
			return err
		}

		if err := session.CanClose(request.Caller); err != nil {
			return err
		}

		if err := repo.RemoveDiscovery(ctx, session.ID); err != nil {
			return err
		}

		return repo.DeleteSession(ctx, session.ID)
	})

	return core.Unit{}, err
}
