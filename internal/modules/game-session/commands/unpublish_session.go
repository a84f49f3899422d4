package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	directory "github.com/eskrenkovic/session-ledger/internal/modules/directory/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
)

type UnpublishSessionCommand struct {
	SessionID uuid.UUID
	Caller    core.Address
}

func (c UnpublishSessionCommand) Validate() error {
	if c.SessionID == uuid.Nil {
		return fmt.Errorf("invalid SessionID - '%s'", c.SessionID)
	}

	if c.Caller == "" {
		return fmt.Errorf("invalid Caller - '%s'", c.Caller)
	}

	return nil
}

func HandleUnpublishSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	command := UnpublishSessionCommand{
		SessionID: sessionID,
		Caller:    core.Caller(r.Context()),
	}

	if _, err := mediator.Send[UnpublishSessionCommand, core.Unit](r.Context(), command); err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, nil)
}

type UnpublishSessionCommandHandler struct {
	store storage.Store
}

func NewUnpublishSessionCommandHandler(store storage.Store) *UnpublishSessionCommandHandler {
	return &UnpublishSessionCommandHandler{store}
}

func (h *UnpublishSessionCommandHandler) Handle(
	ctx context.Context,
	request UnpublishSessionCommand,
) (core.Unit, error) {
	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		session, err := repo.GetSession(ctx, request.SessionID)
		if err != nil {
			return err
		}

		if session.Owner != request.Caller {
			return core.Errorf(core.CodeUnauthorizedCaller, "%s does not own the session", request.Caller)
		}

		listed, err := repo.ListDiscovery(ctx)
		if err != nil {
			return err
		}

		// Capacity does not matter for removal.
		if err := directory.NewDiscovery(len(listed), listed).Unregister(session.ID); err != nil {
			return err
		}

		return repo.RemoveDiscovery(ctx, session.ID)
	})

	return core.Unit{}, err
}
