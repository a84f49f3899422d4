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

type PublishSessionCommand struct {
	SessionID uuid.UUID
	Caller    core.Address
}

func (c PublishSessionCommand) Validate() error {
	if c.SessionID == uuid.Nil {
		return fmt.Errorf("invalid SessionID - '%s'", c.SessionID)
	}

	if c.Caller == "" {
		return fmt.Errorf("invalid Caller - '%s'", c.Caller)
	}

	return nil
}

func HandlePublishSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	command := PublishSessionCommand{
		SessionID: sessionID,
		Caller:    core.Caller(r.Context()),
	}

	if _, err := mediator.Send[PublishSessionCommand, core.Unit](r.Context(), command); err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, nil)
}

type PublishSessionCommandHandler struct {
	store    storage.Store
	capacity int
}

func NewPublishSessionCommandHandler(store storage.Store, capacity int) *PublishSessionCommandHandler {
	return &PublishSessionCommandHandler{store: store, capacity: capacity}
}

func (h *PublishSessionCommandHandler) Handle(
	ctx context.Context,
	request PublishSessionCommand,
) (core.Unit, error) {
	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		session, err := repo.GetSession(ctx, request.SessionID)
		if err != nil {
			return err
		}

		if session.Owner != request.Caller {
			return core.Errorf(core.CodeUnauthorizedCaller, "%s does not own the session", request.Caller)
		}

		if err := repo.LockDiscovery(ctx); err != nil {
			return err
		}

		listed, err := repo.ListDiscovery(ctx)
		if err != nil {
			return err
		}

		if err := directory.NewDiscovery(h.capacity, listed).Register(session.ID); err != nil {
			return err
		}

		return repo.AddDiscovery(ctx, session.ID)
	})

	return core.Unit{}, err
}
