package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	directory "github.com/eskrenkovic/session-ledger/internal/modules/directory/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
)

type HostJoinCommand struct {
	SessionID uuid.UUID    `json:"-"`
	Caller    core.Address `json:"-"`
	Endpoint  string       `json:"endpoint"`
	VerifyKey string       `json:"verify_key"`
}

func (c HostJoinCommand) Validate() error {
	if c.SessionID == uuid.Nil {
		return fmt.Errorf("invalid SessionID - '%s'", c.SessionID)
	}

	if c.Caller == "" {
		return fmt.Errorf("invalid Caller - '%s'", c.Caller)
	}

	if c.Endpoint == "" {
		return fmt.Errorf("invalid Endpoint - '%s'", c.Endpoint)
	}

	return nil
}

func HandleHostJoin(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[HostJoinCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	command.SessionID, err = core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.Caller = core.Caller(r.Context())

	response, err := mediator.Send[HostJoinCommand, domain.HostEntry](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type HostJoinCommandHandler struct {
	store storage.Store
}

func NewHostJoinCommandHandler(store storage.Store) *HostJoinCommandHandler {
	return &HostJoinCommandHandler{store}
}

func (h *HostJoinCommandHandler) Handle(
	ctx context.Context,
	request HostJoinCommand,
) (domain.HostEntry, error) {
	var host domain.HostEntry

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		registered, err := repo.MembershipExists(ctx, directory.MembershipKindServer, request.Caller)
		if err != nil {
			return err
		}
		if !registered {
			return core.Errorf(core.CodeUnauthorizedCaller, "%s is not a registered server", request.Caller)
		}

		session, err := repo.GetSession(ctx, request.SessionID)
		if err != nil {
			return err
		}

		host, err = session.HostJoin(request.Caller, request.Endpoint, request.VerifyKey)
		if err != nil {
			return err
		}

		return repo.UpdateSession(ctx, session)
	})

	return host, err
}
