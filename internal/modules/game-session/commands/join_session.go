package commands

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

type JoinSessionCommand struct {
	SessionID uuid.UUID    `json:"-"`
	Caller    core.Address `json:"-"`
	Position  uint16       `json:"position"`
	Amount    uint64       `json:"amount"`
	VerifyKey string       `json:"verify_key"`
}

func (c JoinSessionCommand) Validate() error {
	if c.SessionID == uuid.Nil {
		return fmt.Errorf("invalid SessionID - '%s'", c.SessionID)
	}

	if c.Caller == "" {
		return fmt.Errorf("invalid Caller - '%s'", c.Caller)
	}

	return nil
}

func HandleJoinSession(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[JoinSessionCommand](r)
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

	response, err := mediator.Send[JoinSessionCommand, domain.PlayerEntry](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type JoinSessionCommandHandler struct {
	store storage.Store
}

func NewJoinSessionCommandHandler(store storage.Store) *JoinSessionCommandHandler {
	return &JoinSessionCommandHandler{store}
}

func (h *JoinSessionCommandHandler) Handle(
	ctx context.Context,
	request JoinSessionCommand,
) (domain.PlayerEntry, error) {
	var player domain.PlayerEntry

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		session, err := repo.GetSession(ctx, request.SessionID)
		if err != nil {
			return err
		}

		player, err = session.Join(request.Caller, request.Position, request.Amount, request.VerifyKey)
		if err != nil {
			return err
		}

		return repo.UpdateSession(ctx, session)
	})

	return player, err
}
