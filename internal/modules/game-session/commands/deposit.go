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

// DepositCommand is a rebuy. SettleVersion pins it to the round the player
// observed.
type DepositCommand struct {
	SessionID     uuid.UUID    `json:"-"`
	Caller        core.Address `json:"-"`
	Amount        uint64       `json:"amount"`
	SettleVersion uint64       `json:"settle_version"`
}

func (c DepositCommand) Validate() error {
	if c.SessionID == uuid.Nil {
		return fmt.Errorf("invalid SessionID - '%s'", c.SessionID)
	}

	if c.Caller == "" {
		return fmt.Errorf("invalid Caller - '%s'", c.Caller)
	}

	return nil
}

func HandleDeposit(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[DepositCommand](r)
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

	response, err := mediator.Send[DepositCommand, domain.Deposit](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type DepositCommandHandler struct {
	store storage.Store
}

func NewDepositCommandHandler(store storage.Store) *DepositCommandHandler {
	return &DepositCommandHandler{store}
}

func (h *DepositCommandHandler) Handle(
	ctx context.Context,
	request DepositCommand,
) (domain.Deposit, error) {
	var deposit domain.Deposit

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		session, err := repo.GetSession(ctx, request.SessionID)
		if err != nil {
			return err
		}

		deposit, err = session.Deposit(request.Caller, request.Amount, request.SettleVersion)
		if err != nil {
			return err
		}

		return repo.UpdateSession(ctx, session)
	})

	return deposit, err
}
