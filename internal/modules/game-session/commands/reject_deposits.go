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

type RejectDepositsCommand struct {
	SessionID      uuid.UUID    `json:"-"`
	Caller         core.Address `json:"-"`
	AccessVersions []uint64     `json:"access_versions"`
}

func (c RejectDepositsCommand) Validate() error {
	if c.SessionID == uuid.Nil {
		return fmt.Errorf("invalid SessionID - '%s'", c.SessionID)
	}

	if c.Caller == "" {
		return fmt.Errorf("invalid Caller - '%s'", c.Caller)
	}

	if len(c.AccessVersions) == 0 {
		return fmt.Errorf("invalid AccessVersions - at least one deposit is required")
	}

	return nil
}

type RejectDepositsResponse struct {
	Refunds []core.Transfer `json:"refunds"`
}

func HandleRejectDeposits(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[RejectDepositsCommand](r)
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

	response, err := mediator.Send[RejectDepositsCommand, RejectDepositsResponse](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type RejectDepositsCommandHandler struct {
	store storage.Store
}

func NewRejectDepositsCommandHandler(store storage.Store) *RejectDepositsCommandHandler {
	return &RejectDepositsCommandHandler{store}
}

func (h *RejectDepositsCommandHandler) Handle(
	ctx context.Context,
	request RejectDepositsCommand,
) (RejectDepositsResponse, error) {
	var refunds []core.Transfer

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		session, err := repo.GetSession(ctx, request.SessionID)
		if err != nil {
			return err
		}

		refunds, err = session.RejectDeposits(request.Caller, request.AccessVersions)
		if err != nil {
			return err
		}

		if err := repo.UpdateSession(ctx, session); err != nil {
			return err
		}

		return repo.AppendTransfers(ctx, refunds)
	})
	if err != nil {
		return RejectDepositsResponse{}, err
	}

	return RejectDepositsResponse{Refunds: refunds}, nil
}
