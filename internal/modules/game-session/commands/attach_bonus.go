package commands

import (
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	prize "github.com/eskrenkovic/session-ledger/internal/modules/prize/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
)

// AttachBonusCommand escrows a prize and attaches it to a session. Anyone
// may fund a bonus.
type AttachBonusCommand struct {
	SessionID  uuid.UUID    `json:"-"`
	Funder     core.Address `json:"-"`
	Identifier string       `json:"identifier"`
	TokenType  string       `json:"token_type"`
	Amount     uint64       `json:"amount"`
	Payload    []byte       `json:"payload"`
}

func (c AttachBonusCommand) Validate() error {
	if c.SessionID == uuid.Nil {
		return fmt.Errorf("invalid SessionID - '%s'", c.SessionID)
	}

	if c.Funder == "" {
		return fmt.Errorf("invalid Funder - '%s'", c.Funder)
	}

	if c.Identifier == "" {
		return fmt.Errorf("invalid Identifier - '%s'", c.Identifier)
	}

	return nil
}

type AttachBonusResponse struct {
	PrizeID uuid.UUID `json:"prize_id"`
}

func HandleAttachBonus(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[AttachBonusCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	command.SessionID, err = core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.Funder = core.Caller(r.Context())

	response, err := mediator.Send[AttachBonusCommand, AttachBonusResponse](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	location := path.Join("/game-sessions", command.SessionID.String(), "bonuses", response.PrizeID.String())
	core.WriteCreated(w, r, location, response)
}

type AttachBonusCommandHandler struct {
	store storage.Store
}

func NewAttachBonusCommandHandler(store storage.Store) *AttachBonusCommandHandler {
	return &AttachBonusCommandHandler{store}
}

func (h *AttachBonusCommandHandler) Handle(
	ctx context.Context,
	request AttachBonusCommand,
) (AttachBonusResponse, error) {
	tokenType := request.TokenType
	if tokenType == "" {
		tokenType = core.NativeToken
	}

	p, err := prize.Create(
		request.SessionID,
		request.Funder,
		request.Identifier,
		tokenType,
		request.Amount,
		request.Payload,
	)
	if err != nil {
		return AttachBonusResponse{}, err
	}

	err = h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		session, err := repo.GetSession(ctx, request.SessionID)
		if err != nil {
			return err
		}

		if err := session.AttachBonus(p.ID); err != nil {
			return err
		}

		if err := repo.CreatePrize(ctx, p); err != nil {
			return err
		}

		return repo.UpdateSession(ctx, session)
	})
	if err != nil {
		return AttachBonusResponse{}, err
	}

	return AttachBonusResponse{PrizeID: p.ID}, nil
}
