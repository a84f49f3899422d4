package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/game-session/settlement"
	prize "github.com/eskrenkovic/session-ledger/internal/modules/prize/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"
	treasury "github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettleSessionCommand carries a whole settlement round. It either applies
// completely or not at all.
type SettleSessionCommand struct {
	SessionID     uuid.UUID                 `json:"-"`
	Caller        core.Address              `json:"-"`
	SettleVersion uint64                    `json:"settle_version"`
	Settles       []settlement.SettleRecord `json:"settles"`
	Transfers     []settlement.SlotTransfer `json:"transfers"`
	Awards        []settlement.BonusAward   `json:"awards"`
	Finish        settlement.FinishParams   `json:"finish"`
}

func (c SettleSessionCommand) Validate() error {
	if c.SessionID == uuid.Nil {
		return fmt.Errorf("invalid SessionID - '%s'", c.SessionID)
	}

	if c.Caller == "" {
		return fmt.Errorf("invalid Caller - '%s'", c.Caller)
	}

	return nil
}

type SettleSessionResponse struct {
	SessionID     uuid.UUID       `json:"session_id"`
	SettleVersion uint64          `json:"settle_version"`
	Balance       uint64          `json:"balance"`
	Transfers     []core.Transfer `json:"transfers"`
}

func HandleSettleSession(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[SettleSessionCommand](r)
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

	response, err := mediator.Send[SettleSessionCommand, SettleSessionResponse](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type SettleSessionCommandHandler struct {
	store   storage.Store
	archive storage.CheckpointArchive
	logger  *zap.Logger
}

func NewSettleSessionCommandHandler(
	store storage.Store,
	archive storage.CheckpointArchive,
	logger *zap.Logger,
) *SettleSessionCommandHandler {
	return &SettleSessionCommandHandler{
		store:   store,
		archive: archive,
		logger:  logger,
	}
}

func (h *SettleSessionCommandHandler) Handle(
	ctx context.Context,
	request SettleSessionCommand,
) (SettleSessionResponse, error) {
	var outcome settlement.Outcome

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		ledger, err := h.loadLedger(ctx, repo, request)
		if err != nil {
			return err
		}

		outcome, err = settlement.Settle(ledger, settlement.Batch{
			Caller:                request.Caller,
			ExpectedSettleVersion: request.SettleVersion,
			Settles:               request.Settles,
			Transfers:             request.Transfers,
			Awards:                request.Awards,
			Finish:                request.Finish,
		})
		if err != nil {
			return err
		}

		return persistOutcome(ctx, repo, outcome)
	})
	if err != nil {
		return SettleSessionResponse{}, err
	}

	session := outcome.Session

	// The round is already committed.
	if err := h.archive.Put(session.ID, session.SettleVersion, session.Checkpoint); err != nil {
		h.logger.Error(
			"failed to archive checkpoint",
			zap.String("session_id", session.ID.String()),
			zap.Uint64("settle_version", session.SettleVersion),
			zap.Error(err),
		)
	}

	h.logger.Info(
		"settlement round finished",
		zap.String("session_id", session.ID.String()),
		zap.Uint64("settle_version", session.SettleVersion),
		zap.Uint64("balance", session.Balance),
		zap.Int("transfers", len(outcome.Transfers)),
		zap.Int("slots", len(outcome.Slots)),
	)

	return SettleSessionResponse{
		SessionID:     session.ID,
		SettleVersion: session.SettleVersion,
		Balance:       session.Balance,
		Transfers:     outcome.Transfers,
	}, nil
}

func (h *SettleSessionCommandHandler) loadLedger(
	ctx context.Context,
	repo storage.Repository,
	request SettleSessionCommand,
) (settlement.Ledger, error) {
	session, err := repo.GetSession(ctx, request.SessionID)
	if err != nil {
		return settlement.Ledger{}, err
	}

	ledger := settlement.Ledger{
		Session: session,
		Slots:   make(map[uuid.UUID]*treasury.Slot, len(request.Transfers)),
		Prizes:  make(map[uuid.UUID]*prize.Prize, len(request.Awards)),
	}

	if len(request.Transfers) > 0 {
		ledger.Recipient, err = repo.GetRecipient(ctx, session.RecipientID)
		if err != nil {
			return settlement.Ledger{}, err
		}

		for _, t := range request.Transfers {
			if _, loaded := ledger.Slots[t.SlotID]; loaded {
				continue
			}

			slot, err := repo.GetSlot(ctx, t.SlotID)
			if err != nil {
				return settlement.Ledger{}, err
			}
			ledger.Slots[t.SlotID] = slot
		}
	}

	for _, a := range request.Awards {
		if _, loaded := ledger.Prizes[a.PrizeID]; loaded {
			continue
		}

		p, err := repo.GetPrize(ctx, a.PrizeID)
		if err != nil {
			return settlement.Ledger{}, err
		}
		ledger.Prizes[a.PrizeID] = p
	}

	return ledger, nil
}

func persistOutcome(ctx context.Context, repo storage.Repository, outcome settlement.Outcome) error {
	if err := repo.UpdateSession(ctx, outcome.Session); err != nil {
		return err
	}

	if outcome.Recipient != nil {
		if err := repo.UpdateRecipient(ctx, outcome.Recipient); err != nil {
			return err
		}
	}

	for _, slot := range outcome.Slots {
		if err := repo.UpdateSlot(ctx, slot); err != nil {
			return err
		}
	}

	for _, prizeID := range outcome.ConsumedPrizes {
		if err := repo.DeletePrize(ctx, prizeID); err != nil {
			return err
		}
	}

	return repo.AppendTransfers(ctx, outcome.Transfers)
}
