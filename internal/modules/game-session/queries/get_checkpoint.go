package queries

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
)

// GetCheckpointQuery reads the checkpoint a round finished with.
type GetCheckpointQuery struct {
	SessionID     uuid.UUID
	SettleVersion uint64
}

func (q GetCheckpointQuery) Validate() error {
	if q.SessionID == uuid.Nil {
		return fmt.Errorf("invalid SessionID - '%s'", q.SessionID)
	}

	return nil
}

type CheckpointResponse struct {
	SessionID     uuid.UUID `json:"session_id"`
	SettleVersion uint64    `json:"settle_version"`
	Checkpoint    []byte    `json:"checkpoint"`
}

func HandleGetCheckpoint(w http.ResponseWriter, r *http.Request) {
	sessionID, err := core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	settleVersion, err := core.URLParamUint64(r, "version")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	response, err := mediator.Send[GetCheckpointQuery, CheckpointResponse](
		r.Context(),
		GetCheckpointQuery{SessionID: sessionID, SettleVersion: settleVersion},
	)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type GetCheckpointQueryHandler struct {
	archive storage.CheckpointArchive
}

func NewGetCheckpointQueryHandler(archive storage.CheckpointArchive) *GetCheckpointQueryHandler {
	return &GetCheckpointQueryHandler{archive}
}

func (h *GetCheckpointQueryHandler) Handle(
	_ context.Context,
	request GetCheckpointQuery,
) (CheckpointResponse, error) {
	checkpoint, err := h.archive.Get(request.SessionID, request.SettleVersion)
	if err != nil {
		return CheckpointResponse{}, err
	}

	return CheckpointResponse{
		SessionID:     request.SessionID,
		SettleVersion: request.SettleVersion,
		Checkpoint:    checkpoint,
	}, nil
}
