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

type ListCheckpointsQuery struct {
	SessionID uuid.UUID
}

func (q ListCheckpointsQuery) Validate() error {
	if q.SessionID == uuid.Nil {
		return fmt.Errorf("invalid SessionID - '%s'", q.SessionID)
	}

	return nil
}

type ListCheckpointsResponse struct {
	SessionID      uuid.UUID `json:"session_id"`
	SettleVersions []uint64  `json:"settle_versions"`
}

func HandleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	sessionID, err := core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	response, err := mediator.Send[ListCheckpointsQuery, ListCheckpointsResponse](
		r.Context(),
		ListCheckpointsQuery{SessionID: sessionID},
	)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type ListCheckpointsQueryHandler struct {
	archive storage.CheckpointArchive
}

func NewListCheckpointsQueryHandler(archive storage.CheckpointArchive) *ListCheckpointsQueryHandler {
	return &ListCheckpointsQueryHandler{archive}
}

func (h *ListCheckpointsQueryHandler) Handle(
	_ context.Context,
	request ListCheckpointsQuery,
) (ListCheckpointsResponse, error) {
	versions, err := h.archive.Versions(request.SessionID)
	if err != nil {
		return ListCheckpointsResponse{}, err
	}

	return ListCheckpointsResponse{SessionID: request.SessionID, SettleVersions: versions}, nil
}
