package commands

import (
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
)

type CreateSessionCommand struct {
	Owner         core.Address     `json:"-"`
	Title         string           `json:"title"`
	Version       string           `json:"version"`
	BundlePointer string           `json:"bundle_pointer"`
	RecipientID   uuid.UUID        `json:"recipient_id"`
	MaxPlayers    uint16           `json:"max_players"`
	EntryType     domain.EntryType `json:"entry_type"`
	EntryLock     domain.EntryLock `json:"entry_lock"`
}

func (c CreateSessionCommand) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("invalid Owner - '%s'", c.Owner)
	}

	if c.Title == "" {
		return fmt.Errorf("invalid Title - '%s'", c.Title)
	}

	if c.RecipientID == uuid.Nil {
		return fmt.Errorf("invalid RecipientID - '%s'", c.RecipientID)
	}

	return nil
}

type CreateSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
}

func HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[CreateSessionCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.Owner = core.Caller(r.Context())

	response, err := mediator.Send[CreateSessionCommand, CreateSessionResponse](
		r.Context(),
		command,
	)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	location := path.Join("/game-sessions", response.SessionID.String())
	core.WriteCreated(w, r, location, response)
}

type CreateSessionCommandHandler struct {
	store storage.Store
}

func NewCreateSessionCommandHandler(store storage.Store) *CreateSessionCommandHandler {
	return &CreateSessionCommandHandler{store}
}

func (h *CreateSessionCommandHandler) Handle(
	ctx context.Context,
	request CreateSessionCommand,
) (CreateSessionResponse, error) {
	session, err := domain.NewSession(domain.NewSessionParams{
		Version:       request.Version,
		Title:         request.Title,
		BundlePointer: request.BundlePointer,
		Owner:         request.Owner,
		RecipientID:   request.RecipientID,
		MaxPlayers:    request.MaxPlayers,
		EntryType:     request.EntryType,
		EntryLock:     request.EntryLock,
	})
	if err != nil {
		return CreateSessionResponse{}, err
	}

	err = h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		if _, err := repo.GetRecipient(ctx, request.RecipientID); err != nil {
			return err
		}

		return repo.CreateSession(ctx, session)
	})
	if err != nil {
		return CreateSessionResponse{}, err
	}

	return CreateSessionResponse{SessionID: session.ID}, nil
}
