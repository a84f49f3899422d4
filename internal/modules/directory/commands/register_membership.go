package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/directory/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"

	"github.com/eskrenkovic/mediator-go"
)

// RegisterMembershipCommand registers the caller as a player profile or a
// server. Each address holds at most one membership per kind.
type RegisterMembershipCommand struct {
	Kind     domain.MembershipKind `json:"-"`
	Address  core.Address          `json:"-"`
	Name     string                `json:"name"`
	Endpoint string                `json:"endpoint"`
}

func (c RegisterMembershipCommand) Validate() error {
	if err := c.Kind.Validate(); err != nil {
		return err
	}

	if c.Address == "" {
		return fmt.Errorf("invalid Address - '%s'", c.Address)
	}

	return nil
}

func HandleRegisterProfile(w http.ResponseWriter, r *http.Request) {
	handleRegisterMembership(w, r, domain.MembershipKindPlayerProfile)
}

func HandleRegisterServer(w http.ResponseWriter, r *http.Request) {
	handleRegisterMembership(w, r, domain.MembershipKindServer)
}

func handleRegisterMembership(w http.ResponseWriter, r *http.Request, kind domain.MembershipKind) {
	command, err := core.RequestBody[RegisterMembershipCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.Kind = kind
	command.Address = core.Caller(r.Context())

	response, err := mediator.Send[RegisterMembershipCommand, domain.Membership](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteCreated(w, r, "/memberships/"+response.RecordID.String(), response)
}

type RegisterMembershipCommandHandler struct {
	store storage.Store
}

func NewRegisterMembershipCommandHandler(store storage.Store) *RegisterMembershipCommandHandler {
	return &RegisterMembershipCommandHandler{store}
}

func (h *RegisterMembershipCommandHandler) Handle(
	ctx context.Context,
	request RegisterMembershipCommand,
) (domain.Membership, error) {
	membership, err := domain.NewMembership(request.Kind, request.Address, request.Name, request.Endpoint)
	if err != nil {
		return domain.Membership{}, err
	}

	err = h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		return repo.RegisterMembership(ctx, membership)
	})
	if err != nil {
		return domain.Membership{}, err
	}

	return membership, nil
}
