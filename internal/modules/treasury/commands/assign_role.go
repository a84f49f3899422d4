package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"
	"github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
)

// AssignRoleCommand binds a role-tagged share to an address. Only the
// recipient admin may do this.
type AssignRoleCommand struct {
	SlotID  uuid.UUID    `json:"-"`
	Caller  core.Address `json:"-"`
	Role    string       `json:"role"`
	Address core.Address `json:"address"`
}

func (c AssignRoleCommand) Validate() error {
	if c.SlotID == uuid.Nil {
		return fmt.Errorf("invalid SlotID - '%s'", c.SlotID)
	}

	if c.Caller == "" {
		return fmt.Errorf("invalid Caller - '%s'", c.Caller)
	}

	if c.Role == "" {
		return fmt.Errorf("invalid Role - '%s'", c.Role)
	}

	if c.Address == "" {
		return fmt.Errorf("invalid Address - '%s'", c.Address)
	}

	return nil
}

func HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[AssignRoleCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	command.SlotID, err = core.URLParamUUID(r, "id")
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.Caller = core.Caller(r.Context())

	response, err := mediator.Send[AssignRoleCommand, *domain.Slot](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type AssignRoleCommandHandler struct {
	store storage.Store
}

func NewAssignRoleCommandHandler(store storage.Store) *AssignRoleCommandHandler {
	return &AssignRoleCommandHandler{store}
}

func (h *AssignRoleCommandHandler) Handle(
	ctx context.Context,
	request AssignRoleCommand,
) (*domain.Slot, error) {
	var slot *domain.Slot

	err := h.store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		var recipient *domain.Recipient
		recipient, slot, err = lockSlot(ctx, repo, request.SlotID)
		if err != nil {
			return err
		}

		if recipient.Admin != request.Caller {
			return core.Errorf(core.CodeUnauthorizedCaller, "%s does not administer recipient %s", request.Caller, recipient.ID)
		}

		if err := slot.AssignRole(request.Role, request.Address); err != nil {
			return err
		}

		return repo.UpdateSlot(ctx, slot)
	})

	return slot, err
}
