package domain

import (
	"slices"
	"time"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"

	"github.com/google/uuid"
)

// Prize is an escrow holding one asset earmarked for a player of a
// session. Its contents can be read out exactly once.
type Prize struct {
	ID         uuid.UUID    `json:"id"`
	SessionID  uuid.UUID    `json:"session_id"`
	Funder     core.Address `json:"funder"`
	Identifier string       `json:"identifier"`
	TokenType  string       `json:"token_type"`
	Amount     uint64       `json:"amount"`
	Payload    []byte       `json:"payload,omitempty"`
	Consumed   bool         `json:"consumed"`
	CreatedAt  time.Time    `json:"created_at"`
}

func Create(
	sessionID uuid.UUID,
	funder core.Address,
	identifier string,
	tokenType string,
	amount uint64,
	payload []byte,
) (*Prize, error) {
	if identifier == "" {
		return nil, core.Errorf(core.CodeInvalidArgument, "prize identifier is required")
	}

	if tokenType == "" {
		return nil, core.Errorf(core.CodeInvalidArgument, "prize token type is required")
	}

	if amount == 0 && len(payload) == 0 {
		return nil, core.Errorf(core.CodeInvalidArgument, "prize %s holds nothing", identifier)
	}

	return &Prize{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Funder:     funder,
		Identifier: identifier,
		TokenType:  tokenType,
		Amount:     amount,
		Payload:    slices.Clone(payload),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (p *Prize) ValidateIdentifier(expected string) bool {
	return p.Identifier == expected
}

// Unpack empties the escrow and returns what it held.
func (p *Prize) Unpack() (uint64, []byte, error) {
	if p.Consumed {
		return 0, nil, core.Errorf(core.CodeRecordNotFound, "prize %s already unpacked", p.ID)
	}

	amount, payload := p.Amount, p.Payload

	p.Consumed = true
	p.Amount = 0
	p.Payload = nil

	return amount, payload, nil
}

func (p *Prize) Clone() *Prize {
	c := *p
	c.Payload = slices.Clone(p.Payload)
	return &c
}
