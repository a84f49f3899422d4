package core

import (
	"time"

	"github.com/google/uuid"
)

// NativeToken is the token type of the native asset held in session
// escrow and fungible treasury slots.
const NativeToken = "native"

type TransferKind string

const (
	TransferKindSettle TransferKind = "settle"
	TransferKindRefund TransferKind = "refund"
	TransferKindClaim  TransferKind = "claim"
	TransferKindAward  TransferKind = "award"
)

// Transfer is an outbound movement of value to an address. Transfers are
// produced by ledger operations and journaled in the same transaction as
// the state change that released the value.
type Transfer struct {
	ID        uuid.UUID    `json:"id"`
	Kind      TransferKind `json:"kind"`
	SourceID  uuid.UUID    `json:"source_id"`
	To        Address      `json:"to"`
	TokenType string       `json:"token_type"`
	Amount    uint64       `json:"amount"`
	Payload   []byte       `json:"payload,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

func NewTransfer(kind TransferKind, sourceID uuid.UUID, to Address, tokenType string, amount uint64) Transfer {
	return Transfer{
		ID:        uuid.New(),
		Kind:      kind,
		SourceID:  sourceID,
		To:        to,
		TokenType: tokenType,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
}
