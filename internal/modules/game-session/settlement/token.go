package settlement

import (
	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"

	"github.com/google/uuid"
)

// Token authorizes the apply and finish phases of one settlement round.
// Only Check issues valid tokens; the zero value is rejected everywhere.
type Token struct {
	sessionID     uuid.UUID
	settleVersion uint64
	nextVersion   uint64
}

// Check verifies the caller and round before any settlement state is
// touched.
func Check(
	session *domain.Session,
	caller core.Address,
	expectedSettleVersion uint64,
	nextSettleVersion uint64,
) (Token, error) {
	if !session.IsTransactor(caller) {
		return Token{}, core.Errorf(core.CodeUnauthorizedCaller, "%s is not the transactor", caller)
	}

	if !session.IsHost(caller) {
		return Token{}, core.Errorf(core.CodeUnauthorizedCaller, "%s is not a host of the session", caller)
	}

	if session.SettleVersion != expectedSettleVersion {
		return Token{}, core.Errorf(
			core.CodeStaleVersion,
			"settlement expects version %d, session is at %d",
			expectedSettleVersion,
			session.SettleVersion,
		)
	}

	if nextSettleVersion <= session.SettleVersion {
		return Token{}, core.Errorf(
			core.CodeStaleVersion,
			"next settle version %d must exceed %d",
			nextSettleVersion,
			session.SettleVersion,
		)
	}

	return Token{
		sessionID:     session.ID,
		settleVersion: session.SettleVersion,
		nextVersion:   nextSettleVersion,
	}, nil
}

func (t Token) verify(session *domain.Session) error {
	if t.sessionID == uuid.Nil {
		return core.Errorf(core.CodeUnauthorizedCaller, "settlement token was not issued by check")
	}

	if t.sessionID != session.ID {
		return core.Errorf(core.CodeUnauthorizedCaller, "settlement token belongs to session %s", t.sessionID)
	}

	if t.settleVersion != session.SettleVersion {
		return core.Errorf(
			core.CodeStaleVersion,
			"settlement token is for version %d, session is at %d",
			t.settleVersion,
			session.SettleVersion,
		)
	}

	return nil
}
