package domain

import (
	"testing"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Unpack_Is_Single_Use(t *testing.T) {
	// Arrange
	p, err := Create(uuid.New(), "sponsor", "weekly-bonus", core.NativeToken, 500, nil)
	require.NoError(t, err)

	// Act
	amount, _, err := p.Unpack()
	require.NoError(t, err)

	_, _, secondErr := p.Unpack()

	// Assert
	require.Equal(t, uint64(500), amount)
	require.ErrorIs(t, secondErr, core.ErrRecordNotFound)
	require.True(t, p.Consumed)
}

func Test_ValidateIdentifier_Compares_Stored_Identifier(t *testing.T) {
	// Arrange
	p, err := Create(uuid.New(), "sponsor", "trophy", "nft:trophies", 1, []byte("gold"))
	require.NoError(t, err)

	// Assert
	require.True(t, p.ValidateIdentifier("trophy"))
	require.False(t, p.ValidateIdentifier("other"))
}

func Test_Create_Rejects_Empty_Prize(t *testing.T) {
	// Act
	_, err := Create(uuid.New(), "sponsor", "nothing", core.NativeToken, 0, nil)

	// Assert
	require.ErrorIs(t, err, core.ErrInvalidArgument)
}
