package queries

import (
	"context"
	"testing"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage/checkpoints"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage/sqlite"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStore(t *testing.T) storage.Store {
	t.Helper()

	store, err := sqlite.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func createSession(t *testing.T, store storage.Store, owner core.Address, title string) *domain.Session {
	t.Helper()

	session, err := domain.NewSession(domain.NewSessionParams{
		Title:       title,
		Owner:       owner,
		RecipientID: uuid.New(),
		MaxPlayers:  6,
		EntryType:   domain.TicketEntry(25),
	})
	require.NoError(t, err)

	require.NoError(t, store.Tx(context.Background(), func(ctx context.Context, repo storage.Repository) error {
		return repo.CreateSession(ctx, session)
	}))

	return session
}

func Test_GetSession_Returns_Not_Found_For_Unknown_Id(t *testing.T) {
	// Arrange
	store := newStore(t)

	// Act
	_, err := NewGetSessionQueryHandler(store).Handle(context.Background(), GetSessionQuery{SessionID: uuid.New()})

	// Assert
	require.ErrorIs(t, err, core.ErrRecordNotFound)
}

func Test_ListSessions_Filters_By_Owner(t *testing.T) {
	// Arrange
	store := newStore(t)
	mine := createSession(t, store, "me", "mine")
	createSession(t, store, "someone", "theirs")

	handler := NewListSessionsQueryHandler(store)

	// Act
	owned, ownedErr := handler.Handle(context.Background(), ListSessionsQuery{Owner: "me"})
	all, allErr := handler.Handle(context.Background(), ListSessionsQuery{})

	// Assert
	require.NoError(t, ownedErr)
	require.NoError(t, allErr)
	require.Len(t, owned, 1)
	require.Equal(t, mine.ID, owned[0].ID)
	require.Len(t, all, 2)
}

func Test_ListDiscovery_Returns_Published_Sessions_In_Order(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := newStore(t)
	first := createSession(t, store, "me", "first")
	createSession(t, store, "me", "unlisted")
	second := createSession(t, store, "me", "second")

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		if err := repo.AddDiscovery(ctx, first.ID); err != nil {
			return err
		}
		return repo.AddDiscovery(ctx, second.ID)
	}))

	// Act
	listed, err := NewListDiscoveryQueryHandler(store).Handle(ctx, ListDiscoveryQuery{})

	// Assert
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, []uuid.UUID{listed[0].ID, listed[1].ID})
}

func Test_Checkpoint_Queries_Read_Archive(t *testing.T) {
	// Arrange
	archive, err := checkpoints.Open("", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	sessionID := uuid.New()
	require.NoError(t, archive.Put(sessionID, 1, []byte("one")))
	require.NoError(t, archive.Put(sessionID, 2, []byte("two")))

	// Act
	checkpoint, getErr := NewGetCheckpointQueryHandler(archive).Handle(
		context.Background(),
		GetCheckpointQuery{SessionID: sessionID, SettleVersion: 2},
	)
	versions, listErr := NewListCheckpointsQueryHandler(archive).Handle(
		context.Background(),
		ListCheckpointsQuery{SessionID: sessionID},
	)
	_, missingErr := NewGetCheckpointQueryHandler(archive).Handle(
		context.Background(),
		GetCheckpointQuery{SessionID: sessionID, SettleVersion: 3},
	)

	// Assert
	require.NoError(t, getErr)
	require.Equal(t, []byte("two"), checkpoint.Checkpoint)
	require.NoError(t, listErr)
	require.Equal(t, []uint64{1, 2}, versions.SettleVersions)
	require.ErrorIs(t, missingErr, core.ErrRecordNotFound)
}
