// Package storagetest holds the behavior every storage.Store backend must
// share.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	directory "github.com/eskrenkovic/session-ledger/internal/modules/directory/domain"
	gamesession "github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	prize "github.com/eskrenkovic/session-ledger/internal/modules/prize/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"
	treasury "github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Run exercises store through every Repository operation.
func Run(t *testing.T, store storage.Store) {
	t.Run("session round trip", func(t *testing.T) { sessionRoundTrip(t, store) })
	t.Run("rollback on error", func(t *testing.T) { rollbackOnError(t, store) })
	t.Run("treasury round trip", func(t *testing.T) { treasuryRoundTrip(t, store) })
	t.Run("slot recipient lookup", func(t *testing.T) { slotRecipientLookup(t, store) })
	t.Run("prize lifecycle", func(t *testing.T) { prizeLifecycle(t, store) })
	t.Run("membership uniqueness", func(t *testing.T) { membershipUniqueness(t, store) })
	t.Run("discovery entries", func(t *testing.T) { discoveryEntries(t, store) })
	t.Run("discovery capacity under concurrency", func(t *testing.T) { concurrentDiscovery(t, store) })
	t.Run("transfer journal", func(t *testing.T) { transferJournal(t, store) })
}

func newSession(t *testing.T, owner core.Address) *gamesession.Session {
	t.Helper()

	s, err := gamesession.NewSession(gamesession.NewSessionParams{
		Title:       "table",
		Owner:       owner,
		RecipientID: uuid.New(),
		MaxPlayers:  4,
		EntryType:   gamesession.CashEntry(10, 100),
	})
	require.NoError(t, err)

	return s
}

func sessionRoundTrip(t *testing.T, store storage.Store) {
	ctx := context.Background()
	owner := core.Address(uuid.NewString())
	s := newSession(t, owner)

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		return repo.CreateSession(ctx, s)
	}))

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		loaded, err := repo.GetSession(ctx, s.ID)
		if err != nil {
			return err
		}

		if _, err := loaded.HostJoin("host", "wss://host", "kh"); err != nil {
			return err
		}
		if _, err := loaded.Join("alice", 0, 50, "ka"); err != nil {
			return err
		}

		return repo.UpdateSession(ctx, loaded)
	}))

	var loaded *gamesession.Session
	var owned []*gamesession.Session
	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		loaded, err = repo.GetSession(ctx, s.ID)
		if err != nil {
			return err
		}
		owned, err = repo.ListSessions(ctx, owner)
		return err
	}))

	require.Equal(t, uint64(50), loaded.Balance)
	require.Equal(t, uint64(2), loaded.AccessVersion)
	require.True(t, loaded.IsTransactor("host"))
	require.Len(t, loaded.Players, 1)
	require.Equal(t, gamesession.DepositStatusPending, loaded.Deposits[0].Status)
	require.Len(t, owned, 1)
	require.Equal(t, s.ID, owned[0].ID)

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		return repo.DeleteSession(ctx, s.ID)
	}))

	err := store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		_, err := repo.GetSession(ctx, s.ID)
		return err
	})
	require.ErrorIs(t, err, core.ErrRecordNotFound)
}

func rollbackOnError(t *testing.T, store storage.Store) {
	ctx := context.Background()
	s := newSession(t, core.Address(uuid.NewString()))
	boom := errors.New("boom")

	err := store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		if err := repo.CreateSession(ctx, s); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		_, err := repo.GetSession(ctx, s.ID)
		return err
	})
	require.ErrorIs(t, err, core.ErrRecordNotFound)
}

func treasuryRoundTrip(t *testing.T, store storage.Store) {
	ctx := context.Background()

	recipient, slots, err := treasury.NewRecipient("admin", []treasury.SlotSpec{{
		Name:      "fee",
		Kind:      treasury.AssetKindFungible,
		TokenType: core.NativeToken,
		Shares: []treasury.Share{
			{Owner: treasury.ShareOwner{Address: "a"}, Weight: 30},
			{Owner: treasury.ShareOwner{Role: "creator"}, Weight: 70},
		},
	}})
	require.NoError(t, err)

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		if err := repo.CreateRecipient(ctx, recipient); err != nil {
			return err
		}
		return repo.CreateSlot(ctx, slots[0])
	}))

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		slot, err := repo.GetSlot(ctx, slots[0].ID)
		if err != nil {
			return err
		}
		r, err := repo.GetRecipient(ctx, recipient.ID)
		if err != nil {
			return err
		}

		if err := slot.Deposit(100); err != nil {
			return err
		}
		if err := r.Sync(slot); err != nil {
			return err
		}

		if err := repo.UpdateSlot(ctx, slot); err != nil {
			return err
		}
		return repo.UpdateRecipient(ctx, r)
	}))

	var slot *treasury.Slot
	var r *treasury.Recipient
	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		if slot, err = repo.GetSlot(ctx, slots[0].ID); err != nil {
			return err
		}
		r, err = repo.GetRecipient(ctx, recipient.ID)
		return err
	}))

	require.Equal(t, uint64(100), slot.Balance)
	require.Equal(t, "creator", slot.Shares[1].Owner.Role)
	require.Equal(t, uint64(100), r.Slots[0].Balance)
}

func slotRecipientLookup(t *testing.T, store storage.Store) {
	ctx := context.Background()

	recipient, slots, err := treasury.NewRecipient("admin", []treasury.SlotSpec{{
		Name:      "fee",
		Kind:      treasury.AssetKindFungible,
		TokenType: core.NativeToken,
		Shares:    []treasury.Share{{Owner: treasury.ShareOwner{Address: "a"}, Weight: 1}},
	}})
	require.NoError(t, err)

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		if err := repo.CreateRecipient(ctx, recipient); err != nil {
			return err
		}
		return repo.CreateSlot(ctx, slots[0])
	}))

	var recipientID uuid.UUID
	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		recipientID, err = repo.SlotRecipientID(ctx, slots[0].ID)
		return err
	}))
	require.Equal(t, recipient.ID, recipientID)

	err = store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		_, err := repo.SlotRecipientID(ctx, uuid.New())
		return err
	})
	require.ErrorIs(t, err, core.ErrRecordNotFound)
}

func prizeLifecycle(t *testing.T, store storage.Store) {
	ctx := context.Background()

	p, err := prize.Create(uuid.New(), "sponsor", "weekly", core.NativeToken, 10, []byte("meta"))
	require.NoError(t, err)

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		return repo.CreatePrize(ctx, p)
	}))

	var loaded *prize.Prize
	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		loaded, err = repo.GetPrize(ctx, p.ID)
		if err != nil {
			return err
		}
		return repo.DeletePrize(ctx, p.ID)
	}))
	require.Equal(t, []byte("meta"), loaded.Payload)

	err = store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		return repo.DeletePrize(ctx, p.ID)
	})
	require.ErrorIs(t, err, core.ErrRecordNotFound)
}

func membershipUniqueness(t *testing.T, store storage.Store) {
	ctx := context.Background()
	address := core.Address(uuid.NewString())

	m, err := directory.NewMembership(directory.MembershipKindServer, address, "node", "wss://node")
	require.NoError(t, err)

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		return repo.RegisterMembership(ctx, m)
	}))

	again, err := directory.NewMembership(directory.MembershipKindServer, address, "node-2", "wss://node-2")
	require.NoError(t, err)

	err = store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		return repo.RegisterMembership(ctx, again)
	})
	require.ErrorIs(t, err, core.ErrDuplicateMembership)

	var isServer, isProfile bool
	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		if isServer, err = repo.MembershipExists(ctx, directory.MembershipKindServer, address); err != nil {
			return err
		}
		isProfile, err = repo.MembershipExists(ctx, directory.MembershipKindPlayerProfile, address)
		return err
	}))
	require.True(t, isServer)
	require.False(t, isProfile)
}

func discoveryEntries(t *testing.T, store storage.Store) {
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		if err := repo.AddDiscovery(ctx, first); err != nil {
			return err
		}
		return repo.AddDiscovery(ctx, second)
	}))

	err := store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		return repo.AddDiscovery(ctx, first)
	})
	require.ErrorIs(t, err, core.ErrDuplicateMembership)

	var listed []uuid.UUID
	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		if err = repo.RemoveDiscovery(ctx, first); err != nil {
			return err
		}
		listed, err = repo.ListDiscovery(ctx)
		return err
	}))

	require.Contains(t, listed, second)
	require.NotContains(t, listed, first)
}

func concurrentDiscovery(t *testing.T, store storage.Store) {
	ctx := context.Background()

	var listed []uuid.UUID
	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		listed, err = repo.ListDiscovery(ctx)
		return err
	}))

	const free = 3
	capacity := len(listed) + free

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
				if err := repo.LockDiscovery(ctx); err != nil {
					return err
				}

				current, err := repo.ListDiscovery(ctx)
				if err != nil {
					return err
				}

				id := uuid.New()
				if err := directory.NewDiscovery(capacity, current).Register(id); err != nil {
					return err
				}
				return repo.AddDiscovery(ctx, id)
			})

			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	registered := 0
	for _, err := range errs {
		if err == nil {
			registered++
			continue
		}
		require.ErrorIs(t, err, core.ErrCapacityExceeded)
	}

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		listed, err = repo.ListDiscovery(ctx)
		return err
	}))

	require.Equal(t, free, registered)
	require.Len(t, listed, capacity)
}

func transferJournal(t *testing.T, store storage.Store) {
	ctx := context.Background()
	to := core.Address(uuid.NewString())

	transfers := []core.Transfer{
		core.NewTransfer(core.TransferKindSettle, uuid.New(), to, core.NativeToken, 10),
		core.NewTransfer(core.TransferKindClaim, uuid.New(), to, core.NativeToken, 20),
		core.NewTransfer(core.TransferKindRefund, uuid.New(), "someone-else", core.NativeToken, 30),
	}

	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) error {
		return repo.AppendTransfers(ctx, transfers)
	}))

	var listed []core.Transfer
	require.NoError(t, store.Tx(ctx, func(ctx context.Context, repo storage.Repository) (err error) {
		listed, err = repo.ListTransfers(ctx, to)
		return err
	}))

	require.Len(t, listed, 2)
	require.ElementsMatch(t, []uint64{10, 20}, []uint64{listed[0].Amount, listed[1].Amount})
}
