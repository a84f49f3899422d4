// Package checkpoints keeps the checkpoint of every finished settlement
// round, keyed by session and settle version.
package checkpoints

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const keyPrefix = "checkpoint/"

var _ storage.CheckpointArchive = (*Archive)(nil)

type Archive struct {
	db *badger.DB
}

// Open keeps the archive in memory when dir is empty.
func Open(dir string, logger *zap.Logger) (*Archive, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}

	opts = opts.
		WithLogger(newBadgerLogger(logger)).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Archive{db: db}, nil
}

func (a *Archive) Put(sessionID uuid.UUID, settleVersion uint64, checkpoint []byte) error {
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(sessionID, settleVersion), checkpoint)
	})
}

func (a *Archive) Get(sessionID uuid.UUID, settleVersion uint64) ([]byte, error) {
	var checkpoint []byte

	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(sessionID, settleVersion))
		if err != nil {
			return err
		}

		checkpoint, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.Errorf(
			core.CodeRecordNotFound,
			"no checkpoint for session %s at settle version %d",
			sessionID,
			settleVersion,
		)
	}

	return checkpoint, err
}

// Versions lists archived settle versions of a session in ascending order.
func (a *Archive) Versions(sessionID uuid.UUID) ([]uint64, error) {
	prefix := sessionPrefix(sessionID)
	versions := make([]uint64, 0)

	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			versions = append(versions, binary.BigEndian.Uint64(k[len(prefix):]))
		}
		return nil
	})

	return versions, err
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func sessionPrefix(sessionID uuid.UUID) []byte {
	prefix := make([]byte, 0, len(keyPrefix)+len(sessionID)+1)
	prefix = append(prefix, keyPrefix...)
	prefix = append(prefix, sessionID[:]...)
	return append(prefix, '/')
}

// Versions are big-endian so badger's key order is numeric order.
func key(sessionID uuid.UUID, settleVersion uint64) []byte {
	return binary.BigEndian.AppendUint64(sessionPrefix(sessionID), settleVersion)
}
