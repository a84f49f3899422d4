package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	directory "github.com/eskrenkovic/session-ledger/internal/modules/directory/domain"
	gamesession "github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	prize "github.com/eskrenkovic/session-ledger/internal/modules/prize/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"
	treasury "github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"
	"github.com/eskrenkovic/session-ledger/internal/tql"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	uniqueViolation      = pq.ErrorCode("23505")
	serializationFailure = pq.ErrorCode("40001")
	deadlockDetected     = pq.ErrorCode("40P01")

	txAttempts = 3
)

var _ storage.Store = (*Store)(nil)

// Store keeps aggregates as jsonb state. Reads inside a transaction take a
// row lock, which serializes mutations of the same record.
type Store struct {
	db *sql.DB
}

func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, repo storage.Repository) error) error {
	return core.Tx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &repository{tx: tx})
	}, core.WithRetry(txAttempts, isTransient))
}

func (s *Store) Close() error {
	return s.db.Close()
}

type stateRow struct {
	State []byte `db:"state"`
}

type repository struct {
	tx *sql.Tx
}

func (r *repository) CreateSession(ctx context.Context, session *gamesession.Session) error {
	state, err := json.Marshal(session)
	if err != nil {
		return err
	}

	const stmt = `
		INSERT INTO game_session (id, owner, state, created_at)
		VALUES (:id, :owner, :state::jsonb, :created_at);`
	_, err = tql.Exec(ctx, r.tx, stmt, map[string]any{
		"id":         session.ID,
		"owner":      string(session.Owner),
		"state":      string(state),
		"created_at": session.CreatedAt,
	})
	return translate(err, "session", session.ID)
}

func (r *repository) GetSession(ctx context.Context, id uuid.UUID) (*gamesession.Session, error) {
	return getState[gamesession.Session](ctx, r.tx, "game_session", "session", id)
}

func (r *repository) UpdateSession(ctx context.Context, session *gamesession.Session) error {
	return updateState(ctx, r.tx, "game_session", session.ID, session)
}

func (r *repository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, r.tx, "game_session", "session", id)
}

func (r *repository) ListSessions(ctx context.Context, owner core.Address) ([]*gamesession.Session, error) {
	const query = `
		SELECT state
		FROM game_session
		WHERE :owner::text = '' OR owner = :owner
		ORDER BY created_at, id;`
	rows, err := tql.Query[stateRow](ctx, r.tx, query, map[string]any{"owner": string(owner)})
	if err != nil {
		return nil, err
	}

	sessions := make([]*gamesession.Session, 0, len(rows))
	for _, row := range rows {
		session, err := decode[gamesession.Session](row.State)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

func (r *repository) CreateRecipient(ctx context.Context, recipient *treasury.Recipient) error {
	state, err := json.Marshal(recipient)
	if err != nil {
		return err
	}

	const stmt = `
		INSERT INTO recipient (id, admin, state)
		VALUES (:id, :admin, :state::jsonb);`
	_, err = tql.Exec(ctx, r.tx, stmt, map[string]any{
		"id":    recipient.ID,
		"admin": string(recipient.Admin),
		"state": string(state),
	})
	return translate(err, "recipient", recipient.ID)
}

func (r *repository) GetRecipient(ctx context.Context, id uuid.UUID) (*treasury.Recipient, error) {
	return getState[treasury.Recipient](ctx, r.tx, "recipient", "recipient", id)
}

func (r *repository) UpdateRecipient(ctx context.Context, recipient *treasury.Recipient) error {
	return updateState(ctx, r.tx, "recipient", recipient.ID, recipient)
}

func (r *repository) CreateSlot(ctx context.Context, slot *treasury.Slot) error {
	state, err := json.Marshal(slot)
	if err != nil {
		return err
	}

	const stmt = `
		INSERT INTO treasury_slot (id, recipient_id, state)
		VALUES (:id, :recipient_id, :state::jsonb);`
	_, err = tql.Exec(ctx, r.tx, stmt, map[string]any{
		"id":           slot.ID,
		"recipient_id": slot.RecipientID,
		"state":        string(state),
	})
	return translate(err, "slot", slot.ID)
}

func (r *repository) GetSlot(ctx context.Context, id uuid.UUID) (*treasury.Slot, error) {
	return getState[treasury.Slot](ctx, r.tx, "treasury_slot", "slot", id)
}

func (r *repository) SlotRecipientID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	recipientID, err := tql.QueryFirst[uuid.UUID](ctx, r.tx, `SELECT recipient_id FROM treasury_slot WHERE id = $1;`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, core.Errorf(core.CodeRecordNotFound, "slot %s not found", id)
	}
	return recipientID, err
}

func (r *repository) UpdateSlot(ctx context.Context, slot *treasury.Slot) error {
	return updateState(ctx, r.tx, "treasury_slot", slot.ID, slot)
}

func (r *repository) CreatePrize(ctx context.Context, p *prize.Prize) error {
	state, err := json.Marshal(p)
	if err != nil {
		return err
	}

	const stmt = `
		INSERT INTO prize (id, session_id, state)
		VALUES (:id, :session_id, :state::jsonb);`
	_, err = tql.Exec(ctx, r.tx, stmt, map[string]any{
		"id":         p.ID,
		"session_id": p.SessionID,
		"state":      string(state),
	})
	return translate(err, "prize", p.ID)
}

func (r *repository) GetPrize(ctx context.Context, id uuid.UUID) (*prize.Prize, error) {
	return getState[prize.Prize](ctx, r.tx, "prize", "prize", id)
}

func (r *repository) DeletePrize(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, r.tx, "prize", "prize", id)
}

func (r *repository) MembershipExists(
	ctx context.Context,
	kind directory.MembershipKind,
	address core.Address,
) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM membership
			WHERE address = :address AND kind = :kind
		);`
	return tql.QueryFirst[bool](ctx, r.tx, query, map[string]any{
		"address": string(address),
		"kind":    string(kind),
	})
}

func (r *repository) RegisterMembership(ctx context.Context, membership directory.Membership) error {
	const stmt = `
		INSERT INTO membership (address, kind, record_id, name, endpoint, created_at)
		VALUES (:address, :kind, :record_id, :name, :endpoint, :created_at);`
	_, err := tql.Exec(ctx, r.tx, stmt, map[string]any{
		"address":    string(membership.Address),
		"kind":       string(membership.Kind),
		"record_id":  membership.RecordID,
		"name":       membership.Name,
		"endpoint":   membership.Endpoint,
		"created_at": membership.CreatedAt,
	})
	if isUniqueViolation(err) {
		return core.Errorf(core.CodeDuplicateMembership, "%s already registered as %s", membership.Address, membership.Kind)
	}
	return err
}

// SHARE ROW EXCLUSIVE conflicts with itself and with inserts, but not with
// plain reads of the directory.
func (r *repository) LockDiscovery(ctx context.Context) error {
	_, err := tql.Exec(ctx, r.tx, `LOCK TABLE discovery_entry IN SHARE ROW EXCLUSIVE MODE;`)
	return err
}

func (r *repository) ListDiscovery(ctx context.Context) ([]uuid.UUID, error) {
	const query = `
		SELECT session_id
		FROM discovery_entry
		ORDER BY created_at, session_id;`
	return tql.Query[uuid.UUID](ctx, r.tx, query)
}

func (r *repository) AddDiscovery(ctx context.Context, sessionID uuid.UUID) error {
	_, err := tql.Exec(ctx, r.tx, `INSERT INTO discovery_entry (session_id) VALUES ($1);`, sessionID)
	return translate(err, "discovery entry", sessionID)
}

func (r *repository) RemoveDiscovery(ctx context.Context, sessionID uuid.UUID) error {
	_, err := tql.Exec(ctx, r.tx, `DELETE FROM discovery_entry WHERE session_id = $1;`, sessionID)
	return err
}

func (r *repository) AppendTransfers(ctx context.Context, transfers []core.Transfer) error {
	const stmt = `
		INSERT INTO transfer (id, to_address, state, created_at)
		VALUES (:id, :to_address, :state::jsonb, :created_at);`

	for _, t := range transfers {
		state, err := json.Marshal(t)
		if err != nil {
			return err
		}

		_, err = tql.Exec(ctx, r.tx, stmt, map[string]any{
			"id":         t.ID,
			"to_address": string(t.To),
			"state":      string(state),
			"created_at": t.CreatedAt,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *repository) ListTransfers(ctx context.Context, to core.Address) ([]core.Transfer, error) {
	const query = `
		SELECT state
		FROM transfer
		WHERE to_address = $1
		ORDER BY created_at, id;`
	rows, err := tql.Query[stateRow](ctx, r.tx, query, string(to))
	if err != nil {
		return nil, err
	}

	transfers := make([]core.Transfer, 0, len(rows))
	for _, row := range rows {
		t, err := decode[core.Transfer](row.State)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *t)
	}

	return transfers, nil
}

// Table names below come from constants in this file, never from input.

func getState[T any](ctx context.Context, tx *sql.Tx, table string, kind string, id uuid.UUID) (*T, error) {
	query := fmt.Sprintf(`SELECT state FROM %s WHERE id = $1 FOR UPDATE;`, table)

	row, err := tql.QueryFirst[stateRow](ctx, tx, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.Errorf(core.CodeRecordNotFound, "%s %s not found", kind, id)
	}
	if err != nil {
		return nil, err
	}

	return decode[T](row.State)
}

func updateState(ctx context.Context, tx *sql.Tx, table string, id uuid.UUID, value any) error {
	state, err := json.Marshal(value)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf(`UPDATE %s SET state = $1::jsonb WHERE id = $2;`, table)
	result, err := tql.Exec(ctx, tx, stmt, string(state), id)
	if err != nil {
		return err
	}

	return requireAffected(result, table, id)
}

func deleteByID(ctx context.Context, tx *sql.Tx, table string, kind string, id uuid.UUID) error {
	result, err := tql.Exec(ctx, tx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1;`, table), id)
	if err != nil {
		return err
	}

	return requireAffected(result, kind, id)
}

func requireAffected(result sql.Result, kind string, id uuid.UUID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.Errorf(core.CodeRecordNotFound, "%s %s not found", kind, id)
	}
	return nil
}

func translate(err error, kind string, id uuid.UUID) error {
	if isUniqueViolation(err) {
		return core.Errorf(core.CodeDuplicateMembership, "%s %s already exists", kind, id)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// isTransient reports conflicts that a rerun of the same transaction can
// resolve.
func isTransient(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == serializationFailure || pqErr.Code == deadlockDetected
}

func decode[T any](state []byte) (*T, error) {
	var value T
	if err := json.Unmarshal(state, &value); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", value, err)
	}
	return &value, nil
}
