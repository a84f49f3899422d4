package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	directory "github.com/eskrenkovic/session-ledger/internal/modules/directory/domain"
	gamesession "github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	prize "github.com/eskrenkovic/session-ledger/internal/modules/prize/domain"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"
	treasury "github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var _ storage.Store = (*Store)(nil)

// Store is the embedded SQLite backend. A single connection serializes
// transactions, so every Tx sees the ledger exclusively.
type Store struct {
	db *gorm.DB
}

// New opens the database at path, or a private in-memory database when
// path is empty.
func New(path string) (*Store, error) {
	var dsn string
	if path == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models...); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, repo storage.Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &repository{tx: tx})
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type repository struct {
	tx *gorm.DB
}

func (r *repository) CreateSession(ctx context.Context, session *gamesession.Session) error {
	state, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return translate(r.tx.Create(&sessionRow{
		ID:        session.ID.String(),
		Owner:     string(session.Owner),
		State:     state,
		CreatedAt: session.CreatedAt,
	}).Error, "session", session.ID)
}

func (r *repository) GetSession(ctx context.Context, id uuid.UUID) (*gamesession.Session, error) {
	var row sessionRow
	if err := r.tx.First(&row, "id = ?", id.String()).Error; err != nil {
		return nil, translate(err, "session", id)
	}
	return decode[gamesession.Session](row.State)
}

func (r *repository) UpdateSession(ctx context.Context, session *gamesession.Session) error {
	return r.updateState(&sessionRow{}, session.ID, session)
}

func (r *repository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	result := r.tx.Delete(&sessionRow{}, "id = ?", id.String())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.Errorf(core.CodeRecordNotFound, "session %s not found", id)
	}
	return nil
}

func (r *repository) ListSessions(ctx context.Context, owner core.Address) ([]*gamesession.Session, error) {
	q := r.tx.Order("created_at, id")
	if owner != "" {
		q = q.Where("owner = ?", string(owner))
	}

	var rows []sessionRow
	if err := q.Find(&rows).Error; err != nil {
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

	return translate(r.tx.Create(&recipientRow{
		ID:    recipient.ID.String(),
		Admin: string(recipient.Admin),
		State: state,
	}).Error, "recipient", recipient.ID)
}

func (r *repository) GetRecipient(ctx context.Context, id uuid.UUID) (*treasury.Recipient, error) {
	var row recipientRow
	if err := r.tx.First(&row, "id = ?", id.String()).Error; err != nil {
		return nil, translate(err, "recipient", id)
	}
	return decode[treasury.Recipient](row.State)
}

func (r *repository) UpdateRecipient(ctx context.Context, recipient *treasury.Recipient) error {
	return r.updateState(&recipientRow{}, recipient.ID, recipient)
}

func (r *repository) CreateSlot(ctx context.Context, slot *treasury.Slot) error {
	state, err := json.Marshal(slot)
	if err != nil {
		return err
	}

	return translate(r.tx.Create(&slotRow{
		ID:          slot.ID.String(),
		RecipientID: slot.RecipientID.String(),
		State:       state,
	}).Error, "slot", slot.ID)
}

func (r *repository) GetSlot(ctx context.Context, id uuid.UUID) (*treasury.Slot, error) {
	var row slotRow
	if err := r.tx.First(&row, "id = ?", id.String()).Error; err != nil {
		return nil, translate(err, "slot", id)
	}
	return decode[treasury.Slot](row.State)
}

func (r *repository) SlotRecipientID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var row slotRow
	if err := r.tx.Select("recipient_id").First(&row, "id = ?", id.String()).Error; err != nil {
		return uuid.Nil, translate(err, "slot", id)
	}
	return uuid.Parse(row.RecipientID)
}

func (r *repository) UpdateSlot(ctx context.Context, slot *treasury.Slot) error {
	return r.updateState(&slotRow{}, slot.ID, slot)
}

func (r *repository) CreatePrize(ctx context.Context, p *prize.Prize) error {
	state, err := json.Marshal(p)
	if err != nil {
		return err
	}

	return translate(r.tx.Create(&prizeRow{
		ID:        p.ID.String(),
		SessionID: p.SessionID.String(),
		State:     state,
	}).Error, "prize", p.ID)
}

func (r *repository) GetPrize(ctx context.Context, id uuid.UUID) (*prize.Prize, error) {
	var row prizeRow
	if err := r.tx.First(&row, "id = ?", id.String()).Error; err != nil {
		return nil, translate(err, "prize", id)
	}
	return decode[prize.Prize](row.State)
}

func (r *repository) DeletePrize(ctx context.Context, id uuid.UUID) error {
	result := r.tx.Delete(&prizeRow{}, "id = ?", id.String())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.Errorf(core.CodeRecordNotFound, "prize %s not found", id)
	}
	return nil
}

func (r *repository) MembershipExists(
	ctx context.Context,
	kind directory.MembershipKind,
	address core.Address,
) (bool, error) {
	var count int64
	err := r.tx.Model(&membershipRow{}).
		Where("address = ? AND kind = ?", string(address), string(kind)).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) RegisterMembership(ctx context.Context, membership directory.Membership) error {
	err := r.tx.Create(&membershipRow{
		Address:   string(membership.Address),
		Kind:      string(membership.Kind),
		RecordID:  membership.RecordID.String(),
		Name:      membership.Name,
		Endpoint:  membership.Endpoint,
		CreatedAt: membership.CreatedAt,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return core.Errorf(core.CodeDuplicateMembership, "%s already registered as %s", membership.Address, membership.Kind)
	}
	return err
}

// LockDiscovery is a no-op: the store runs one transaction at a time.
func (r *repository) LockDiscovery(context.Context) error {
	return nil
}

func (r *repository) ListDiscovery(ctx context.Context) ([]uuid.UUID, error) {
	var rows []discoveryRow
	if err := r.tx.Order("created_at, session_id").Find(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.SessionID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (r *repository) AddDiscovery(ctx context.Context, sessionID uuid.UUID) error {
	return translate(r.tx.Create(&discoveryRow{SessionID: sessionID.String()}).Error, "discovery entry", sessionID)
}

func (r *repository) RemoveDiscovery(ctx context.Context, sessionID uuid.UUID) error {
	return r.tx.Delete(&discoveryRow{}, "session_id = ?", sessionID.String()).Error
}

func (r *repository) AppendTransfers(ctx context.Context, transfers []core.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}

	rows := make([]transferRow, 0, len(transfers))
	for _, t := range transfers {
		state, err := json.Marshal(t)
		if err != nil {
			return err
		}

		rows = append(rows, transferRow{
			ID:        t.ID.String(),
			ToAddress: string(t.To),
			State:     state,
			CreatedAt: t.CreatedAt,
		})
	}

	return r.tx.Create(&rows).Error
}

func (r *repository) ListTransfers(ctx context.Context, to core.Address) ([]core.Transfer, error) {
	var rows []transferRow
	if err := r.tx.Where("to_address = ?", string(to)).Order("created_at, id").Find(&rows).Error; err != nil {
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

func (r *repository) updateState(model any, id uuid.UUID, value any) error {
	state, err := json.Marshal(value)
	if err != nil {
		return err
	}

	result := r.tx.Model(model).Where("id = ?", id.String()).Update("state", state)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.Errorf(core.CodeRecordNotFound, "record %s not found", id)
	}

	return nil
}

func translate(err error, kind string, id uuid.UUID) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return core.Errorf(core.CodeRecordNotFound, "%s %s not found", kind, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return core.Errorf(core.CodeDuplicateMembership, "%s %s already exists", kind, id)
	default:
		return err
	}
}

func decode[T any](state []byte) (*T, error) {
	var value T
	if err := json.Unmarshal(state, &value); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", value, err)
	}
	return &value, nil
}
