package domain

import (
	"math"
	"slices"
	"time"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"

	"github.com/google/uuid"
)

const (
	MaxHosts        = 10
	MaxPlayersLimit = 512
	MaxBonuses      = 20
)

type PlayerEntry struct {
	Address       core.Address `json:"address"`
	Position      uint16       `json:"position"`
	AccessVersion uint64       `json:"access_version"`
	VerifyKey     string       `json:"verify_key"`
}

type Deposit struct {
	Address       core.Address  `json:"address"`
	Amount        uint64        `json:"amount"`
	AccessVersion uint64        `json:"access_version"`
	SettleVersion uint64        `json:"settle_version"`
	Status        DepositStatus `json:"status"`
}

type HostEntry struct {
	Address       core.Address `json:"address"`
	Endpoint      string       `json:"endpoint"`
	AccessVersion uint64       `json:"access_version"`
	VerifyKey     string       `json:"verify_key"`
}

// Session is the ledger of one hosted game: roster, deposits, escrowed
// balance and the version counters that order every change to them.
type Session struct {
	ID            uuid.UUID    `json:"id"`
	Version       string       `json:"version"`
	Title         string       `json:"title"`
	BundlePointer string       `json:"bundle_pointer"`
	Owner         core.Address `json:"owner"`
	RecipientID   uuid.UUID    `json:"recipient_id"`

	// Set once by the first host join.
	TransactorAddress *core.Address `json:"transactor_address,omitempty"`

	AccessVersion uint64 `json:"access_version"`
	SettleVersion uint64 `json:"settle_version"`

	MaxPlayers uint16    `json:"max_players"`
	EntryType  EntryType `json:"entry_type"`
	EntryLock  EntryLock `json:"entry_lock"`

	Players  []PlayerEntry `json:"players"`
	Deposits []Deposit     `json:"deposits"`
	Hosts    []HostEntry   `json:"hosts"`

	Balance    uint64      `json:"balance"`
	Checkpoint []byte      `json:"checkpoint,omitempty"`
	Bonuses    []uuid.UUID `json:"bonuses"`

	CreatedAt time.Time `json:"created_at"`
}

type NewSessionParams struct {
	Version       string
	Title         string
	BundlePointer string
	Owner         core.Address
	RecipientID   uuid.UUID
	MaxPlayers    uint16
	EntryType     EntryType
	EntryLock     EntryLock
}

func NewSession(params NewSessionParams) (*Session, error) {
	if params.Owner == "" {
		return nil, core.Errorf(core.CodeInvalidArgument, "owner is required")
	}

	if params.Title == "" {
		return nil, core.Errorf(core.CodeInvalidArgument, "title is required")
	}

	if params.RecipientID == uuid.Nil {
		return nil, core.Errorf(core.CodeInvalidArgument, "recipient is required")
	}

	if params.MaxPlayers == 0 || params.MaxPlayers > MaxPlayersLimit {
		return nil, core.Errorf(
			core.CodeInvalidArgument,
			"max_players must be within [1, %d], got %d",
			MaxPlayersLimit,
			params.MaxPlayers,
		)
	}

	if err := params.EntryType.Validate(); err != nil {
		return nil, err
	}

	lock := params.EntryLock
	if lock == "" {
		lock = EntryLockOpen
	}
	if err := lock.Validate(); err != nil {
		return nil, err
	}

	return &Session{
		ID:            uuid.New(),
		Version:       params.Version,
		Title:         params.Title,
		BundlePointer: params.BundlePointer,
		Owner:         params.Owner,
		RecipientID:   params.RecipientID,
		MaxPlayers:    params.MaxPlayers,
		EntryType:     params.EntryType,
		EntryLock:     lock,
		Players:       []PlayerEntry{},
		Deposits:      []Deposit{},
		Hosts:         []HostEntry{},
		Bonuses:       []uuid.UUID{},
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (s *Session) IsTransactor(caller core.Address) bool {
	return s.TransactorAddress != nil && *s.TransactorAddress == caller
}

func (s *Session) IsHost(caller core.Address) bool {
	return slices.ContainsFunc(s.Hosts, func(h HostEntry) bool {
		return h.Address == caller
	})
}

// HostJoin registers a host endpoint. Hosts are unique by owner address.
func (s *Session) HostJoin(caller core.Address, endpoint string, verifyKey string) (HostEntry, error) {
	if len(s.Hosts) >= MaxHosts {
		return HostEntry{}, core.Errorf(core.CodeCapacityExceeded, "session already has %d hosts", MaxHosts)
	}

	if s.IsHost(caller) {
		return HostEntry{}, core.Errorf(core.CodeDuplicateMembership, "%s already hosts this session", caller)
	}

	accessVersion, err := s.nextAccessVersion()
	if err != nil {
		return HostEntry{}, err
	}

	host := HostEntry{
		Address:       caller,
		Endpoint:      endpoint,
		AccessVersion: accessVersion,
		VerifyKey:     verifyKey,
	}

	s.AccessVersion = accessVersion
	s.Hosts = append(s.Hosts, host)

	if len(s.Hosts) == 1 && s.TransactorAddress == nil {
		transactor := caller
		s.TransactorAddress = &transactor
	}

	return host, nil
}

// Join seats the caller and records the buy-in as a pending deposit, which
// the next settlement round accepts. When the requested position is taken,
// the lowest free position is assigned instead.
func (s *Session) Join(caller core.Address, position uint16, amount uint64, verifyKey string) (PlayerEntry, error) {
	if !s.EntryLock.AllowsJoin() {
		return PlayerEntry{}, core.Errorf(core.CodeEntryLocked, "session entry is %s", s.EntryLock)
	}

	if len(s.Players) >= int(s.MaxPlayers) {
		return PlayerEntry{}, core.Errorf(core.CodeCapacityExceeded, "session is full with %d players", s.MaxPlayers)
	}

	if position >= s.MaxPlayers {
		return PlayerEntry{}, core.Errorf(
			core.CodePositionUnavailable,
			"position %d outside of [0, %d)",
			position,
			s.MaxPlayers,
		)
	}

	if _, found := s.PlayerByAddress(caller); found {
		return PlayerEntry{}, core.Errorf(core.CodeDuplicateMembership, "%s already joined", caller)
	}

	if err := s.EntryType.CheckDeposit(amount); err != nil {
		return PlayerEntry{}, err
	}

	resolved, err := s.resolvePosition(position)
	if err != nil {
		return PlayerEntry{}, err
	}

	accessVersion, err := s.nextAccessVersion()
	if err != nil {
		return PlayerEntry{}, err
	}

	if err := s.Credit(amount); err != nil {
		return PlayerEntry{}, err
	}

	player := PlayerEntry{
		Address:       caller,
		Position:      resolved,
		AccessVersion: accessVersion,
		VerifyKey:     verifyKey,
	}

	s.AccessVersion = accessVersion
	s.Players = append(s.Players, player)
	s.Deposits = append(s.Deposits, Deposit{
		Address:       caller,
		Amount:        amount,
		AccessVersion: accessVersion,
		SettleVersion: s.SettleVersion,
		Status:        DepositStatusPending,
	})

	return player, nil
}

// Deposit records a rebuy by a seated player against the current round.
func (s *Session) Deposit(caller core.Address, amount uint64, expectedSettleVersion uint64) (Deposit, error) {
	if !s.EntryLock.AllowsDeposit() {
		return Deposit{}, core.Errorf(core.CodeEntryLocked, "session entry is %s", s.EntryLock)
	}

	if _, found := s.PlayerByAddress(caller); !found {
		return Deposit{}, core.Errorf(core.CodeUnauthorizedCaller, "%s is not a player of this session", caller)
	}

	if expectedSettleVersion != s.SettleVersion {
		return Deposit{}, core.Errorf(
			core.CodeStaleVersion,
			"deposit against settle version %d, session is at %d",
			expectedSettleVersion,
			s.SettleVersion,
		)
	}

	if err := s.EntryType.CheckDeposit(amount); err != nil {
		return Deposit{}, err
	}

	accessVersion, err := s.nextAccessVersion()
	if err != nil {
		return Deposit{}, err
	}

	if err := s.Credit(amount); err != nil {
		return Deposit{}, err
	}

	deposit := Deposit{
		Address:       caller,
		Amount:        amount,
		AccessVersion: accessVersion,
		SettleVersion: s.SettleVersion,
		Status:        DepositStatusPending,
	}

	s.AccessVersion = accessVersion
	s.Deposits = append(s.Deposits, deposit)

	return deposit, nil
}

// RejectDeposits refunds pending deposits. A player whose join deposit is
// rejected loses the seat and may rejoin. Either every referenced deposit is
// refunded or none is.
func (s *Session) RejectDeposits(caller core.Address, accessVersions []uint64) ([]core.Transfer, error) {
	if !s.IsTransactor(caller) {
		return nil, core.Errorf(core.CodeUnauthorizedCaller, "%s is not the transactor", caller)
	}

	if len(accessVersions) == 0 {
		return nil, core.Errorf(core.CodeInvalidArgument, "no deposits to reject")
	}

	indices := make([]int, 0, len(accessVersions))
	var total uint64
	for _, accessVersion := range accessVersions {
		idx := slices.IndexFunc(s.Deposits, func(d Deposit) bool {
			return d.AccessVersion == accessVersion
		})
		if idx < 0 {
			return nil, core.Errorf(core.CodeRecordNotFound, "deposit %d not found", accessVersion)
		}

		if slices.Contains(indices, idx) {
			return nil, core.Errorf(core.CodeInvalidArgument, "deposit %d referenced twice", accessVersion)
		}

		if status := s.Deposits[idx].Status; status != DepositStatusPending {
			return nil, core.Errorf(core.CodeInvalidArgument, "deposit %d is %s", accessVersion, status)
		}

		if total > math.MaxUint64-s.Deposits[idx].Amount {
			return nil, core.Errorf(core.CodeInvariantViolation, "rejected amount overflows")
		}
		total += s.Deposits[idx].Amount
		indices = append(indices, idx)
	}

	if total > s.Balance {
		return nil, core.Errorf(core.CodeInsufficientBalance, "refund of %d exceeds balance %d", total, s.Balance)
	}

	transfers := make([]core.Transfer, 0, len(indices))
	for _, idx := range indices {
		deposit := &s.Deposits[idx]
		deposit.Status = DepositStatusRejected

		if err := s.Debit(deposit.Amount); err != nil {
			return nil, err
		}

		deposit.Status = DepositStatusRefunded
		transfers = append(transfers, core.NewTransfer(
			core.TransferKindRefund,
			s.ID,
			deposit.Address,
			core.NativeToken,
			deposit.Amount,
		))

		// Only a rejected join unseats; a rejected rebuy leaves the seat and
		// its accepted stake in place.
		s.Players = slices.DeleteFunc(s.Players, func(p PlayerEntry) bool {
			return p.AccessVersion == deposit.AccessVersion
		})
	}

	return transfers, nil
}

func (s *Session) AttachBonus(prizeID uuid.UUID) error {
	if len(s.Bonuses) >= MaxBonuses {
		return core.Errorf(core.CodeCapacityExceeded, "session already has %d bonuses", MaxBonuses)
	}

	if slices.Contains(s.Bonuses, prizeID) {
		return core.Errorf(core.CodeDuplicateMembership, "bonus %s already attached", prizeID)
	}

	s.Bonuses = append(s.Bonuses, prizeID)
	return nil
}

func (s *Session) DetachBonus(prizeID uuid.UUID) error {
	idx := slices.Index(s.Bonuses, prizeID)
	if idx < 0 {
		return core.Errorf(core.CodeRecordNotFound, "bonus %s not attached", prizeID)
	}

	s.Bonuses = slices.Delete(s.Bonuses, idx, idx+1)
	return nil
}

func (s *Session) Credit(amount uint64) error {
	if s.Balance > math.MaxUint64-amount {
		return core.Errorf(core.CodeInvariantViolation, "balance overflow")
	}

	s.Balance += amount
	return nil
}

func (s *Session) Debit(amount uint64) error {
	if amount > s.Balance {
		return core.Errorf(core.CodeInsufficientBalance, "debit of %d exceeds balance %d", amount, s.Balance)
	}

	s.Balance -= amount
	return nil
}

// CanClose reports whether the owner may destroy the session.
func (s *Session) CanClose(caller core.Address) error {
	if caller != s.Owner {
		return core.Errorf(core.CodeUnauthorizedCaller, "%s does not own the session", caller)
	}

	switch {
	case len(s.Players) > 0:
		return core.Errorf(core.CodeInvalidArgument, "session still has %d players", len(s.Players))
	case len(s.Bonuses) > 0:
		return core.Errorf(core.CodeInvalidArgument, "session still has %d unclaimed bonuses", len(s.Bonuses))
	case s.Balance != 0:
		return core.Errorf(core.CodeInvalidArgument, "session still holds %d", s.Balance)
	}

	return nil
}

func (s *Session) PlayerByAddress(address core.Address) (PlayerEntry, bool) {
	idx := slices.IndexFunc(s.Players, func(p PlayerEntry) bool {
		return p.Address == address
	})
	if idx < 0 {
		return PlayerEntry{}, false
	}
	return s.Players[idx], true
}

func (s *Session) PlayerIndex(accessVersion uint64) int {
	return slices.IndexFunc(s.Players, func(p PlayerEntry) bool {
		return p.AccessVersion == accessVersion
	})
}

// Clone returns a deep copy that shares no slices with s.
func (s *Session) Clone() *Session {
	c := *s

	if s.TransactorAddress != nil {
		transactor := *s.TransactorAddress
		c.TransactorAddress = &transactor
	}

	c.Players = slices.Clone(s.Players)
	c.Deposits = slices.Clone(s.Deposits)
	c.Hosts = slices.Clone(s.Hosts)
	c.Bonuses = slices.Clone(s.Bonuses)
	c.Checkpoint = slices.Clone(s.Checkpoint)

	return &c
}

func (s *Session) resolvePosition(requested uint16) (uint16, error) {
	occupied := make([]bool, s.MaxPlayers)
	for _, p := range s.Players {
		if p.Position < s.MaxPlayers {
			occupied[p.Position] = true
		}
	}

	if !occupied[requested] {
		return requested, nil
	}

	for position := range occupied {
		if !occupied[position] {
			return uint16(position), nil
		}
	}

	return 0, core.Errorf(core.CodePositionUnavailable, "no free position")
}

func (s *Session) nextAccessVersion() (uint64, error) {
	if s.AccessVersion == math.MaxUint64 {
		return 0, core.Errorf(core.CodeInvariantViolation, "access version exhausted")
	}
	return s.AccessVersion + 1, nil
}
