package domain

import (
	"math"
	"math/bits"
	"slices"

	"github.com/eskrenkovic/session-ledger/internal/modules/core"

	"github.com/google/uuid"
)

type AssetKind string

const (
	AssetKindFungible    AssetKind = "fungible"
	AssetKindNonFungible AssetKind = "non_fungible"
)

func (k AssetKind) Validate() error {
	switch k {
	case AssetKindFungible, AssetKindNonFungible:
		return nil
	default:
		return core.Errorf(core.CodeInvalidArgument, "unknown asset kind '%s'", k)
	}
}

// ShareOwner is either a concrete address or a role tag awaiting
// assignment. A role-tagged share cannot be claimed.
type ShareOwner struct {
	Address core.Address `json:"address,omitempty"`
	Role    string       `json:"role,omitempty"`
}

func (o ShareOwner) Assigned() bool {
	return o.Address != ""
}

type Share struct {
	Owner         ShareOwner `json:"owner"`
	Weight        uint16     `json:"weight"`
	ClaimedToDate uint64     `json:"claimed_to_date"`
}

// Slot is a weighted payout channel. Each share is entitled to its weight's
// fraction of everything ever deposited into the slot.
type Slot struct {
	ID          uuid.UUID `json:"id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Name        string    `json:"name"`
	Kind        AssetKind `json:"kind"`
	TokenType   string    `json:"token_type"`
	Shares      []Share   `json:"shares"`
	Balance     uint64    `json:"balance"`
}

func NewSlot(recipientID uuid.UUID, name string, kind AssetKind, tokenType string, shares []Share) (*Slot, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	if tokenType == "" {
		return nil, core.Errorf(core.CodeInvalidArgument, "slot %s requires a token type", name)
	}

	if len(shares) == 0 {
		return nil, core.Errorf(core.CodeInvalidArgument, "slot %s requires at least one share", name)
	}

	shares = slices.Clone(shares)

	for i, share := range shares {
		if share.Weight == 0 {
			return nil, core.Errorf(core.CodeInvalidArgument, "share %d of slot %s has zero weight", i, name)
		}

		if share.Owner.Assigned() == (share.Owner.Role != "") {
			return nil, core.Errorf(
				core.CodeInvalidArgument,
				"share %d of slot %s must name exactly one of address or role",
				i,
				name,
			)
		}

		if share.Owner.Assigned() && slices.ContainsFunc(shares[:i], func(s Share) bool {
			return s.Owner.Address == share.Owner.Address
		}) {
			return nil, core.Errorf(core.CodeDuplicateMembership, "%s holds two shares of slot %s", share.Owner.Address, name)
		}

		shares[i].ClaimedToDate = 0
	}

	return &Slot{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Name:        name,
		Kind:        kind,
		TokenType:   tokenType,
		Shares:      shares,
	}, nil
}

func (s *Slot) TotalWeight() uint64 {
	var total uint64
	for _, share := range s.Shares {
		total += uint64(share.Weight)
	}
	return total
}

func (s *Slot) Deposit(amount uint64) error {
	if s.Balance > math.MaxUint64-amount {
		return core.Errorf(core.CodeInvariantViolation, "slot balance overflow")
	}

	s.Balance += amount
	return nil
}

// Claim pays the claimant's share of the cumulative deposits, less what it
// has already been paid. The result is zero when nothing new is owed.
func (s *Slot) Claim(claimant core.Address) (uint64, error) {
	idx := slices.IndexFunc(s.Shares, func(share Share) bool {
		return share.Owner.Assigned() && share.Owner.Address == claimant
	})
	if idx < 0 {
		return 0, core.Errorf(core.CodeUnauthorizedCaller, "%s holds no share of slot %s", claimant, s.ID)
	}

	deposited, err := s.totalDeposited()
	if err != nil {
		return 0, err
	}

	share := &s.Shares[idx]
	entitlement := mulDiv(deposited, uint64(share.Weight), s.TotalWeight())
	if entitlement <= share.ClaimedToDate {
		return 0, nil
	}

	payout := entitlement - share.ClaimedToDate
	if payout > s.Balance {
		return 0, core.Errorf(core.CodeInsufficientBalance, "payout %d exceeds slot balance %d", payout, s.Balance)
	}

	s.Balance -= payout
	share.ClaimedToDate = entitlement

	return payout, nil
}

// AssignRole hands a role-tagged share to a concrete address.
func (s *Slot) AssignRole(role string, address core.Address) error {
	if address == "" {
		return core.Errorf(core.CodeInvalidArgument, "address is required")
	}

	if slices.ContainsFunc(s.Shares, func(share Share) bool {
		return share.Owner.Address == address
	}) {
		return core.Errorf(core.CodeDuplicateMembership, "%s already holds a share of slot %s", address, s.ID)
	}

	idx := slices.IndexFunc(s.Shares, func(share Share) bool {
		return !share.Owner.Assigned() && share.Owner.Role == role
	})
	if idx < 0 {
		return core.Errorf(core.CodeRecordNotFound, "no unassigned share with role '%s' in slot %s", role, s.ID)
	}

	s.Shares[idx].Owner = ShareOwner{Address: address, Role: role}
	return nil
}

func (s *Slot) Clone() *Slot {
	c := *s
	c.Shares = slices.Clone(s.Shares)
	return &c
}

// totalDeposited is the balance plus everything already paid out.
func (s *Slot) totalDeposited() (uint64, error) {
	total := s.Balance
	for _, share := range s.Shares {
		sum, carry := bits.Add64(total, share.ClaimedToDate, 0)
		if carry != 0 {
			return 0, core.Errorf(core.CodeInvariantViolation, "slot %s deposits overflow", s.ID)
		}
		total = sum
	}
	return total, nil
}

// mulDiv computes floor(a * b / c) without intermediate overflow. b <= c.
func mulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	hi, lo := bits.Mul64(a, b)
	quo, _ := bits.Div64(hi, lo, c)
	return quo
}
