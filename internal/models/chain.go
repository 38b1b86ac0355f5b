package models

import (
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/apperr"
	"gorm.io/gorm"
)

type ChainStatus string

const (
	ChainActive   ChainStatus = "active"
	ChainInactive ChainStatus = "inactive"
	ChainExpired  ChainStatus = "expired"
)

type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberAccepted MemberStatus = "accepted"
	MemberRejected MemberStatus = "rejected"
)

type SplitMethod string

const (
	SplitEqual  SplitMethod = "equal"
	SplitCustom SplitMethod = "custom"
)

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentPaypal     PaymentMethod = "paypal"
	PaymentOther      PaymentMethod = "other"
)

// MaxShareTotal caps the sum of accepted members' shares.
const MaxShareTotal = 100

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCreditCard, PaymentDebitCard, PaymentPaypal, PaymentOther:
		return true
	}
	return false
}

func (s SplitMethod) Valid() bool {
	return s == SplitEqual || s == SplitCustom
}

func (s ChainStatus) Valid() bool {
	switch s {
	case ChainActive, ChainInactive, ChainExpired:
		return true
	}
	return false
}

type ChainRules struct {
	PaymentDueDate *time.Time    `json:"payment_due_date,omitempty" msgpack:"payment_due_date"`
	PaymentMethod  PaymentMethod `gorm:"type:varchar(20)" json:"payment_method,omitempty" msgpack:"payment_method"`
	SplitMethod    SplitMethod   `gorm:"type:varchar(10);not null" json:"split_method" msgpack:"split_method"`
	AutoRenew      bool          `gorm:"not null" json:"auto_renew" msgpack:"auto_renew"`
}

// Chain is a group of users sharing subscriptions under one split agreement.
// Members is persisted by GORM but is only mutated through the methods below.
type Chain struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string            `gorm:"size:100;not null" json:"name"`
	Description string            `gorm:"size:255" json:"description"`
	CreatorID   uint              `gorm:"not null;index" json:"creator_id"`
	Rules       ChainRules        `gorm:"embedded;embeddedPrefix:rule_" json:"rules"`
	Status      ChainStatus       `gorm:"type:varchar(20);not null" json:"status"`
	Metadata    map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`

	Members       []ChainMember  `gorm:"foreignKey:ChainID" json:"members"`
	Subscriptions []Subscription `gorm:"foreignKey:ChainID" json:"subscriptions,omitempty"`
}

type ChainMember struct {
	ChainID uint         `gorm:"primaryKey;autoIncrement:false" json:"chain_id"`
	UserID  uint         `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Status  MemberStatus `gorm:"type:varchar(20);not null" json:"status"`
	// SharePercentage stays nil until the member accepts.
	SharePercentage *int      `json:"share_percentage,omitempty"`
	JoinedAt        time.Time `json:"joined_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// NewChain builds an active chain whose creator is its first accepted member
// holding the full share.
func NewChain(creatorID uint, name, description string, rules ChainRules, now time.Time) *Chain {
	full := MaxShareTotal
	return &Chain{
		Name:        name,
		Description: description,
		CreatorID:   creatorID,
		Rules:       rules,
		Status:      ChainActive,
		Members: []ChainMember{{
			UserID:          creatorID,
			Status:          MemberAccepted,
			SharePercentage: &full,
			JoinedAt:        now,
		}},
	}
}

// Member returns the membership record for userID.
func (c *Chain) Member(userID uint) (*ChainMember, bool) {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i], true
		}
	}
	return nil, false
}

// IsParticipant reports whether userID is the creator or a member that has not rejected.
func (c *Chain) IsParticipant(userID uint) bool {
	if c.CreatorID == userID {
		return true
	}
	m, ok := c.Member(userID)
	return ok && m.Status != MemberRejected
}

// CanView reports whether userID may read the chain. Rejected members keep read access.
func (c *Chain) CanView(userID uint) bool {
	if c.CreatorID == userID {
		return true
	}
	_, ok := c.Member(userID)
	return ok
}

func (c *Chain) AcceptedCount() int {
	n := 0
	for _, m := range c.Members {
		if m.Status == MemberAccepted {
			n++
		}
	}
	return n
}

// Invite appends a pending member per user id. The creator and users that
// already hold a record (whatever its status) are skipped, so a rejected user
// is never re-invited. It returns the ids actually added.
func (c *Chain) Invite(userIDs []uint, now time.Time) []uint {
	added := make([]uint, 0, len(userIDs))
	for _, id := range userIDs {
		if id == 0 || id == c.CreatorID {
			continue
		}
		if _, exists := c.Member(id); exists {
			continue
		}
		c.Members = append(c.Members, ChainMember{
			ChainID:  c.ID,
			UserID:   id,
			Status:   MemberPending,
			JoinedAt: now,
		})
		added = append(added, id)
	}
	return added
}

// Accept moves the pending invitation of userID to accepted and gives every
// accepted member the same recomputed share. Earlier custom allocations are
// overwritten. The caller must run ValidateShares before persisting.
func (c *Chain) Accept(userID uint) (int, error) {
	m, ok := c.Member(userID)
	if !ok || m.Status != MemberPending {
		return 0, apperr.NotFound("no pending invitation for user %d in chain %d", userID, c.ID)
	}

	share := EqualShare(c.AcceptedCount() + 1)
	m.Status = MemberAccepted

	for i := range c.Members {
		if c.Members[i].Status == MemberAccepted {
			v := share
			c.Members[i].SharePercentage = &v
		}
	}
	return share, nil
}

// Reject moves the pending invitation of userID to rejected. Rejection is terminal.
func (c *Chain) Reject(userID uint) error {
	m, ok := c.Member(userID)
	if !ok || m.Status != MemberPending {
		return apperr.NotFound("no pending invitation for user %d in chain %d", userID, c.ID)
	}
	m.Status = MemberRejected
	m.SharePercentage = nil
	return nil
}

// ShareTotal sums shares over accepted members.
func (c *Chain) ShareTotal() int {
	total := 0
	for _, m := range c.Members {
		if m.Status == MemberAccepted && m.SharePercentage != nil {
			total += *m.SharePercentage
		}
	}
	return total
}

// ValidateShares is the guard run before any member list is written.
func (c *Chain) ValidateShares() error {
	for _, m := range c.Members {
		if m.SharePercentage == nil {
			continue
		}
		if *m.SharePercentage < 0 || *m.SharePercentage > MaxShareTotal {
			return apperr.Invariant("share %d of user %d outside [0,%d]", *m.SharePercentage, m.UserID, MaxShareTotal)
		}
	}
	if total := c.ShareTotal(); total > MaxShareTotal {
		return apperr.Invariant("total share percentage %d exceeds %d", total, MaxShareTotal)
	}
	return nil
}

// EqualShare is round-half-up of 100/n.
func EqualShare(n int) int {
	if n <= 0 {
		return 0
	}
	return (2*MaxShareTotal + n) / (2 * n)
}

// ChainIDs flattens chains to their ids.
func ChainIDs(chains []Chain) []uint {
	ids := make([]uint, 0, len(chains))
	for _, c := range chains {
		ids = append(ids, c.ID)
	}
	return ids
}

type ChainMemberResponse struct {
	UserID          uint          `json:"user_id" msgpack:"user_id"`
	Status          MemberStatus  `json:"status" msgpack:"status"`
	SharePercentage *int          `json:"share_percentage,omitempty" msgpack:"share_percentage"`
	JoinedAt        time.Time     `json:"joined_at" msgpack:"joined_at"`
	User            *UserResponse `json:"user,omitempty" msgpack:"user"`
}

type ChainResponse struct {
	ID              uint                   `json:"id" msgpack:"id"`
	Name            string                 `json:"name" msgpack:"name"`
	Description     string                 `json:"description" msgpack:"description"`
	CreatorID       uint                   `json:"creator_id" msgpack:"creator_id"`
	Rules           ChainRules             `json:"rules" msgpack:"rules"`
	Status          ChainStatus            `json:"status" msgpack:"status"`
	Metadata        map[string]string      `json:"metadata,omitempty" msgpack:"metadata"`
	Members         []ChainMemberResponse  `json:"members" msgpack:"members"`
	SubscriptionIDs []uint                 `json:"subscription_ids" msgpack:"subscription_ids"`
	Subscriptions   []SubscriptionResponse `json:"subscriptions,omitempty" msgpack:"subscriptions"`
	ShareTotal      int                    `json:"share_total" msgpack:"share_total"`
	CreatedAt       time.Time              `json:"created_at" msgpack:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at" msgpack:"updated_at"`
}

// Viewable mirrors Chain.CanView for cached details.
func (r *ChainResponse) Viewable(userID uint) bool {
	if r.CreatorID == userID {
		return true
	}
	for _, m := range r.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (c *Chain) ToResponse() ChainResponse {
	members := make([]ChainMemberResponse, 0, len(c.Members))
	for _, m := range c.Members {
		mr := ChainMemberResponse{
			UserID:          m.UserID,
			Status:          m.Status,
			SharePercentage: m.SharePercentage,
			JoinedAt:        m.JoinedAt,
		}
		if m.User != nil {
			u := m.User.ToResponse()
			mr.User = &u
		}
		members = append(members, mr)
	}

	subIDs := make([]uint, 0, len(c.Subscriptions))
	subs := make([]SubscriptionResponse, 0, len(c.Subscriptions))
	for i := range c.Subscriptions {
		subIDs = append(subIDs, c.Subscriptions[i].ID)
		subs = append(subs, c.Subscriptions[i].ToResponse())
	}

	return ChainResponse{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		CreatorID:       c.CreatorID,
		Rules:           c.Rules,
		Status:          c.Status,
		Metadata:        c.Metadata,
		Members:         members,
		SubscriptionIDs: subIDs,
		Subscriptions:   subs,
		ShareTotal:      c.ShareTotal(),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}
