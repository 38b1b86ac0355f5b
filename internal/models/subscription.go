package models

import (
	"time"

	"gorm.io/gorm"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyINR Currency = "INR"
)

type Category string

const (
	CategoryEntertainment Category = "entertainment"
	CategoryEducation     Category = "education"
	CategoryProductivity  Category = "productivity"
	CategoryHealth        Category = "health"
	CategoryOther         Category = "other"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// Advance moves t forward by exactly one period. Month and year steps
// normalize like time.AddDate, so Jan 31 + 1 month lands in early March.
func (f Frequency) Advance(t time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return t.AddDate(0, 1, 0)
	case FrequencyYearly:
		return t.AddDate(1, 0, 0)
	}
	return t
}

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionExpired, SubscriptionCancelled:
		return true
	}
	return false
}

func (c Currency) Valid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyINR:
		return true
	}
	return false
}

func (c Category) Valid() bool {
	switch c {
	case CategoryEntertainment, CategoryEducation, CategoryProductivity, CategoryHealth, CategoryOther:
		return true
	}
	return false
}

type Subscription struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID      uint    `gorm:"not null;index" json:"user_id"`
	Name        string  `gorm:"size:100;not null" json:"name"`
	Description string  `gorm:"size:255" json:"description"`
	Price       float64 `gorm:"not null" json:"price"`

	Currency  Currency           `gorm:"type:varchar(3);not null" json:"currency"`
	Frequency Frequency          `gorm:"type:varchar(10);not null" json:"frequency"`
	Status    SubscriptionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Category  Category           `gorm:"type:varchar(20);not null" json:"category"`

	// NextRenewalDate is always StartDate advanced by one Frequency period.
	StartDate       time.Time `gorm:"not null" json:"start_date"`
	NextRenewalDate time.Time `gorm:"not null;index" json:"next_renewal_date"`

	ChainID       *uint             `gorm:"index" json:"chain_id"`
	IsShared      bool              `gorm:"not null;default:false" json:"is_shared"`
	PaymentMethod PaymentMethod     `gorm:"type:varchar(20)" json:"payment_method,omitempty"`
	PaymentID     string            `json:"payment_id,omitempty"`
	Metadata      map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`
}

// Reschedule sets the start date and frequency and recomputes the renewal date.
func (s *Subscription) Reschedule(start time.Time, freq Frequency) {
	s.StartDate = start
	s.Frequency = freq
	s.NextRenewalDate = freq.Advance(start)
}

// Renew starts the next billing period at the current renewal date.
func (s *Subscription) Renew() {
	s.Reschedule(s.NextRenewalDate, s.Frequency)
}

// DueAt reports whether the subscription reached its renewal date at now.
func (s *Subscription) DueAt(now time.Time) bool {
	return s.Status == SubscriptionActive && !s.NextRenewalDate.After(now)
}

// ShareWith attaches the subscription to chainID.
func (s *Subscription) ShareWith(chainID uint) {
	id := chainID
	s.ChainID = &id
	s.IsShared = true
}

// Unshare detaches the subscription from its chain.
func (s *Subscription) Unshare() {
	s.ChainID = nil
	s.IsShared = false
}

type SubscriptionResponse struct {
	ID              uint               `json:"id" msgpack:"id"`
	UserID          uint               `json:"user_id" msgpack:"user_id"`
	Name            string             `json:"name" msgpack:"name"`
	Description     string             `json:"description" msgpack:"description"`
	Price           float64            `json:"price" msgpack:"price"`
	Currency        Currency           `json:"currency" msgpack:"currency"`
	Frequency       Frequency          `json:"frequency" msgpack:"frequency"`
	Status          SubscriptionStatus `json:"status" msgpack:"status"`
	Category        Category           `json:"category" msgpack:"category"`
	StartDate       time.Time          `json:"start_date" msgpack:"start_date"`
	NextRenewalDate time.Time          `json:"next_renewal_date" msgpack:"next_renewal_date"`
	ChainID         *uint              `json:"chain_id" msgpack:"chain_id"`
	IsShared        bool               `json:"is_shared" msgpack:"is_shared"`
	PaymentMethod   PaymentMethod      `json:"payment_method,omitempty" msgpack:"payment_method"`
	Metadata        map[string]string  `json:"metadata,omitempty" msgpack:"metadata"`
}

func (s *Subscription) ToResponse() SubscriptionResponse {
	return SubscriptionResponse{
		ID:              s.ID,
		UserID:          s.UserID,
		Name:            s.Name,
		Description:     s.Description,
		Price:           s.Price,
		Currency:        s.Currency,
		Frequency:       s.Frequency,
		Status:          s.Status,
		Category:        s.Category,
		StartDate:       s.StartDate,
		NextRenewalDate: s.NextRenewalDate,
		ChainID:         s.ChainID,
		IsShared:        s.IsShared,
		PaymentMethod:   s.PaymentMethod,
		Metadata:        s.Metadata,
	}
}
