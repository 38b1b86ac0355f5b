package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/apperr"
	"github.com/chainsplit/chainsplit-backend/internal/cache"
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/internal/repository"
	"github.com/chainsplit/chainsplit-backend/internal/validation"
	"github.com/chainsplit/chainsplit-backend/pkg/logger"
	"github.com/sirupsen/logrus"
)

type SubscriptionService struct {
	subRepo repository.SubscriptionRepositoryInterface
	chains  *ChainService
	cache   *cache.ChainCache
	log     *logrus.Entry
}

func NewSubscriptionService(
	subRepo repository.SubscriptionRepositoryInterface,
	chains *ChainService,
	chainCache *cache.ChainCache,
	log logrus.FieldLogger,
) *SubscriptionService {
	return &SubscriptionService{
		subRepo: subRepo,
		chains:  chains,
		cache:   chainCache,
		log:     logger.Component(log, "subscriptions"),
	}
}

type CreateSubscriptionInput struct {
	Name          string                    `json:"name"`
	Description   string                    `json:"description"`
	Price         *float64                  `json:"price"`
	Currency      models.Currency           `json:"currency"`
	Frequency     models.Frequency          `json:"frequency"`
	StartDate     *time.Time                `json:"start_date"`
	Category      models.Category           `json:"category"`
	IsShared      bool                      `json:"is_shared"`
	PaymentMethod models.PaymentMethod      `json:"payment_method"`
	PaymentID     string                    `json:"payment_id"`
	Metadata      map[string]string         `json:"metadata"`
	Status        models.SubscriptionStatus `json:"status"`
}

// UpdateSubscriptionInput carries the fields to change; nil means keep.
type UpdateSubscriptionInput struct {
	Name          *string                    `json:"name"`
	Description   *string                    `json:"description"`
	Price         *float64                   `json:"price"`
	Currency      *models.Currency           `json:"currency"`
	Frequency     *models.Frequency          `json:"frequency"`
	StartDate     *time.Time                 `json:"start_date"`
	Category      *models.Category           `json:"category"`
	Status        *models.SubscriptionStatus `json:"status"`
	PaymentMethod *models.PaymentMethod      `json:"payment_method"`
	PaymentID     *string                    `json:"payment_id"`
	Metadata      map[string]string          `json:"metadata"`
}

func (s *SubscriptionService) List(userID uint) ([]models.Subscription, error) {
	return s.subRepo.ListByUser(userID)
}

func (s *SubscriptionService) Get(id, userID uint) (*models.Subscription, error) {
	sub, err := s.subRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, apperr.NotFound("subscription %d", id)
	}
	return sub, nil
}

// Create stores a subscription. A shared one gets its own "<name> Chain"
// created by the owner with the subscription attached.
func (s *SubscriptionService) Create(userID uint, input CreateSubscriptionInput) (*models.Subscription, error) {
	sub := &models.Subscription{
		UserID:        userID,
		Name:          strings.TrimSpace(input.Name),
		Description:   strings.TrimSpace(input.Description),
		Currency:      input.Currency,
		Category:      input.Category,
		Status:        input.Status,
		PaymentMethod: input.PaymentMethod,
		PaymentID:     input.PaymentID,
		Metadata:      input.Metadata,
	}
	if input.Price == nil {
		return nil, apperr.Validation("price is required")
	}
	if input.StartDate == nil || input.StartDate.IsZero() {
		return nil, apperr.Validation("start date is required")
	}
	sub.Price = *input.Price

	if sub.Currency == "" {
		sub.Currency = models.CurrencyUSD
	}
	if sub.Category == "" {
		sub.Category = models.CategoryOther
	}
	if sub.Status == "" {
		sub.Status = models.SubscriptionActive
	}
	freq := input.Frequency
	if freq == "" {
		freq = models.FrequencyMonthly
	}
	sub.Reschedule(*input.StartDate, freq)

	if err := validateSubscription(sub); err != nil {
		return nil, err
	}
	if err := s.subRepo.Create(sub); err != nil {
		return nil, err
	}

	if input.IsShared {
		chain, err := s.chains.CreateChain(userID, CreateChainInput{
			Name:  sharedChainName(sub.Name),
			Rules: ChainRulesInput{PaymentMethod: sub.PaymentMethod},
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.chains.AddSubscriptionToChain(chain.ID, userID, sub.ID); err != nil {
			return nil, err
		}
		return s.subRepo.FindByID(sub.ID)
	}

	s.log.WithFields(logrus.Fields{"subscription_id": sub.ID, "user_id": userID}).Info("Subscription created")
	return sub, nil
}

// Update changes an owned subscription. The renewal date follows any change
// to the start date or frequency.
func (s *SubscriptionService) Update(id, userID uint, input UpdateSubscriptionInput) (*models.Subscription, error) {
	sub, err := s.Get(id, userID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		sub.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		sub.Description = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		sub.Price = *input.Price
	}
	if input.Currency != nil {
		sub.Currency = *input.Currency
	}
	if input.Category != nil {
		sub.Category = *input.Category
	}
	if input.Status != nil {
		sub.Status = *input.Status
	}
	if input.PaymentMethod != nil {
		sub.PaymentMethod = *input.PaymentMethod
	}
	if input.PaymentID != nil {
		sub.PaymentID = *input.PaymentID
	}
	if input.Metadata != nil {
		sub.Metadata = input.Metadata
	}
	if input.StartDate != nil || input.Frequency != nil {
		start, freq := sub.StartDate, sub.Frequency
		if input.StartDate != nil {
			start = *input.StartDate
		}
		if input.Frequency != nil {
			freq = *input.Frequency
		}
		sub.Reschedule(start, freq)
	}

	if err := validateSubscription(sub); err != nil {
		return nil, err
	}
	if err := s.subRepo.Update(sub); err != nil {
		return nil, err
	}
	s.invalidateChain(sub.ChainID)
	return sub, nil
}

// Delete removes an owned subscription, detaching it from its chain.
func (s *SubscriptionService) Delete(id, userID uint) error {
	sub, err := s.Get(id, userID)
	if err != nil {
		return err
	}
	chainID := sub.ChainID
	if chainID != nil {
		sub.Unshare()
		if err := s.subRepo.Update(sub); err != nil {
			return err
		}
	}
	if err := s.subRepo.Delete(id); err != nil {
		return err
	}
	s.invalidateChain(chainID)

	s.log.WithFields(logrus.Fields{"subscription_id": id, "user_id": userID}).Info("Subscription deleted")
	return nil
}

func (s *SubscriptionService) invalidateChain(chainID *uint) {
	if chainID == nil {
		return
	}
	if err := s.cache.Invalidate(*chainID); err != nil {
		s.log.WithError(err).WithField("chain_id", *chainID).Warn("Failed to invalidate chain cache")
	}
}

func sharedChainName(name string) string {
	return validation.TrimAndLimit(fmt.Sprintf("%s Chain", name), validation.MaxNameLength)
}

func validateSubscription(sub *models.Subscription) error {
	switch {
	case !validation.ValidateName(sub.Name):
		return apperr.Validation("subscription name is required and at most %d characters", validation.MaxNameLength)
	case !validation.ValidateDescription(sub.Description):
		return apperr.Validation("subscription description exceeds %d characters", validation.MaxDescriptionLength)
	case !validation.ValidatePrice(sub.Price):
		return apperr.Validation("price must be a non-negative amount")
	case !sub.Currency.Valid():
		return apperr.Validation("invalid currency %q", sub.Currency)
	case !sub.Frequency.Valid():
		return apperr.Validation("invalid frequency %q", sub.Frequency)
	case !sub.Category.Valid():
		return apperr.Validation("invalid category %q", sub.Category)
	case !sub.Status.Valid():
		return apperr.Validation("invalid status %q", sub.Status)
	case sub.PaymentMethod != "" && !sub.PaymentMethod.Valid():
		return apperr.Validation("invalid payment method %q", sub.PaymentMethod)
	}
	return nil
}
