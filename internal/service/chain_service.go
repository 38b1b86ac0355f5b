package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/apperr"
	"github.com/chainsplit/chainsplit-backend/internal/cache"
	"github.com/chainsplit/chainsplit-backend/internal/metrics"
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/internal/repository"
	"github.com/chainsplit/chainsplit-backend/internal/validation"
	"github.com/chainsplit/chainsplit-backend/pkg/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type ChainService struct {
	chainRepo repository.ChainRepositoryInterface
	userRepo  repository.UserRepositoryInterface
	subRepo   repository.SubscriptionRepositoryInterface
	cache     *cache.ChainCache
	metrics   *metrics.Metrics
	log       *logrus.Entry

	locks   *chainLocks
	loads   singleflight.Group
	nowFunc func() time.Time
}

func NewChainService(
	chainRepo repository.ChainRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	subRepo repository.SubscriptionRepositoryInterface,
	chainCache *cache.ChainCache,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) *ChainService {
	return &ChainService{
		chainRepo: chainRepo,
		userRepo:  userRepo,
		subRepo:   subRepo,
		cache:     chainCache,
		metrics:   m,
		log:       logger.Component(log, "chains"),
		locks:     newChainLocks(),
		nowFunc:   time.Now,
	}
}

type ChainRulesInput struct {
	PaymentDueDate *time.Time           `json:"payment_due_date"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	SplitMethod    models.SplitMethod   `json:"split_method"`
	AutoRenew      *bool                `json:"auto_renew"`
}

type CreateChainInput struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Rules       ChainRulesInput   `json:"rules"`
	Metadata    map[string]string `json:"metadata"`
}

// rules applies defaults (equal split, auto renew) and checks the enums.
func (in ChainRulesInput) rules() (models.ChainRules, error) {
	r := models.ChainRules{
		PaymentDueDate: in.PaymentDueDate,
		PaymentMethod:  in.PaymentMethod,
		SplitMethod:    in.SplitMethod,
		AutoRenew:      true,
	}
	if r.SplitMethod == "" {
		r.SplitMethod = models.SplitEqual
	}
	if !r.SplitMethod.Valid() {
		return r, apperr.Validation("invalid split method %q", r.SplitMethod)
	}
	if r.PaymentMethod != "" && !r.PaymentMethod.Valid() {
		return r, apperr.Validation("invalid payment method %q", r.PaymentMethod)
	}
	if in.AutoRenew != nil {
		r.AutoRenew = *in.AutoRenew
	}
	return r, nil
}

// CreateChain creates an active chain with the creator as its only accepted
// member holding the full share.
func (s *ChainService) CreateChain(creatorID uint, input CreateChainInput) (*models.Chain, error) {
	name := strings.TrimSpace(input.Name)
	if !validation.ValidateName(name) {
		return nil, apperr.Validation("chain name is required and at most %d characters", validation.MaxNameLength)
	}
	if !validation.ValidateDescription(input.Description) {
		return nil, apperr.Validation("chain description exceeds %d characters", validation.MaxDescriptionLength)
	}
	rules, err := input.Rules.rules()
	if err != nil {
		return nil, err
	}

	chain := models.NewChain(creatorID, name, strings.TrimSpace(input.Description), rules, s.nowFunc())
	chain.Metadata = input.Metadata
	if err := s.chainRepo.Create(chain); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"chain_id": chain.ID, "creator_id": creatorID}).Info("Chain created")
	return s.chainRepo.FindByID(chain.ID)
}

// InviteMembers adds pending members. Ids already on the chain in any status,
// and the creator, are skipped. Shares are left untouched.
func (s *ChainService) InviteMembers(chainID, requesterID uint, userIDs []uint) (*models.Chain, error) {
	chain, err := s.chainRepo.FindByID(chainID)
	if err != nil {
		return nil, err
	}
	if chain.CreatorID != requesterID {
		return nil, apperr.Unauthorized("only the chain creator can invite members")
	}
	if len(userIDs) == 0 {
		return nil, apperr.Validation("at least one user id is required")
	}
	if err := s.ensureUsersExist(userIDs); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(chainID)
	defer unlock()

	var added []uint
	updated, err := s.chainRepo.UpdateMembers(chainID, func(c *models.Chain) error {
		added = c.Invite(userIDs, s.nowFunc())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(chainID)

	s.log.WithFields(logrus.Fields{"chain_id": chainID, "invited": added}).Info("Members invited")
	return updated, nil
}

// AcceptInvitation accepts the pending invitation of userID and gives every
// accepted member the equal share for the new accepted count.
func (s *ChainService) AcceptInvitation(chainID, userID uint) (*models.Chain, error) {
	unlock := s.locks.lock(chainID)
	defer unlock()

	var share int
	updated, err := s.chainRepo.UpdateMembers(chainID, func(c *models.Chain) error {
		var err error
		share, err = c.Accept(userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(chainID)
	s.metrics.ShareRecompute()

	s.log.WithFields(logrus.Fields{
		"chain_id": chainID,
		"user_id":  userID,
		"share":    share,
		"accepted": updated.AcceptedCount(),
	}).Info("Invitation accepted")
	return updated, nil
}

// RejectInvitation marks the pending invitation of userID rejected for good.
func (s *ChainService) RejectInvitation(chainID, userID uint) (*models.Chain, error) {
	unlock := s.locks.lock(chainID)
	defer unlock()

	updated, err := s.chainRepo.UpdateMembers(chainID, func(c *models.Chain) error {
		return c.Reject(userID)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(chainID)

	s.log.WithFields(logrus.Fields{"chain_id": chainID, "user_id": userID}).Info("Invitation rejected")
	return updated, nil
}

// AddSubscriptionToChain shares an existing subscription through the chain.
// Adding a subscription already in the chain changes nothing.
func (s *ChainService) AddSubscriptionToChain(chainID, requesterID, subscriptionID uint) (*models.Chain, error) {
	chain, err := s.chainRepo.FindByID(chainID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subRepo.FindByID(subscriptionID)
	if err != nil {
		return nil, err
	}
	if chain.CreatorID != requesterID {
		return nil, apperr.Unauthorized("only the chain creator can add subscriptions")
	}
	if sub.ChainID != nil && *sub.ChainID == chainID && sub.IsShared {
		return chain, nil
	}

	unlock := s.locks.lock(chainID)
	defer unlock()

	if err := s.chainRepo.AttachSubscription(chainID, subscriptionID); err != nil {
		return nil, err
	}
	s.invalidate(chainID)
	if sub.ChainID != nil && *sub.ChainID != chainID {
		s.invalidate(*sub.ChainID)
	}

	s.log.WithFields(logrus.Fields{"chain_id": chainID, "subscription_id": subscriptionID}).Info("Subscription added to chain")
	return s.chainRepo.FindByID(chainID)
}

// ListChains returns chains the user created or holds a member record in.
func (s *ChainService) ListChains(userID uint) ([]models.Chain, error) {
	return s.chainRepo.ListForUser(userID)
}

// GetChain returns the chain details when userID is its creator or a member.
func (s *ChainService) GetChain(chainID, userID uint) (*models.ChainResponse, error) {
	resp, err := s.loadChain(chainID)
	if err != nil {
		return nil, err
	}
	if !resp.Viewable(userID) {
		return nil, apperr.Unauthorized("user %d is not a member of chain %d", userID, chainID)
	}
	return resp, nil
}

// ListChainIDsForUser returns the chains whose room the user joins: created
// by the user or holding a pending or accepted membership.
func (s *ChainService) ListChainIDsForUser(userID uint) ([]uint, error) {
	return s.chainRepo.ListIDsForParticipant(userID)
}

// FindChain returns the stored chain without access checks.
func (s *ChainService) FindChain(chainID uint) (*models.Chain, error) {
	return s.chainRepo.FindByID(chainID)
}

func (s *ChainService) loadChain(chainID uint) (*models.ChainResponse, error) {
	if cached, ok := s.cache.Get(chainID); ok {
		return cached, nil
	}

	v, err, _ := s.loads.Do(fmt.Sprintf("chain:%d", chainID), func() (interface{}, error) {
		chain, err := s.chainRepo.FindByID(chainID)
		if err != nil {
			return nil, err
		}
		resp := chain.ToResponse()
		if err := s.cache.Set(&resp); err != nil {
			s.log.WithError(err).WithField("chain_id", chainID).Warn("Failed to cache chain")
		}
		return &resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.ChainResponse), nil
}

func (s *ChainService) ensureUsersExist(ids []uint) error {
	unique := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	lookup := make([]uint, 0, len(unique))
	for id := range unique {
		lookup = append(lookup, id)
	}

	users, err := s.userRepo.FindByIDs(lookup)
	if err != nil {
		return err
	}
	found := make(map[uint]struct{}, len(users))
	for _, u := range users {
		found[u.ID] = struct{}{}
	}
	for _, id := range lookup {
		if _, ok := found[id]; !ok {
			return apperr.NotFound("user %d", id)
		}
	}
	return nil
}

func (s *ChainService) invalidate(chainID uint) {
	if err := s.cache.Invalidate(chainID); err != nil {
		s.log.WithError(err).WithField("chain_id", chainID).Warn("Failed to invalidate chain cache")
	}
}
