package service

import (
	"errors"
	"strings"

	"github.com/chainsplit/chainsplit-backend/internal/apperr"
	"github.com/chainsplit/chainsplit-backend/internal/cache"
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/internal/repository"
	"github.com/chainsplit/chainsplit-backend/internal/validation"
)

type UserService struct {
	userRepo repository.UserRepositoryInterface
	presence *cache.PresenceCache
}

func NewUserService(userRepo repository.UserRepositoryInterface, presence *cache.PresenceCache) *UserService {
	return &UserService{userRepo: userRepo, presence: presence}
}

type UpdateProfileInput struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

func (s *UserService) IsUsernameAvailable(username string) (bool, error) {
	username = validation.NormalizeUsername(username)
	if username == "" {
		return false, apperr.Validation("username cannot be empty")
	}

	_, err := s.userRepo.FindByUsername(username)
	if errors.Is(err, apperr.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (s *UserService) UpdateProfile(userID uint, input UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	if input.Username != "" {
		username := validation.NormalizeUsername(input.Username)
		if !validation.ValidateUsername(username) {
			return nil, apperr.Validation("username must be 3-32 letters, digits or underscores")
		}
		if username != user.Username {
			available, err := s.IsUsernameAvailable(username)
			if err != nil {
				return nil, err
			}
			if !available {
				return nil, apperr.Validation("username already taken")
			}
			user.Username = username
		}
	}

	if input.FullName != "" {
		user.FullName = strings.TrimSpace(input.FullName)
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID returns the user with live presence folded in.
func (s *UserService) GetUserByID(userID uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if s.presence.IsOnline(userID) {
		user.IsOnline = true
	}
	return user, nil
}

// SetOnline records presence in the store and the presence cache.
func (s *UserService) SetOnline(userID uint, online bool) error {
	if err := s.userRepo.UpdateOnlineStatus(userID, online); err != nil {
		return err
	}
	if online {
		return s.presence.SetOnline(userID)
	}
	return s.presence.SetOffline(userID)
}

// Touch extends the presence TTL on heartbeat.
func (s *UserService) Touch(userID uint) error {
	return s.presence.Refresh(userID)
}
