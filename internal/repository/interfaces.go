package repository

import (
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/models"
)

// UserRepositoryInterface defines the contract for user repository operations
type UserRepositoryInterface interface {
	Create(user *models.User) error
	FindByEmail(email string) (*models.User, error)
	FindByUsername(username string) (*models.User, error)
	FindByID(id uint) (*models.User, error)
	FindByIDs(ids []uint) ([]models.User, error)
	Update(user *models.User) error
	UpdateOnlineStatus(userID uint, isOnline bool) error
}

// ChainRepositoryInterface defines the contract for chain storage.
// Member lists are only written through UpdateMembers, which runs the
// mutation and the share guard inside one transaction.
type ChainRepositoryInterface interface {
	Create(chain *models.Chain) error
	FindByID(id uint) (*models.Chain, error)
	ListForUser(userID uint) ([]models.Chain, error)
	ListIDsForParticipant(userID uint) ([]uint, error)
	UpdateMembers(chainID uint, mutate func(chain *models.Chain) error) (*models.Chain, error)
	AttachSubscription(chainID, subscriptionID uint) error
}

// SubscriptionRepositoryInterface defines the contract for subscription storage
type SubscriptionRepositoryInterface interface {
	Create(sub *models.Subscription) error
	FindByID(id uint) (*models.Subscription, error)
	ListByUser(userID uint) ([]models.Subscription, error)
	Update(sub *models.Subscription) error
	Delete(id uint) error
	FindDue(now time.Time, limit int) ([]models.Subscription, error)
}

// MessageRepositoryInterface defines the contract for message repository operations
type MessageRepositoryInterface interface {
	Create(message *models.Message) error
	FindByID(id uint) (*models.Message, error)
	FindByClientID(clientID string, senderID uint) (*models.Message, error)
	FindDirectConversation(userID, peerID uint, limit int) ([]models.Message, error)
	FindChainMessages(chainID uint, limit int) ([]models.Message, error)
	MarkAsRead(messageID uint, readAt time.Time) error
	CountUnreadDirect(userID uint) (int64, error)
}
