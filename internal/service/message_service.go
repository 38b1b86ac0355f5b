package service

import (
	"errors"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/apperr"
	"github.com/chainsplit/chainsplit-backend/internal/cache"
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/internal/repository"
	"github.com/chainsplit/chainsplit-backend/internal/validation"
	"github.com/chainsplit/chainsplit-backend/pkg/logger"
	"github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// MessageRouter pushes a stored message to live connections.
type MessageRouter interface {
	RouteMessage(msg *models.Message)
}

type MessageService struct {
	messageRepo repository.MessageRepositoryInterface
	chainRepo   repository.ChainRepositoryInterface
	userRepo    repository.UserRepositoryInterface
	router      MessageRouter
	unread      *cache.UnreadCache
	log         *logrus.Entry
	nowFunc     func() time.Time
}

func NewMessageService(
	messageRepo repository.MessageRepositoryInterface,
	chainRepo repository.ChainRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	unread *cache.UnreadCache,
	log logrus.FieldLogger,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		chainRepo:   chainRepo,
		userRepo:    userRepo,
		unread:      unread,
		log:         logger.Component(log, "messages"),
		nowFunc:     time.Now,
	}
}

// SetRouter wires live delivery. Without a router messages are only stored.
func (s *MessageService) SetRouter(router MessageRouter) {
	s.router = router
}

type SendMessageInput struct {
	ClientID   string             `json:"client_id"`
	ReceiverID *uint              `json:"receiver_id"`
	ChainID    *uint              `json:"chain_id"`
	Content    string             `json:"content"`
	Type       models.MessageType `json:"type"`
	Metadata   map[string]string  `json:"metadata"`
}

// SendMessage validates, stores and routes a message. A repeated client id
// from the same sender returns the stored message without routing it again.
func (s *MessageService) SendMessage(senderID uint, input SendMessageInput) (*models.Message, error) {
	message := &models.Message{
		ClientID:   input.ClientID,
		SenderID:   senderID,
		ReceiverID: input.ReceiverID,
		ChainID:    input.ChainID,
		Content:    validation.TrimAndLimit(input.Content, validation.MaxMessageLength()),
		Type:       input.Type,
		Metadata:   input.Metadata,
	}
	if message.Type == "" {
		message.Type = models.TextMessage
	}
	if err := message.Validate(); err != nil {
		return nil, err
	}

	if message.ClientID != "" {
		existing, err := s.messageRepo.FindByClientID(message.ClientID, senderID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}

	switch message.DeliveryKind() {
	case models.DeliveryDirect:
		if *message.ReceiverID == senderID {
			return nil, apperr.Validation("cannot send a direct message to yourself")
		}
		if _, err := s.userRepo.FindByID(*message.ReceiverID); err != nil {
			return nil, err
		}
		message.ChainID = nil
	case models.DeliveryChain:
		chain, err := s.chainRepo.FindByID(*message.ChainID)
		if err != nil {
			return nil, err
		}
		if !chain.IsParticipant(senderID) {
			return nil, apperr.Unauthorized("user %d cannot post to chain %d", senderID, chain.ID)
		}
		message.ReceiverID = nil
	}

	if err := s.messageRepo.Create(message); err != nil {
		return nil, err
	}
	stored, err := s.messageRepo.FindByID(message.ID)
	if err != nil {
		return nil, err
	}

	if stored.ReceiverID != nil {
		if err := s.unread.Invalidate(*stored.ReceiverID); err != nil {
			s.log.WithError(err).Warn("Failed to invalidate unread count")
		}
	}
	if s.router != nil {
		s.router.RouteMessage(stored)
	}
	return stored, nil
}

// GetDirectConversation returns messages between userID and peerID, newest first.
func (s *MessageService) GetDirectConversation(userID, peerID uint, limit int) ([]models.Message, error) {
	if _, err := s.userRepo.FindByID(peerID); err != nil {
		return nil, err
	}
	return s.messageRepo.FindDirectConversation(userID, peerID, clampLimit(limit))
}

// GetChainMessages returns a chain's history, newest first, to its participants.
func (s *MessageService) GetChainMessages(chainID, userID uint, limit int) ([]models.Message, error) {
	chain, err := s.chainRepo.FindByID(chainID)
	if err != nil {
		return nil, err
	}
	if !chain.IsParticipant(userID) {
		return nil, apperr.Unauthorized("user %d cannot read chain %d", userID, chainID)
	}
	return s.messageRepo.FindChainMessages(chainID, clampLimit(limit))
}

// MarkAsRead marks a direct message read by its receiver. Chain messages
// carry no read state; participants get the message back unchanged.
func (s *MessageService) MarkAsRead(messageID, userID uint) (*models.Message, error) {
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return nil, err
	}

	if message.ChainID != nil {
		chain, err := s.chainRepo.FindByID(*message.ChainID)
		if err != nil {
			return nil, err
		}
		if !chain.IsParticipant(userID) {
			return nil, apperr.Unauthorized("user %d cannot read chain %d", userID, chain.ID)
		}
		return message, nil
	}

	if message.ReceiverID == nil || *message.ReceiverID != userID {
		return nil, apperr.Unauthorized("only the receiver can mark message %d read", messageID)
	}
	if message.IsRead {
		return message, nil
	}

	now := s.nowFunc()
	if err := s.messageRepo.MarkAsRead(messageID, now); err != nil {
		return nil, err
	}
	message.IsRead = true
	message.ReadAt = &now
	if err := s.unread.Invalidate(userID); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate unread count")
	}
	return message, nil
}

// UnreadCount counts unread direct messages addressed to userID.
func (s *MessageService) UnreadCount(userID uint) (int64, error) {
	if n, ok := s.unread.Get(userID); ok {
		return n, nil
	}
	n, err := s.messageRepo.CountUnreadDirect(userID)
	if err != nil {
		return 0, err
	}
	if err := s.unread.Set(userID, n); err != nil {
		s.log.WithError(err).Warn("Failed to cache unread count")
	}
	return n, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
