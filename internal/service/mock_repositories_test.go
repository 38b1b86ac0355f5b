package service

import (
	"sort"
	"sync"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/apperr"
	"github.com/chainsplit/chainsplit-backend/internal/models"
)

// MockUserRepository is a map-backed UserRepositoryInterface for tests
type MockUserRepository struct {
	users  map[uint]*models.User
	nextID uint
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[uint]*models.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) Create(user *models.User) error {
	if user.ID == 0 {
		user.ID = m.nextID
		m.nextID++
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) FindByEmail(email string) (*models.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, apperr.NotFound("user with email %q", email)
}

func (m *MockUserRepository) FindByUsername(username string) (*models.User, error) {
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, apperr.NotFound("user %q", username)
}

func (m *MockUserRepository) FindByID(id uint) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, apperr.NotFound("user %d", id)
}

func (m *MockUserRepository) FindByIDs(ids []uint) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if user, ok := m.users[id]; ok {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (m *MockUserRepository) Update(user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return apperr.NotFound("user %d", user.ID)
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) UpdateOnlineStatus(userID uint, isOnline bool) error {
	user, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("user %d", userID)
	}
	user.IsOnline = isOnline
	return nil
}

// MockMessageRepository is a map-backed MessageRepositoryInterface for tests
type MockMessageRepository struct {
	messages map[uint]*models.Message
	users    *MockUserRepository
	nextID   uint
}

func NewMockMessageRepository(users *MockUserRepository) *MockMessageRepository {
	return &MockMessageRepository{
		messages: make(map[uint]*models.Message),
		users:    users,
		nextID:   1,
	}
}

func (m *MockMessageRepository) Create(message *models.Message) error {
	if message.ID == 0 {
		message.ID = m.nextID
		m.nextID++
	}
	message.CreatedAt = time.Now()
	m.messages[message.ID] = message
	return nil
}

func (m *MockMessageRepository) FindByID(id uint) (*models.Message, error) {
	msg, ok := m.messages[id]
	if !ok {
		return nil, apperr.NotFound("message %d", id)
	}
	if m.users != nil {
		if sender, err := m.users.FindByID(msg.SenderID); err == nil {
			msg.Sender = sender
		}
	}
	return msg, nil
}

func (m *MockMessageRepository) FindByClientID(clientID string, senderID uint) (*models.Message, error) {
	for _, msg := range m.messages {
		if msg.ClientID == clientID && msg.SenderID == senderID {
			return msg, nil
		}
	}
	return nil, apperr.NotFound("message with client id %q", clientID)
}

func (m *MockMessageRepository) newestFirst(match func(*models.Message) bool, limit int) []models.Message {
	var out []models.Message
	for _, msg := range m.messages {
		if match(msg) {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *MockMessageRepository) FindDirectConversation(userID, peerID uint, limit int) ([]models.Message, error) {
	return m.newestFirst(func(msg *models.Message) bool {
		if msg.ReceiverID == nil {
			return false
		}
		return (msg.SenderID == userID && *msg.ReceiverID == peerID) ||
			(msg.SenderID == peerID && *msg.ReceiverID == userID)
	}, limit), nil
}

func (m *MockMessageRepository) FindChainMessages(chainID uint, limit int) ([]models.Message, error) {
	return m.newestFirst(func(msg *models.Message) bool {
		return msg.ChainID != nil && *msg.ChainID == chainID
	}, limit), nil
}

func (m *MockMessageRepository) MarkAsRead(messageID uint, readAt time.Time) error {
	msg, ok := m.messages[messageID]
	if !ok {
		return apperr.NotFound("message %d", messageID)
	}
	msg.IsRead = true
	msg.ReadAt = &readAt
	return nil
}

func (m *MockMessageRepository) CountUnreadDirect(userID uint) (int64, error) {
	var n int64
	for _, msg := range m.messages {
		if msg.ReceiverID != nil && *msg.ReceiverID == userID && !msg.IsRead {
			n++
		}
	}
	return n, nil
}

// recordingRouter captures routed messages
type recordingRouter struct {
	mu     sync.Mutex
	routed []*models.Message
}

func (r *recordingRouter) RouteMessage(msg *models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routed = append(r.routed, msg)
}

func (r *recordingRouter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.routed)
}
