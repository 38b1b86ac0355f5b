package models

import (
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/apperr"
	"gorm.io/gorm"
)

type MessageType string

const (
	TextMessage   MessageType = "text"
	ImageMessage  MessageType = "image"
	FileMessage   MessageType = "file"
	SystemMessage MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case TextMessage, ImageMessage, FileMessage, SystemMessage:
		return true
	}
	return false
}

// Delivery kinds pushed to live connections.
const (
	DeliveryDirect = "direct"
	DeliveryChain  = "chain"
)

type Message struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Client-side tracking, used to drop resends of the same message
	ClientID string `gorm:"type:varchar(36);index" json:"client_id,omitempty"`

	SenderID   uint  `gorm:"not null;index" json:"sender_id"`
	Sender     *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReceiverID *uint `gorm:"index" json:"receiver_id"` // null for chain messages
	ChainID    *uint `gorm:"index" json:"chain_id"`    // null for direct messages

	Content string      `gorm:"type:text;not null" json:"content"`
	Type    MessageType `gorm:"type:varchar(20);not null" json:"type"`

	// Read tracking only applies to direct messages
	IsRead bool       `gorm:"not null;default:false" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`

	Metadata map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`
}

// Validate checks the addressing and content rules of a message before it is stored.
func (m *Message) Validate() error {
	hasReceiver := m.ReceiverID != nil && *m.ReceiverID != 0
	hasChain := m.ChainID != nil && *m.ChainID != 0
	switch {
	case hasReceiver && hasChain:
		return apperr.Validation("message must target a receiver or a chain, not both")
	case !hasReceiver && !hasChain:
		return apperr.Validation("message must target a receiver or a chain")
	}
	if m.Content == "" {
		return apperr.Validation("message content is required")
	}
	if !m.Type.Valid() {
		return apperr.Validation("invalid message type %q", m.Type)
	}
	return nil
}

// DeliveryKind returns DeliveryDirect or DeliveryChain.
func (m *Message) DeliveryKind() string {
	if m.ChainID != nil && *m.ChainID != 0 {
		return DeliveryChain
	}
	return DeliveryDirect
}

type MessageResponse struct {
	ID         uint              `json:"id"`
	ClientID   string            `json:"client_id,omitempty"`
	SenderID   uint              `json:"sender_id"`
	Sender     *UserResponse     `json:"sender,omitempty"`
	ReceiverID *uint             `json:"receiver_id"`
	ChainID    *uint             `json:"chain_id"`
	Content    string            `json:"content"`
	Type       MessageType       `json:"type"`
	IsRead     bool              `json:"is_read"`
	ReadAt     *time.Time        `json:"read_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (m *Message) ToResponse() MessageResponse {
	resp := MessageResponse{
		ID:         m.ID,
		ClientID:   m.ClientID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		ChainID:    m.ChainID,
		Content:    m.Content,
		Type:       m.Type,
		IsRead:     m.IsRead,
		ReadAt:     m.ReadAt,
		Metadata:   m.Metadata,
		CreatedAt:  m.CreatedAt,
	}
	if m.Sender != nil {
		s := m.Sender.ToResponse()
		resp.Sender = &s
	}
	return resp
}

// Delivery is the payload pushed to live connections for a new message.
type Delivery struct {
	Type     string          `json:"type"`
	Delivery string          `json:"delivery"`
	Message  MessageResponse `json:"message"`
}

func NewDelivery(m *Message) Delivery {
	return Delivery{
		Type:     "new_message",
		Delivery: m.DeliveryKind(),
		Message:  m.ToResponse(),
	}
}
