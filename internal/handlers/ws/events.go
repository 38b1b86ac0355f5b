package ws

import (
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/internal/service"
)

// MessageJoinChains asks the hub to place the connection in the rooms of the
// caller's chains. The user is always the authenticated one.
type MessageJoinChains struct{}

func (msg *MessageJoinChains) GetType() string {
	return "join_chains"
}

func (msg *MessageJoinChains) Process(ctx *MessageContext) error {
	chainIDs, err := ctx.Hub.JoinChains(ctx.UserID, ctx.Client.ID)
	if err != nil {
		return err
	}
	if chainIDs == nil {
		chainIDs = []uint{}
	}
	return ctx.Client.WriteJSON(map[string]interface{}{
		"type":      "chains_joined",
		"chain_ids": chainIDs,
	})
}

// MessageSend stores and routes a direct or chain message.
type MessageSend struct {
	ClientID   string             `json:"client_id"`
	ReceiverID *uint              `json:"receiver_id"`
	ChainID    *uint              `json:"chain_id"`
	Content    string             `json:"content"`
	Type       models.MessageType `json:"type"`
	Metadata   map[string]string  `json:"metadata,omitempty"`
}

func (msg *MessageSend) GetType() string {
	return "send_message"
}

func (msg *MessageSend) Process(ctx *MessageContext) error {
	stored, err := ctx.Messages.SendMessage(ctx.UserID, service.SendMessageInput{
		ClientID:   msg.ClientID,
		ReceiverID: msg.ReceiverID,
		ChainID:    msg.ChainID,
		Content:    msg.Content,
		Type:       msg.Type,
		Metadata:   msg.Metadata,
	})
	if err != nil {
		return err
	}
	return ctx.Client.WriteJSON(map[string]interface{}{
		"type":      "message_ack",
		"client_id": msg.ClientID,
		"message":   stored.ToResponse(),
	})
}

// MessageRead marks a direct message read and tells its sender.
type MessageRead struct {
	MessageID uint `json:"message_id"`
}

func (msg *MessageRead) GetType() string {
	return "mark_read"
}

func (msg *MessageRead) Process(ctx *MessageContext) error {
	message, err := ctx.Messages.MarkAsRead(msg.MessageID, ctx.UserID)
	if err != nil {
		return err
	}

	receipt := map[string]interface{}{
		"type":       "message_read",
		"message_id": message.ID,
		"reader_id":  ctx.UserID,
		"read_at":    message.ReadAt,
	}
	if message.ChainID == nil && message.SenderID != ctx.UserID {
		ctx.Hub.SendToUser(message.SenderID, receipt)
	}
	return ctx.Client.WriteJSON(receipt)
}
