package handlers

import (
	"github.com/chainsplit/chainsplit-backend/internal/httpx"
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// SendMessage stores a direct or chain message and pushes it to live recipients.
func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.SendMessageInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	message, err := h.messageService.SendMessage(userID, input)
	if err != nil {
		return httpx.FromError(c, err, "send_message_failed")
	}

	return c.Status(fiber.StatusCreated).JSON(message.ToResponse())
}

func (h *MessageHandler) GetDirectMessages(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	peerID, err := httpx.ParamUint(c, "peerId")
	if err != nil {
		return httpx.BadRequest(c, "invalid_peer_id", "Invalid peer ID")
	}

	messages, err := h.messageService.GetDirectConversation(userID, peerID, c.QueryInt("limit", 0))
	if err != nil {
		return httpx.FromError(c, err, "fetch_messages_failed")
	}
	return c.JSON(messagePage(messages))
}

func (h *MessageHandler) GetChainMessages(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	chainID, err := httpx.ParamUint(c, "chainId")
	if err != nil {
		return httpx.BadRequest(c, "invalid_chain_id", "Invalid chain ID")
	}

	messages, err := h.messageService.GetChainMessages(chainID, userID, c.QueryInt("limit", 0))
	if err != nil {
		return httpx.FromError(c, err, "fetch_messages_failed")
	}
	return c.JSON(messagePage(messages))
}

func (h *MessageHandler) MarkAsRead(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, err := httpx.ParamUint(c, "messageId")
	if err != nil {
		return httpx.BadRequest(c, "invalid_message_id", "Invalid message ID")
	}

	message, err := h.messageService.MarkAsRead(messageID, userID)
	if err != nil {
		return httpx.FromError(c, err, "mark_read_failed")
	}
	return c.JSON(message.ToResponse())
}

func (h *MessageHandler) UnreadCount(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	count, err := h.messageService.UnreadCount(userID)
	if err != nil {
		return httpx.FromError(c, err, "unread_count_failed")
	}
	return c.JSON(fiber.Map{
		"unread": count,
	})
}

// messagePage renders a newest-first page with the cursor for older messages.
func messagePage(messages []models.Message) fiber.Map {
	responses := make([]models.MessageResponse, len(messages))
	for i := range messages {
		responses[i] = messages[i].ToResponse()
	}

	result := fiber.Map{
		"messages": responses,
		"count":    len(messages),
	}
	if len(messages) > 0 {
		result["next_cursor"] = messages[len(messages)-1].ID
	}
	return result
}
