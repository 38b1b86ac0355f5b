package handlers

import (
	"github.com/chainsplit/chainsplit-backend/internal/handlers/ws"
	"github.com/chainsplit/chainsplit-backend/internal/service"
	"github.com/chainsplit/chainsplit-backend/pkg/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type WebSocketHandler struct {
	hub            *ws.Hub
	messageService ws.MessageSender
	userService    *service.UserService
	debug          bool
	log            *logrus.Entry
}

func NewWebSocketHandler(hub *ws.Hub, messageService ws.MessageSender, userService *service.UserService, debug bool, log logrus.FieldLogger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		messageService: messageService,
		userService:    userService,
		debug:          debug,
		log:            logger.Component(log, "websocket"),
	}
}

// GetHub returns the hub instance (useful for sending messages from other handlers)
func (h *WebSocketHandler) GetHub() *ws.Hub {
	return h.hub
}

// HandleWebSocket serves one connection until the client goes away. The
// connection joins no room until the client sends join_chains.
func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		_ = c.Close()
		return
	}
	log := h.log.WithField("user_id", userID)

	// Check if client supports gzip compression (via query param or header)
	supportsGzip := c.Query("gzip") == "1" || c.Headers("X-Supports-Gzip") == "1"

	client := h.hub.Connect(userID, c, supportsGzip)
	c.SetPongHandler(func(string) error {
		client.Touch()
		if err := h.userService.Touch(userID); err != nil {
			log.WithError(err).Debug("Presence refresh failed")
		}
		return nil
	})

	if err := h.userService.SetOnline(userID, true); err != nil {
		log.WithError(err).Warn("Failed to set user online")
	}

	defer func() {
		h.hub.Disconnect(client.ID)
		if h.hub.ConnectionsFor(userID) > 0 {
			return
		}
		if err := h.userService.SetOnline(userID, false); err != nil {
			log.WithError(err).Warn("Failed to set user offline")
		}
	}()

	ctx := &ws.MessageContext{
		UserID:   userID,
		Client:   client,
		Hub:      h.hub,
		Messages: h.messageService,
		Presence: h.userService,
	}

	for {
		messageType, messageBytes, err := c.ReadMessage()
		if err != nil {
			log.WithError(err).Debug("Read loop ended")
			break
		}

		if h.debug {
			log.WithFields(logrus.Fields{"frame_type": messageType, "size": len(messageBytes)}).Debug("ws_recv")
		}

		// Decompress if binary message (gzip compressed)
		if messageType == websocket.BinaryMessage {
			decompressed, err := ws.DecompressMessage(messageBytes)
			if err != nil {
				_ = ws.SendError(client, "DECOMPRESSION_FAILED", "Failed to decompress message", err.Error())
				continue
			}
			messageBytes = decompressed
		}

		ws.Dispatch(ctx, messageBytes)
	}
}
