package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/chainsplit/chainsplit-backend/internal/apperr"
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/internal/service"
)

var errUnknownConnection = errors.New("unknown connection")

// MessageSender is the part of the message service the socket uses.
type MessageSender interface {
	SendMessage(senderID uint, input service.SendMessageInput) (*models.Message, error)
	MarkAsRead(messageID, userID uint) (*models.Message, error)
}

// Presence is refreshed on every client heartbeat.
type Presence interface {
	Touch(userID uint) error
}

// MessageContext provides all dependencies needed for message processing
type MessageContext struct {
	UserID   uint
	Client   *ClientConnection
	Hub      *Hub
	Messages MessageSender
	Presence Presence
}

// Message interface for all WebSocket message types
type Message interface {
	GetType() string
	Process(ctx *MessageContext) error
}

// SerializedMessage is the wire format wrapper
type SerializedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorResponse is sent when message processing fails
type ErrorResponse struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func ToJson(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func FromJson(jsonBytes []byte, msg Message) error {
	if len(jsonBytes) == 0 || string(jsonBytes) == "null" {
		return nil
	}
	return json.Unmarshal(jsonBytes, msg)
}

func CreateMessage(msgType string, typeRegistry map[string]reflect.Type) (Message, error) {
	msgTypeReflect, ok := typeRegistry[msgType]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %s", msgType)
	}

	instance := reflect.New(msgTypeReflect).Interface()
	return instance.(Message), nil
}

// SendError sends an error response to the client
func SendError(client *ClientConnection, code, message, details string) error {
	return client.WriteJSON(ErrorResponse{
		Type:    "error",
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// ErrorCode names the error kind for clients.
func ErrorCode(err error) string {
	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return "VALIDATION_ERROR"
	case apperr.ErrUnauthorized:
		return "UNAUTHORIZED"
	case apperr.ErrNotFound:
		return "NOT_FOUND"
	case apperr.ErrInvariantViolation:
		return "INVARIANT_VIOLATION"
	}
	return "PROCESSING_ERROR"
}
