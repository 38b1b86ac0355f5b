package ws

import (
	"encoding/json"
	"errors"
)

func Serialize(msg Message) ([]byte, error) {
	payload, err := ToJson(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(SerializedMessage{
		Type:    msg.GetType(),
		Payload: payload,
	})
}

func Deserialize(jsonBytes []byte) (Message, error) {
	var wrapper SerializedMessage
	if err := json.Unmarshal(jsonBytes, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Type == "" {
		return nil, errors.New("message type is required")
	}
	return DeserializeSerializedMessage(&wrapper)
}

func DeserializeSerializedMessage(wrapper *SerializedMessage) (Message, error) {
	msg, err := CreateMessage(wrapper.Type, typeRegistry)
	if err != nil {
		return nil, err
	}
	if err := FromJson(wrapper.Payload, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Dispatch decodes one inbound frame and runs it. Failures are answered on
// the same connection and never close it.
func Dispatch(ctx *MessageContext, frame []byte) {
	msg, err := Deserialize(frame)
	if err != nil {
		_ = SendError(ctx.Client, "INVALID_MESSAGE", "could not decode message", err.Error())
		return
	}
	if err := msg.Process(ctx); err != nil {
		_ = SendError(ctx.Client, ErrorCode(err), "failed to process "+msg.GetType(), err.Error())
	}
}
