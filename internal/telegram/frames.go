package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danhigham/telequeue/internal/domain"
)

// Frame is a parsed live-update frame: a MessageFrame or an UnknownFrame.
type Frame interface {
	frameKind() string
}

// MessageFrame carries one message pushed for a chat.
type MessageFrame struct {
	ChatID    int64
	ChatTitle string
	Message   domain.Message
}

// UnknownFrame is any well-formed frame of a shape the client does not handle.
type UnknownFrame struct {
	Type string
}

func (MessageFrame) frameKind() string { return "message" }
func (UnknownFrame) frameKind() string { return "unknown" }

// FrameKind names the variant of f for logs and metrics.
func FrameKind(f Frame) string {
	return f.frameKind()
}

type rawFrame struct {
	Type      json.RawMessage `json:"type"`
	ChatID    json.RawMessage `json:"chat_id"`
	ChatTitle json.RawMessage `json:"chat_title"`
	Message   json.RawMessage `json:"message"`
}

// ParseFrame decodes one socket payload. Only invalid JSON is an error;
// every other unexpected shape becomes an UnknownFrame.
func ParseFrame(data []byte, now time.Time) (Frame, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	var typ string
	if err := json.Unmarshal(raw.Type, &typ); err != nil || typ != "message" {
		return UnknownFrame{Type: typ}, nil
	}

	chatID, ok := jsonInt(raw.ChatID)
	if !ok {
		return UnknownFrame{Type: typ}, nil
	}

	var payload messageJSON
	if len(raw.Message) == 0 || json.Unmarshal(raw.Message, &payload) != nil || payload.ID == 0 {
		return UnknownFrame{Type: typ}, nil
	}

	var title string
	_ = json.Unmarshal(raw.ChatTitle, &title)

	return MessageFrame{
		ChatID:    chatID,
		ChatTitle: title,
		Message:   payload.toMessage(chatID, now),
	}, nil
}

// jsonInt accepts only an integral JSON number.
func jsonInt(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	id, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return id, true
}
