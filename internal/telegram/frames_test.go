package telegram_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhigham/telequeue/internal/telegram"
)

func TestParseFrame_Message(t *testing.T) {
	now := time.Unix(1700000500, 0)
	data := []byte(`{"type":"message","account":"main","chat_id":42,"chat_title":"Ann",
		"message":{"id":7,"from_user_id":42,"text":"hi","date":1700000400,"outgoing":false}}`)

	frame, err := telegram.ParseFrame(data, now)
	require.NoError(t, err)

	mf, ok := frame.(telegram.MessageFrame)
	require.True(t, ok, "got %T", frame)
	assert.Equal(t, int64(42), mf.ChatID)
	assert.Equal(t, "Ann", mf.ChatTitle)
	assert.Equal(t, int64(7), mf.Message.ID)
	assert.Equal(t, int64(42), mf.Message.ChatID)
	assert.Equal(t, int64(42), mf.Message.SenderID)
	assert.Equal(t, "hi", mf.Message.Text)
	assert.Equal(t, time.Unix(1700000400, 0), mf.Message.Timestamp)
	assert.False(t, mf.Message.Out)
	assert.Equal(t, "message", telegram.FrameKind(frame))
}

func TestParseFrame_MessageDefaults(t *testing.T) {
	now := time.Unix(1700000500, 0)

	frame, err := telegram.ParseFrame([]byte(`{"type":"message","chat_id":5,"message":{"id":3,"outgoing":true}}`), now)
	require.NoError(t, err)

	mf, ok := frame.(telegram.MessageFrame)
	require.True(t, ok, "got %T", frame)
	assert.Equal(t, int64(0), mf.Message.SenderID)
	assert.Equal(t, "", mf.Message.Text)
	assert.Equal(t, now, mf.Message.Timestamp)
	assert.True(t, mf.Message.Out)
}

func TestParseFrame_Unknown(t *testing.T) {
	tests := []struct {
		name string
		data string
		typ  string
	}{
		{name: "other type", data: `{"type":"typing","chat_id":1}`, typ: "typing"},
		{name: "no type", data: `{"chat_id":1}`},
		{name: "string chat id", data: `{"type":"message","chat_id":"1","message":{"id":1}}`, typ: "message"},
		{name: "fractional chat id", data: `{"type":"message","chat_id":1.5,"message":{"id":1}}`, typ: "message"},
		{name: "missing message", data: `{"type":"message","chat_id":1}`, typ: "message"},
		{name: "message not an object", data: `{"type":"message","chat_id":1,"message":"hi"}`, typ: "message"},
		{name: "array payload", data: `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := telegram.ParseFrame([]byte(tt.data), time.Now())
			if tt.name == "array payload" {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, telegram.UnknownFrame{Type: tt.typ}, frame)
		})
	}
}

func TestParseFrame_MalformedJSON(t *testing.T) {
	_, err := telegram.ParseFrame([]byte(`{"type":`), time.Now())
	assert.Error(t, err)
}
