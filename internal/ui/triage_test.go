package ui

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhigham/telequeue/internal/domain"
)

func press(s string) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: []rune(s)[0], Text: s}
}

func TestTriageModel_SetQueueKeepsCurrentChat(t *testing.T) {
	m := NewTriageModel().SetQueue([]int64{1, 2, 3})
	m, _ = m.Update(press("n"))

	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, int64(2), current)

	m = m.SetQueue([]int64{5, 2, 1})
	current, _ = m.Current()
	assert.Equal(t, int64(2), current)

	m = m.SetQueue([]int64{9})
	current, _ = m.Current()
	assert.Equal(t, int64(9), current)

	m = m.SetQueue(nil)
	_, ok = m.Current()
	assert.False(t, ok)
}

func TestTriageModel_ActionKeys(t *testing.T) {
	m := NewTriageModel().SetQueue([]int64{7})

	tests := []struct {
		key    string
		action domain.QueueAction
	}{
		{"d", domain.QueueActionDone},
		{"p", domain.QueueActionPostpone},
		{"t", domain.QueueActionTask},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, cmd := m.Update(press(tt.key))
			require.NotNil(t, cmd)
			assert.Equal(t, queueActionMsg{chatID: 7, action: tt.action}, cmd())
		})
	}
}

func TestTriageModel_NavigationFocusesNextChat(t *testing.T) {
	m := NewTriageModel().SetQueue([]int64{1, 2})

	m, cmd := m.Update(press("n"))
	require.NotNil(t, cmd)
	assert.Equal(t, triageFocusMsg{chatID: 2}, cmd())

	// Already at the end.
	_, cmd = m.Update(press("n"))
	assert.Nil(t, cmd)

	m, cmd = m.Update(press("b"))
	require.NotNil(t, cmd)
	assert.Equal(t, triageFocusMsg{chatID: 1}, cmd())
}

func TestTriageModel_EmptyQueueIgnoresKeys(t *testing.T) {
	m := NewTriageModel()
	_, cmd := m.Update(press("d"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.SetSize(60, 10).View(), "Triage queue is empty")
}

func TestTriageModel_SetMessagesKeepsTail(t *testing.T) {
	msgs := make([]domain.Message, 15)
	for i := range msgs {
		msgs[i] = domain.Message{ID: int64(i + 1), Text: "m"}
	}
	m := NewTriageModel().SetMessages(msgs)

	require.Len(t, m.messages, recentLines)
	assert.Equal(t, int64(6), m.messages[0].ID)
}

func TestTriageModel_ReplyTargetsCurrentChat(t *testing.T) {
	m := NewTriageModel().SetQueue([]int64{1, 2})
	m, _ = m.Update(press("n"))

	m, _ = m.Update(press("r"))
	require.True(t, m.Replying())
	m, _ = m.Update(press("y"))
	m, cmd := m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, sendMessageMsg{chatID: 2, text: "y"}, cmd())

	// Action keys type into the reply while it is open.
	m, _ = m.Update(press("d"))
	assert.Equal(t, "d", m.reply.input.Value())

	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	assert.False(t, m.Replying())
}

func TestTriageModel_ReplyFollowsQueueChanges(t *testing.T) {
	m := NewTriageModel().SetQueue([]int64{1, 2})
	m, _ = m.Update(press("r"))
	m, _ = m.Update(press("x"))

	// The current chat left the queue; the draft goes with it.
	m = m.SetQueue([]int64{2})
	assert.Equal(t, int64(2), m.reply.chatID)
	assert.Empty(t, m.reply.input.Value())

	m = m.SetQueue(nil)
	assert.False(t, m.Replying())
}
