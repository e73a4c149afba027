package ui

import (
	"fmt"
	"slices"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/danhigham/telequeue/internal/domain"
)

// recentLines is how many messages of the current chat the triage screen shows.
const recentLines = 10

// TriageModel walks the triage queue one chat at a time. Its reply input
// always targets the chat on screen.
type TriageModel struct {
	queue    []int64
	index    int
	titles   map[int64]string
	messages []domain.Message
	reply    InputModel
	replying bool
	width    int
	height   int
}

func NewTriageModel() TriageModel {
	return TriageModel{titles: map[int64]string{}, reply: NewInputModel()}
}

// SetQueue replaces the queue, staying on the current chat while it is queued.
func (m TriageModel) SetQueue(queue []int64) TriageModel {
	current, ok := m.Current()
	m.queue = slices.Clone(queue)
	if i := slices.Index(m.queue, current); ok && i >= 0 {
		m.index = i
	} else {
		m.index = min(m.index, max(len(m.queue)-1, 0))
	}
	return m.bindReply()
}

// bindReply points the reply input at the current chat.
func (m TriageModel) bindReply() TriageModel {
	current, ok := m.Current()
	if !ok {
		m.replying = false
		m.reply = m.reply.SetFocused(false)
	}
	m.reply = m.reply.SetChat(current)
	return m
}

// Replying reports whether keys go to the reply input.
func (m TriageModel) Replying() bool {
	return m.replying
}

// Current returns the chat the screen is on.
func (m TriageModel) Current() (int64, bool) {
	if m.index < 0 || m.index >= len(m.queue) {
		return 0, false
	}
	return m.queue[m.index], true
}

func (m TriageModel) HasTitle(chatID int64) bool {
	_, ok := m.titles[chatID]
	return ok
}

func (m TriageModel) SetTitle(chatID int64, title string) TriageModel {
	m.titles[chatID] = title
	return m
}

// SetMessages shows the tail of the current chat.
func (m TriageModel) SetMessages(msgs []domain.Message) TriageModel {
	if len(msgs) > recentLines {
		msgs = msgs[len(msgs)-recentLines:]
	}
	m.messages = msgs
	return m
}

func (m TriageModel) SetSize(w, h int) TriageModel {
	m.width = w
	m.height = h
	m.reply = m.reply.SetSize(w, inputRenderedHeight)
	return m
}

func (m TriageModel) Update(msg tea.Msg) (TriageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	current, ok := m.Current()
	if !ok {
		return m, nil
	}

	if m.replying {
		if key.String() == "esc" {
			m.replying = false
			m.reply = m.reply.SetFocused(false)
			return m, nil
		}
		var cmd tea.Cmd
		m.reply, cmd = m.reply.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "r":
		m.replying = true
		m.reply = m.reply.SetFocused(true)
		return m, nil
	case "d":
		return m, actionCmd(current, domain.QueueActionDone)
	case "p":
		return m, actionCmd(current, domain.QueueActionPostpone)
	case "t":
		return m, actionCmd(current, domain.QueueActionTask)
	case "n", "right", "down":
		if m.index < len(m.queue)-1 {
			m.index++
		}
	case "b", "left", "up":
		if m.index > 0 {
			m.index--
		}
	default:
		return m, nil
	}

	next, _ := m.Current()
	if next == current {
		return m, nil
	}
	m.messages = nil
	m = m.bindReply()
	return m, func() tea.Msg { return triageFocusMsg{chatID: next} }
}

func actionCmd(chatID int64, action domain.QueueAction) tea.Cmd {
	return func() tea.Msg { return queueActionMsg{chatID: chatID, action: action} }
}

func (m TriageModel) View() string {
	var b strings.Builder

	current, ok := m.Current()
	if !ok {
		b.WriteString(queueHeaderStyle.Render("Triage queue is empty"))
		b.WriteString("\n\n")
		b.WriteString(daySeparatorStyle.Render("New inbound messages refresh it automatically."))
	} else {
		title, known := m.titles[current]
		if !known {
			title = fmt.Sprintf("Chat %d", current)
		}
		header := fmt.Sprintf("%s  (%d/%d)", title, m.index+1, len(m.queue))
		b.WriteString(queueHeaderStyle.Render(header))
		b.WriteString("\n\n")

		if len(m.messages) == 0 {
			b.WriteString(daySeparatorStyle.Render("No messages loaded"))
			b.WriteString("\n")
		}
		for _, msg := range m.messages {
			name := inNameStyle.Render(title + ":")
			if msg.Out {
				name = outNameStyle.Render("You:")
			}
			fmt.Fprintf(&b, "%s %s %s\n", timeStyle.Render(msg.Timestamp.Format("15:04")), name, firstLine(msg.Text))
		}
		b.WriteString("\n")
		b.WriteString(daySeparatorStyle.Render("d done   p postpone   t task   r reply   n/b next/previous   Ctrl+T back"))
	}

	boxH := max(m.height-inputRenderedHeight, 2)
	innerH := max(boxH-2, 0)
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(m.width).
		Height(boxH)
	style = applyBorderColor(style, !m.replying)

	return lipgloss.JoinVertical(lipgloss.Left, style.Render(truncateHeight(b.String(), innerH)), m.reply.View())
}
