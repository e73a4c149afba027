package ui

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// InputModel is a message composer bound to one chat.
type InputModel struct {
	input   textinput.Model
	chatID  int64
	focused bool
	width   int
	height  int
}

func NewInputModel() InputModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	return InputModel{input: ti}
}

func (m InputModel) Update(msg tea.Msg) (InputModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.chatID == 0 {
			return m, nil
		}
		m.input.Reset()
		chatID := m.chatID
		return m, func() tea.Msg { return sendMessageMsg{chatID: chatID, text: text} }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m InputModel) View() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	style = applyBorderColor(style, m.focused)

	return style.Render(m.input.View())
}

func (m InputModel) SetSize(w, h int) InputModel {
	m.width = w
	m.height = h
	m.input.SetWidth(max(w-4, 1))
	return m
}

func (m InputModel) SetFocused(f bool) InputModel {
	m.focused = f
	if f {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
	return m
}

// SetChat binds the composer to chatID. Switching chats clears the draft.
func (m InputModel) SetChat(chatID int64) InputModel {
	if chatID != m.chatID {
		m.input.Reset()
	}
	m.chatID = chatID
	return m
}
