package ui

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// GotoModel is the go-to-contact prompt overlay.
type GotoModel struct {
	input         textinput.Model
	visible       bool
	width, height int
}

func NewGotoModel() GotoModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "user id, +phone or @username"
	ti.SetWidth(32)
	return GotoModel{input: ti}
}

func (m GotoModel) IsVisible() bool {
	return m.visible
}

// Open shows an empty prompt.
func (m GotoModel) Open() GotoModel {
	m.visible = true
	m.input.Reset()
	m.input.Focus()
	return m
}

func (m GotoModel) Close() GotoModel {
	m.visible = false
	m.input.Blur()
	return m
}

func (m GotoModel) SetSize(w, h int) GotoModel {
	m.width = w
	m.height = h
	return m
}

func (m GotoModel) Update(msg tea.Msg) (GotoModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			return m, nil
		}
		m = m.Close()
		return m, func() tea.Msg { return gotoContactMsg{query: query} }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m GotoModel) View() string {
	if !m.visible {
		return ""
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		authTitleStyle.Render("Go to contact"),
		"",
		m.input.View(),
		"",
		authHintStyle.Render("Enter open   Esc cancel"),
	)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 3).
		BorderForegroundBlend(rainbowBlend...).
		Render(body)
}

// BoxOffset returns the (x, y) that centers the prompt.
func (m GotoModel) BoxOffset() (int, int) {
	box := m.View()
	x := max((m.width-lipgloss.Width(box))/2, 0)
	y := max((m.height-lipgloss.Height(box))/2, 0)
	return x, y
}
