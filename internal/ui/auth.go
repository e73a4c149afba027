package ui

import (
	"strconv"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/danhigham/telequeue/internal/domain"
)

var (
	authTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	authErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	authHintStyle  = lipgloss.NewStyle().Foreground(dimColor)
)

// AuthModel is the sign-in screen. Its single input follows the auth step.
// Without stored API credentials it first asks for the API id and hash.
type AuthModel struct {
	input  textinput.Model
	step   domain.AuthStep
	err    string
	busy   bool
	width  int
	height int

	needConfig bool
	apiID      int // entered API id; 0 while asking for it
}

func NewAuthModel() AuthModel {
	ti := textinput.New()
	ti.Prompt = "> "
	m := AuthModel{input: ti, step: -1}
	return m.SetStep(domain.AuthStepPhone, "")
}

// SetStep syncs the screen with the session. Moving to another step
// clears the input.
func (m AuthModel) SetStep(step domain.AuthStep, errText string) AuthModel {
	m.err = errText
	if step == m.step {
		return m
	}
	m.step = step
	m.busy = false
	return m.resetInput()
}

// SetConfigured tells the screen whether API credentials are stored.
func (m AuthModel) SetConfigured(configured bool) AuthModel {
	if m.needConfig == !configured {
		return m
	}
	m.needConfig = !configured
	m.apiID = 0
	m.busy = false
	return m.resetInput()
}

func (m AuthModel) resetInput() AuthModel {
	m.input.Reset()
	m.input.EchoMode = textinput.EchoNormal

	switch {
	case m.needConfig && m.apiID == 0:
		m.input.Placeholder = "123456"
	case m.needConfig:
		m.input.Placeholder = "0123456789abcdef"
	case m.step == domain.AuthStepCode:
		m.input.Placeholder = "12345"
	case m.step == domain.AuthStepPassword:
		m.input.Placeholder = "password"
		m.input.EchoMode = textinput.EchoPassword
	default:
		m.input.Placeholder = "+7 999 123-45-67"
	}
	m.input.Focus()
	return m
}

// Done marks the in-flight submission as finished.
func (m AuthModel) Done() AuthModel {
	m.busy = false
	return m
}

func (m AuthModel) Update(msg tea.Msg) (AuthModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			if m.needConfig {
				return m.submitConfig()
			}
			value := m.input.Value()
			if m.step != domain.AuthStepPassword {
				value = strings.TrimSpace(value)
			}
			if value == "" {
				return m, nil
			}
			m.busy = true
			step := m.step
			return m, func() tea.Msg { return authSubmitMsg{step: step, value: value} }
		case "esc":
			if m.busy {
				return m, nil
			}
			if m.needConfig {
				if m.apiID != 0 {
					m.apiID = 0
					m = m.resetInput()
				}
				return m, nil
			}
			return m, func() tea.Msg { return authBackMsg{} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submitConfig takes the API id first, then the hash.
func (m AuthModel) submitConfig() (AuthModel, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return m, nil
	}
	if m.apiID == 0 {
		id, err := strconv.Atoi(value)
		if err != nil || id <= 0 {
			m.err = "API ID must be a positive number"
			return m, nil
		}
		m.apiID = id
		m.err = ""
		return m.resetInput(), nil
	}

	m.busy = true
	cfg := domain.APIConfig{APIID: m.apiID, APIHash: value}
	return m, func() tea.Msg { return configSubmitMsg{cfg: cfg} }
}

func (m AuthModel) SetSize(w, h int) AuthModel {
	m.width = w
	m.height = h
	m.input.SetWidth(min(max(w-12, 10), 40))
	return m
}

func (m AuthModel) prompt() string {
	switch {
	case m.needConfig && m.apiID == 0:
		return "Enter the API ID from my.telegram.org"
	case m.needConfig:
		return "Enter the API hash"
	}
	switch m.step {
	case domain.AuthStepCode:
		return "Enter the 5 digit code sent to your Telegram app"
	case domain.AuthStepPassword:
		return "Two-factor authentication is on. Enter your password"
	default:
		return "Enter your phone number"
	}
}

func (m AuthModel) View() string {
	lines := []string{
		authTitleStyle.Render("Sign in to telequeue"),
		"",
		m.prompt(),
		m.input.View(),
		"",
	}
	if m.busy {
		lines = append(lines, authHintStyle.Render("Working..."))
	} else if m.err != "" {
		lines = append(lines, authErrStyle.Render(m.err))
	}
	hint := "Enter submit"
	if (m.needConfig && m.apiID != 0) || (!m.needConfig && m.step != domain.AuthStepPhone) {
		hint += "   Esc back"
	}
	lines = append(lines, authHintStyle.Render(hint))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForegroundBlend(rainbowBlend...).
		Padding(1, 3).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
