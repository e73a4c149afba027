package ui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
)

var (
	// Dark gray background matching the lipgloss example
	statusBarBg = lipgloss.Color("#353533")
	// Bright magenta for the status pill and time highlight
	statusPillBg    = lipgloss.Color("#FF5FAF")
	statusPillBgOff = lipgloss.Color("#6C5098")
	// Teal/cyan for the time pill
	statusTimeBg = lipgloss.Color("#6124DF")
)

type statusModel struct {
	text      string
	online    bool
	chatTitle string
	userName  string
	queueLen  int
	width     int
}

func newStatusModel() statusModel {
	return statusModel{
		text:   "Starting",
		online: false,
	}
}

// SetSession reflects the signed-in state and user.
func (m statusModel) SetSession(online bool, userName string) statusModel {
	if online != m.online {
		if online {
			m.text = "Online"
		} else {
			m.text = "Signed out"
		}
	}
	m.online = online
	m.userName = userName
	return m
}

// SetError shows a failed action until the next one.
func (m statusModel) SetError(op string, err error) statusModel {
	m.text = fmt.Sprintf("%s failed: %v", op, err)
	return m
}

// ClearError restores the plain connection label.
func (m statusModel) ClearError() statusModel {
	if m.online {
		m.text = "Online"
	}
	return m
}

// SetQueueLen updates the triage queue counter.
func (m statusModel) SetQueueLen(n int) statusModel {
	m.queueLen = n
	return m
}

// SetWidth sets the full terminal width for the status bar.
func (m statusModel) SetWidth(w int) statusModel {
	m.width = w
	return m
}

// SetChatTitle updates the active chat name shown on the left.
func (m statusModel) SetChatTitle(title string) statusModel {
	m.chatTitle = title
	return m
}

// View renders a full-width status bar:
// [STATUS pill] [chat title] ... [queue] [user name] [time pill]
func (m statusModel) View() string {
	// Connection status pill
	pillBg := statusPillBgOff
	if m.online {
		pillBg = statusPillBg
	}
	pillStyle := lipgloss.NewStyle().
		Background(pillBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	pill := pillStyle.Render(strings.ToUpper(m.text))

	// Chat title
	titleStyle := lipgloss.NewStyle().
		Background(statusBarBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	title := titleStyle.Render(m.chatTitle)

	// Current time pill
	timeStyle := lipgloss.NewStyle().
		Background(statusTimeBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	timePill := timeStyle.Render(time.Now().Format("15:04"))

	// User name in medium purple, distinct from the bar background
	userStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("#7B5EA7")).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	userPill := userStyle.Render(m.userName)

	queueStyle := lipgloss.NewStyle().
		Background(statusBarBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Padding(0, 1)
	queuePill := queueStyle.Render(fmt.Sprintf("queue %d", m.queueLen))

	// Left side: status + title
	left := pill + title

	// Right side: queue + user + time
	right := queuePill + userPill + timePill

	// Fill gap between left and right
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().
		Background(statusBarBg).
		Render(strings.Repeat(" ", gap))

	barStyle := lipgloss.NewStyle().
		Background(statusBarBg).
		Width(m.width)

	return barStyle.Render(left + filler + right)
}
