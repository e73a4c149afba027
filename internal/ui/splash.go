package ui

import "charm.land/lipgloss/v2"

const splashArt = `
 _       _
| |_ ___| | ___  __ _ _   _  ___ _   _  ___
| __/ _ \ |/ _ \/ _` + "`" + ` | | | |/ _ \ | | |/ _ \
| ||  __/ |  __/ (_| | |_| |  __/ |_| |  __/
 \__\___|_|\___|\__, |\__,_|\___|\__,_|\___|
                   |_|
`

// SplashModel renders a centered splash overlay on startup.
// It stays up for the minimum duration and until the saved session
// has been restored, whichever is later.
type SplashModel struct {
	visible       bool
	timerDone     bool
	restored      bool
	width, height int
}

// NewSplashModel creates a visible splash.
func NewSplashModel() SplashModel {
	return SplashModel{visible: true}
}

// SetSize updates the terminal dimensions for centering.
func (s SplashModel) SetSize(w, h int) SplashModel {
	s.width = w
	s.height = h
	return s
}

// IsVisible reports whether the splash is still showing.
func (s SplashModel) IsVisible() bool {
	return s.visible
}

// TimerDone marks the minimum display duration as elapsed.
func (s SplashModel) TimerDone() SplashModel {
	s.timerDone = true
	if s.restored {
		s.visible = false
	}
	return s
}

// Restored marks the silent sign-in attempt as finished.
func (s SplashModel) Restored() SplashModel {
	s.restored = true
	if s.timerDone {
		s.visible = false
	}
	return s
}

// View renders the splash box centered to the full terminal.
func (s SplashModel) View() string {
	if !s.visible || s.width == 0 || s.height == 0 {
		return ""
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(highlightColor).
		Padding(1, 3).
		Render(splashArt)

	return lipgloss.Place(s.width, s.height, lipgloss.Center, lipgloss.Center, box)
}
