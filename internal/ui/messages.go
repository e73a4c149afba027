package ui

import (
	"github.com/danhigham/telequeue/internal/domain"
)

// StoreUpdatedMsg signals that the store state has changed.
type StoreUpdatedMsg struct{}

// ChatSelectedMsg is emitted when the user picks a chat.
type ChatSelectedMsg struct {
	ChatID int64
}

// LoadOlderHistoryMsg is emitted when the user scrolls to the top of messages.
type LoadOlderHistoryMsg struct {
	ChatID int64
}

// olderLoadedMsg reports how many older messages were prepended.
type olderLoadedMsg struct {
	chatID int64
	added  int
	err    error
}

// sendMessageMsg is emitted when the user presses Enter in an input.
type sendMessageMsg struct {
	chatID int64
	text   string
}

// gotoContactMsg carries the text typed into the go-to-contact prompt.
type gotoContactMsg struct {
	query string
}

// authSubmitMsg carries the value typed on the auth screen.
type authSubmitMsg struct {
	step  domain.AuthStep
	value string
}

// configSubmitMsg carries the API credentials typed on the auth screen.
type configSubmitMsg struct {
	cfg domain.APIConfig
}

type authBackMsg struct{}

// authResultMsg reports the outcome of an auth step.
type authResultMsg struct {
	err error
}

type restoreDoneMsg struct {
	err error
}

type queueActionMsg struct {
	chatID int64
	action domain.QueueAction
}

// triageFocusMsg is emitted when the triage screen moves to another chat.
type triageFocusMsg struct {
	chatID int64
}

type chatTitleMsg struct {
	chatID int64
	title  string
}

// opErrorMsg reports a failed user action in the status bar.
type opErrorMsg struct {
	op  string
	err error
}

type logoutDoneMsg struct {
	err error
}

// SplashDoneMsg signals that the splash screen minimum time has elapsed.
type SplashDoneMsg struct{}

// clockTickMsg triggers a status bar time refresh.
type clockTickMsg struct{}
