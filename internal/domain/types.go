package domain

import "time"

// APIConfig is the Telegram application credential blob the client persists.
type APIConfig struct {
	APIID   int    `yaml:"api_id"`
	APIHash string `yaml:"api_hash"`
	Test    bool   `yaml:"test"`
}

type UserProfile struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	Phone     string
}

// DisplayName returns the best human-readable name for the user.
func (u UserProfile) DisplayName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Unknown"
}

type ChatKind string

const (
	ChatKindPrivate    ChatKind = "private"
	ChatKindGroup      ChatKind = "group"
	ChatKindSupergroup ChatKind = "supergroup"
	ChatKindChannel    ChatKind = "channel"
)

type Chat struct {
	ID          int64
	Title       string
	Kind        ChatKind
	Username    string
	PhotoRef    string
	UnreadCount int
	LastMessage *Message
}

type Message struct {
	ID        int64
	ChatID    int64
	SenderID  int64
	Text      string
	Timestamp time.Time
	Out       bool // true if sent by us
	ReplyTo   *Message
	Edited    bool

	// LocalRef is the correlation token of an optimistic send that has not
	// been matched with its server copy yet.
	LocalRef string
}

// Pending reports whether the message is an unconfirmed optimistic send.
func (m Message) Pending() bool {
	return m.LocalRef != ""
}

type AuthStep int

const (
	AuthStepPhone AuthStep = iota
	AuthStepCode
	AuthStepPassword
	AuthStepAuthenticated
)

func (s AuthStep) String() string {
	switch s {
	case AuthStepPhone:
		return "phone"
	case AuthStepCode:
		return "code"
	case AuthStepPassword:
		return "password"
	case AuthStepAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// QueueAction is a triage decision applied to a queued chat.
type QueueAction string

const (
	QueueActionDone     QueueAction = "done"
	QueueActionPostpone QueueAction = "postpone"
	QueueActionTask     QueueAction = "task"
)

func (a QueueAction) Valid() bool {
	switch a {
	case QueueActionDone, QueueActionPostpone, QueueActionTask:
		return true
	default:
		return false
	}
}

// ContactQuery identifies a contact by exactly one of its fields.
type ContactQuery struct {
	UserID   int64
	Phone    string
	Username string
}

// Validate checks that exactly one identifier is supplied.
func (q ContactQuery) Validate() error {
	n := 0
	if q.UserID != 0 {
		n++
	}
	if q.Phone != "" {
		n++
	}
	if q.Username != "" {
		n++
	}
	if n != 1 {
		return &ValidationError{Field: "contact", Message: "exactly one of user id, phone or username is required"}
	}
	return nil
}

type ResolvedContact struct {
	UserID int64
	ChatID int64
}
