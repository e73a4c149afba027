package ui

import (
	"context"
	"errors"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/danhigham/telequeue/internal/chats"
	"github.com/danhigham/telequeue/internal/domain"
	"github.com/danhigham/telequeue/internal/queue"
	"github.com/danhigham/telequeue/internal/state"
)

// AuthFlow is the sign-in state machine as seen by the UI.
type AuthFlow interface {
	Restore(ctx context.Context) error
	SubmitConfig(ctx context.Context, cfg domain.APIConfig) error
	RequestCode(ctx context.Context, phone string) error
	SubmitCode(ctx context.Context, code string) error
	SubmitPassword(ctx context.Context, password string) error
	GoBack()
	Logout() error
}

// ChatOps are the chat operations the UI triggers.
type ChatOps interface {
	OpenChat(ctx context.Context, chatID int64) error
	LoadOlder(ctx context.Context, chatID int64) (int, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	ChatTitle(ctx context.Context, chatID int64) string
	ResolveContact(ctx context.Context, q domain.ContactQuery) (domain.ResolvedContact, error)
}

// QueueOps are the triage queue operations the UI triggers.
type QueueOps interface {
	Refresh(ctx context.Context, trigger string) error
	Act(ctx context.Context, chatID int64, action domain.QueueAction) error
}

// Services bundles what the UI drives.
type Services struct {
	Auth  AuthFlow
	Chats ChatOps
	Queue QueueOps
}

type focusTarget int

const (
	focusChatList focusTarget = iota
	focusMessages
	focusInput
)

const chatListWidth = 36

// inputRenderedHeight is the total height of the input box (1 inner + 2 border).
const inputRenderedHeight = 3

// statusBarHeight is the single bottom row used by the status bar.
const statusBarHeight = 1

// Model is the root Bubble Tea model.
type Model struct {
	chatList    ChatListModel
	messageView MessageViewModel
	input       InputModel
	auth        AuthModel
	triage      TriageModel
	status      statusModel
	help        HelpModel
	gotoBox     GotoModel
	splash      SplashModel

	ctx   context.Context
	store *state.Store
	svc   Services

	online     bool
	triageOpen bool
	focus      focusTarget
	width      int
	height     int
}

// NewModel creates the root model with all sub-components.
func NewModel(ctx context.Context, store *state.Store, svc Services) Model {
	return Model{
		chatList:    NewChatListModel(),
		messageView: NewMessageViewModel(),
		input:       NewInputModel(),
		auth:        NewAuthModel(),
		triage:      NewTriageModel(),
		status:      newStatusModel(),
		help:        NewHelpModel(),
		gotoBox:     NewGotoModel(),
		splash:      NewSplashModel(),
		ctx:         ctx,
		store:       store,
		svc:         svc,
		focus:       focusChatList,
	}
}

func (m Model) Init() tea.Cmd {
	auth := m.svc.Auth
	ctx := m.ctx
	return tea.Batch(
		func() tea.Msg { return restoreDoneMsg{err: auth.Restore(ctx)} },
		tea.Tick(time.Second, func(time.Time) tea.Msg { return SplashDoneMsg{} }),
		clockTick(),
	)
}

func clockTick() tea.Cmd {
	return tea.Tick(30*time.Second, func(time.Time) tea.Msg { return clockTickMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.distributeSize()
		return m, nil

	case StoreUpdatedMsg:
		return m.refreshFromStore()

	case restoreDoneMsg:
		m.splash = m.splash.Restored()
		return m.refreshFromStore()

	case SplashDoneMsg:
		m.splash = m.splash.TimerDone()
		return m, nil

	case clockTickMsg:
		return m, clockTick()

	case authSubmitMsg:
		return m, m.submitAuth(msg)

	case configSubmitMsg:
		auth, ctx, cfg := m.svc.Auth, m.ctx, msg.cfg
		return m, func() tea.Msg { return authResultMsg{err: auth.SubmitConfig(ctx, cfg)} }

	case authBackMsg:
		m.svc.Auth.GoBack()
		return m, nil

	case authResultMsg:
		m.auth = m.auth.Done()
		return m, nil

	case ChatSelectedMsg:
		st := m.store.Snapshot()
		cmds := []tea.Cmd{m.openChat(msg.ChatID)}
		title := ""
		if c, ok := st.Chat(msg.ChatID); ok {
			title = c.Title
		} else {
			// Contacts reached through the prompt may be outside the chat list.
			cmds = append(cmds, m.chatTitle(msg.ChatID))
		}
		m.messageView = m.messageView.SetChat(msg.ChatID, title)
		m.messageView = m.messageView.Sync(st.MessagesFor(msg.ChatID))
		m.input = m.input.SetChat(msg.ChatID)
		m.status = m.status.SetChatTitle(title)
		m.focus = focusInput
		m = m.updateFocus()
		return m, tea.Batch(cmds...)

	case gotoContactMsg:
		q, err := chats.ParseContactQuery(msg.query)
		if err != nil {
			m.status = m.status.SetError("Go to contact", err)
			return m, nil
		}
		ops, ctx := m.svc.Chats, m.ctx
		m.status = m.status.ClearError()
		return m, func() tea.Msg {
			res, err := ops.ResolveContact(ctx, q)
			if err != nil {
				return opErrorMsg{op: "Go to contact", err: err}
			}
			return ChatSelectedMsg{ChatID: res.ChatID}
		}

	case LoadOlderHistoryMsg:
		if msg.ChatID != m.messageView.chatID {
			return m, nil
		}
		m.messageView = m.messageView.SetLoading(true)
		ops, ctx, chatID := m.svc.Chats, m.ctx, msg.ChatID
		return m, func() tea.Msg {
			added, err := ops.LoadOlder(ctx, chatID)
			return olderLoadedMsg{chatID: chatID, added: added, err: err}
		}

	case olderLoadedMsg:
		if msg.chatID == m.messageView.chatID {
			m.messageView = m.messageView.OlderLoaded(msg.added)
		}
		return m, nil

	case sendMessageMsg:
		if msg.chatID == 0 {
			return m, nil
		}
		ops, ctx, chatID, text := m.svc.Chats, m.ctx, msg.chatID, msg.text
		m.status = m.status.ClearError()
		return m, func() tea.Msg {
			if err := ops.SendMessage(ctx, chatID, text); err != nil {
				return opErrorMsg{op: "Send", err: err}
			}
			return nil
		}

	case queueActionMsg:
		ops, ctx := m.svc.Queue, m.ctx
		return m, func() tea.Msg {
			if err := ops.Act(ctx, msg.chatID, msg.action); err != nil {
				return opErrorMsg{op: "Queue " + string(msg.action), err: err}
			}
			return nil
		}

	case triageFocusMsg:
		return m, m.focusTriage(msg.chatID)

	case chatTitleMsg:
		m.triage = m.triage.SetTitle(msg.chatID, msg.title)
		if msg.chatID == m.messageView.chatID && m.messageView.chatTitle == "" {
			m.messageView = m.messageView.SetChat(msg.chatID, msg.title)
			m.status = m.status.SetChatTitle(msg.title)
		}
		return m, nil

	case opErrorMsg:
		m.status = m.status.SetError(msg.op, msg.err)
		return m, nil

	case logoutDoneMsg:
		if msg.err != nil {
			m.status = m.status.SetError("Logout", msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.splash.IsVisible() {
		return m, nil
	}

	if key == "f1" || (key == "esc" && m.help.IsVisible()) {
		m.help = m.help.Toggle()
		return m, nil
	}
	if m.help.IsVisible() {
		return m, nil
	}

	if !m.online {
		var cmd tea.Cmd
		m.auth, cmd = m.auth.Update(msg)
		return m, cmd
	}

	if m.gotoBox.IsVisible() {
		if key == "esc" {
			m.gotoBox = m.gotoBox.Close()
			return m, nil
		}
		var cmd tea.Cmd
		m.gotoBox, cmd = m.gotoBox.Update(msg)
		return m, cmd
	}

	switch key {
	case "ctrl+l":
		auth := m.svc.Auth
		m.triageOpen = false
		return m, func() tea.Msg { return logoutDoneMsg{err: auth.Logout()} }
	case "ctrl+t":
		m.triageOpen = !m.triageOpen
		if !m.triageOpen {
			return m, nil
		}
		cmds := []tea.Cmd{m.refreshQueue()}
		if current, ok := m.triage.Current(); ok {
			cmds = append(cmds, m.focusTriage(current))
		}
		return m, tea.Batch(cmds...)
	}

	if m.triageOpen {
		if key == "esc" && !m.triage.Replying() {
			m.triageOpen = false
			return m, nil
		}
		var cmd tea.Cmd
		m.triage, cmd = m.triage.Update(msg)
		return m, cmd
	}

	switch key {
	case "ctrl+g":
		m.gotoBox = m.gotoBox.Open()
		return m, nil
	case "q":
		if m.focus != focusInput {
			return m, tea.Quit
		}
	case "tab":
		m.focus = (m.focus + 1) % 3
		m = m.updateFocus()
		return m, nil
	case "shift+tab":
		m.focus = (m.focus + 2) % 3
		m = m.updateFocus()
		return m, nil
	case "esc":
		m.focus = focusChatList
		m = m.updateFocus()
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusChatList:
		m.chatList, cmd = m.chatList.Update(msg)
	case focusMessages:
		m.messageView, cmd = m.messageView.Update(msg)
	case focusInput:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) submitAuth(msg authSubmitMsg) tea.Cmd {
	auth, ctx := m.svc.Auth, m.ctx
	return func() tea.Msg {
		var err error
		switch msg.step {
		case domain.AuthStepPhone:
			err = auth.RequestCode(ctx, msg.value)
		case domain.AuthStepCode:
			err = auth.SubmitCode(ctx, msg.value)
		case domain.AuthStepPassword:
			err = auth.SubmitPassword(ctx, msg.value)
		}
		return authResultMsg{err: err}
	}
}

func (m Model) openChat(chatID int64) tea.Cmd {
	ops, ctx := m.svc.Chats, m.ctx
	return func() tea.Msg {
		if err := ops.OpenChat(ctx, chatID); err != nil {
			return opErrorMsg{op: "Open chat", err: err}
		}
		return nil
	}
}

func (m Model) refreshQueue() tea.Cmd {
	ops, ctx := m.svc.Queue, m.ctx
	return func() tea.Msg {
		_ = ops.Refresh(ctx, queue.TriggerManual)
		return nil
	}
}

// focusTriage loads the messages and title of a queued chat.
func (m Model) focusTriage(chatID int64) tea.Cmd {
	cmds := []tea.Cmd{m.openChat(chatID)}
	if !m.triage.HasTitle(chatID) {
		cmds = append(cmds, m.chatTitle(chatID))
	}
	return tea.Batch(cmds...)
}

func (m Model) chatTitle(chatID int64) tea.Cmd {
	ops, ctx := m.svc.Chats, m.ctx
	return func() tea.Msg {
		return chatTitleMsg{chatID: chatID, title: ops.ChatTitle(ctx, chatID)}
	}
}

func (m Model) refreshFromStore() (Model, tea.Cmd) {
	st := m.store.Snapshot()
	var cmds []tea.Cmd

	wasOnline := m.online
	m.online = st.Session.Step == domain.AuthStepAuthenticated
	userName := ""
	if st.Session.User != nil {
		userName = st.Session.User.DisplayName()
	}
	m.status = m.status.SetSession(m.online, userName).SetQueueLen(len(st.Queue))
	m.auth = m.auth.SetStep(st.Session.Step, st.Session.Error).SetConfigured(st.Session.Config != nil)

	if !m.online {
		m.triageOpen = false
		m.gotoBox = m.gotoBox.Close()
		m.messageView = m.messageView.SetChat(0, "")
		m.input = m.input.SetChat(0)
		m.status = m.status.SetChatTitle("")
	}
	if m.online && !wasOnline {
		m.focus = focusChatList
		m = m.updateFocus()
	}

	m.chatList = m.chatList.WithItems(st.Chats, st.ActiveChat)

	if active := st.ActiveChat; active != 0 && m.messageView.chatID == active {
		m.messageView = m.messageView.Sync(st.MessagesFor(active))
	}

	// Auto-select the first chat if none is active yet.
	if m.online && st.ActiveChat == 0 && m.messageView.chatID == 0 && len(st.Chats) > 0 {
		first := st.Chats[0].ID
		cmds = append(cmds, func() tea.Msg { return ChatSelectedMsg{ChatID: first} })
	}

	// Live frames name chats that may be missing from the private-only list.
	if in := st.LastIncoming; in.ChatTitle != "" && !m.triage.HasTitle(in.ChatID) {
		m.triage = m.triage.SetTitle(in.ChatID, in.ChatTitle)
	}

	prev, hadPrev := m.triage.Current()
	m.triage = m.triage.SetQueue(st.Queue)
	if current, ok := m.triage.Current(); ok {
		m.triage = m.triage.SetMessages(st.MessagesFor(current))
		if m.triageOpen && (!hadPrev || prev != current) {
			cmds = append(cmds, m.focusTriage(current))
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if m.splash.IsVisible() {
		v.SetContent(m.splash.View())
		return v
	}

	if !m.online {
		v.SetContent(m.auth.View())
		return v
	}

	var body string
	if m.triageOpen {
		body = m.triage.View()
	} else {
		// Right pane: messages + input stacked vertically
		rightPane := lipgloss.JoinVertical(lipgloss.Left, m.messageView.View(), m.input.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.chatList.View(), rightPane)
	}
	full := lipgloss.JoinVertical(lipgloss.Left, body, m.status.View())

	// Clamp to terminal dimensions
	mainContent := lipgloss.NewStyle().
		MaxWidth(m.width).
		MaxHeight(m.height).
		Render(full)

	var overlay string
	var x, y int
	switch {
	case m.help.IsVisible():
		overlay = m.help.View()
		x, y = m.help.BoxOffset()
	case m.gotoBox.IsVisible():
		overlay = m.gotoBox.View()
		x, y = m.gotoBox.BoxOffset()
	default:
		v.SetContent(mainContent)
		return v
	}

	bg := lipgloss.NewLayer(mainContent)
	fg := lipgloss.NewLayer(overlay).X(x).Y(y).Z(1)
	v.SetContent(lipgloss.NewCompositor(bg, fg).Render())
	return v
}

func (m Model) distributeSize() Model {
	contentHeight := m.height - statusBarHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	// Chat list: fixed width, full height
	clWidth := chatListWidth
	if clWidth > m.width {
		clWidth = m.width
	}
	m.chatList = m.chatList.SetSize(clWidth, contentHeight)

	// Right pane: remaining width
	rightWidth := m.width - clWidth
	if rightWidth < 1 {
		rightWidth = 1
	}

	// Input gets fixed height, messages get the rest
	messagesHeight := contentHeight - inputRenderedHeight
	if messagesHeight < 1 {
		messagesHeight = 1
	}

	m.messageView = m.messageView.SetSize(rightWidth, messagesHeight)
	m.input = m.input.SetSize(rightWidth, inputRenderedHeight)
	m.triage = m.triage.SetSize(m.width, contentHeight)
	m.status = m.status.SetWidth(m.width)

	m.auth = m.auth.SetSize(m.width, m.height)
	m.help = m.help.SetSize(m.width, m.height)
	m.gotoBox = m.gotoBox.SetSize(m.width, m.height)
	m.splash = m.splash.SetSize(m.width, m.height)

	return m
}

func (m Model) updateFocus() Model {
	m.chatList = m.chatList.SetFocused(m.focus == focusChatList)
	m.messageView = m.messageView.SetFocused(m.focus == focusMessages)
	m.input = m.input.SetFocused(m.focus == focusInput)
	return m
}

// App wraps the Bubble Tea program for external use.
type App struct {
	program *tea.Program
}

// NewApp creates a new App ready to Run.
func NewApp(ctx context.Context, store *state.Store, svc Services) *App {
	model := NewModel(ctx, store, svc)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	return &App{program: p}
}

// Run starts the Bubble Tea event loop (blocks until quit).
// Cancelling the program's context is a normal shutdown.
func (a *App) Run() error {
	_, err := a.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Send sends a message into the Bubble Tea event loop from external goroutines.
func (a *App) Send(msg tea.Msg) {
	go a.program.Send(msg)
}

// DrawFunc returns a function suitable for state.Store that triggers a re-render.
func (a *App) DrawFunc() func() {
	return func() {
		a.Send(StoreUpdatedMsg{})
	}
}
