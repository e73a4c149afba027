package ui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/danhigham/telequeue/internal/domain"
)

// MessageViewModel displays messages using a viewport and glamour for markdown.
type MessageViewModel struct {
	viewport  viewport.Model
	renderer  *glamour.TermRenderer
	focused   bool
	width     int
	height    int
	chatID    int64
	chatTitle string
	messages  []domain.Message
	loading   bool // true while fetching older history
	hasMore   bool // false when history is exhausted
}

func NewMessageViewModel() MessageViewModel {
	vp := viewport.New()
	return MessageViewModel{viewport: vp}
}

func (m MessageViewModel) Update(msg tea.Msg) (MessageViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j":
			m.viewport.ScrollDown(1)
			return m, nil
		case "k":
			m.viewport.ScrollUp(1)
			return m, m.checkScrollTop()
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)

	var cmds []tea.Cmd
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	if scrollCmd := m.checkScrollTop(); scrollCmd != nil {
		cmds = append(cmds, scrollCmd)
	}
	return m, tea.Batch(cmds...)
}

// checkScrollTop returns a command to load older history if scrolled to top.
func (m MessageViewModel) checkScrollTop() tea.Cmd {
	if m.viewport.YOffset() == 0 && !m.loading && m.hasMore && len(m.messages) > 0 {
		chatID := m.chatID
		return func() tea.Msg {
			return LoadOlderHistoryMsg{ChatID: chatID}
		}
	}
	return nil
}

func (m MessageViewModel) View() string {
	contentH := m.height - 2
	if contentH < 0 {
		contentH = 0
	}

	body := m.viewport.View()
	if m.chatID == 0 {
		body = daySeparatorStyle.Render("Select a chat")
	}
	content := truncateHeight(body, contentH)

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	style = applyBorderColor(style, m.focused)

	return style.Render(content)
}

func (m MessageViewModel) SetSize(w, h int) MessageViewModel {
	m.width = w
	m.height = h
	// Viewport inner: subtract border (2)
	vpW := w - 2
	vpH := h - 2
	if vpW < 1 {
		vpW = 1
	}
	if vpH < 1 {
		vpH = 1
	}
	m.viewport.SetWidth(vpW)
	m.viewport.SetHeight(vpH)
	m = m.recreateRenderer()
	m = m.renderContent()
	return m
}

func (m MessageViewModel) SetFocused(f bool) MessageViewModel {
	m.focused = f
	return m
}

// SetChat switches the view to another chat.
func (m MessageViewModel) SetChat(chatID int64, title string) MessageViewModel {
	if chatID != m.chatID {
		m.messages = nil
		m.hasMore = true
		m.loading = false
	}
	m.chatID = chatID
	m.chatTitle = title
	return m
}

// Sync shows msgs, the current sequence of the active chat. Older pages
// arriving at the head keep the reader's position; anything else scrolls
// to the newest message.
func (m MessageViewModel) Sync(msgs []domain.Message) MessageViewModel {
	prepended := len(m.messages) > 0 && len(msgs) > len(m.messages) &&
		msgs[0].ID != m.messages[0].ID &&
		msgs[len(msgs)-1].ID == m.messages[len(m.messages)-1].ID
	unchanged := sameMessages(m.messages, msgs)

	if unchanged {
		return m
	}
	if !prepended {
		m.messages = msgs
		return m.renderContent()
	}

	oldTotalLines := m.viewport.TotalLineCount()
	oldOffset := m.viewport.YOffset()

	m.messages = msgs
	m = m.renderContentNoScroll()

	// Calculate how many new lines were added and adjust offset.
	delta := m.viewport.TotalLineCount() - oldTotalLines
	if delta < 0 {
		delta = 0
	}
	m.viewport.SetYOffset(oldOffset + delta)
	return m
}

// SetLoading marks the view as loading older history.
func (m MessageViewModel) SetLoading(v bool) MessageViewModel {
	m.loading = v
	return m
}

// OlderLoaded records the outcome of a history request. An empty page
// means the start of the chat was reached.
func (m MessageViewModel) OlderLoaded(added int) MessageViewModel {
	m.loading = false
	m.hasMore = added > 0
	return m
}

func sameMessages(a, b []domain.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].LocalRef != b[i].LocalRef {
			return false
		}
	}
	return true
}

func (m MessageViewModel) recreateRenderer() MessageViewModel {
	wordWrap := m.viewport.Width() - 2
	if wordWrap < 10 {
		wordWrap = 10
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(wordWrap),
	)
	if err == nil {
		m.renderer = r
	}
	return m
}

func (m MessageViewModel) renderContentNoScroll() MessageViewModel {
	return m.renderContentInner(false)
}

func (m MessageViewModel) renderContent() MessageViewModel {
	return m.renderContentInner(true)
}

func (m MessageViewModel) renderContentInner(gotoBottom bool) MessageViewModel {
	var b strings.Builder
	var currentDate string

	for _, msg := range m.messages {
		msgDate := msg.Timestamp.Format("January 2, 2006")
		if msgDate != currentDate {
			if currentDate != "" {
				b.WriteString("\n")
			}
			sep := daySeparatorStyle.Render(fmt.Sprintf("───── %s ─────", msgDate))
			b.WriteString(sep + "\n")
			currentDate = msgDate
		}

		ts := timeStyle.Render(msg.Timestamp.Format("15:04"))

		var name string
		if msg.Out {
			name = outNameStyle.Render("You:")
		} else {
			name = inNameStyle.Render(m.chatTitle + ":")
		}

		text := msg.Text
		if msg.Pending() {
			text += pendingStyle.Render(" (sending)")
		}

		multiLine := strings.Contains(text, "\n")
		if hasMarkdown(msg.Text) {
			rendered := m.renderMessageText(msg.Text)
			fmt.Fprintf(&b, "%s %s\n%s\n", ts, name, rendered)
			b.WriteString("\n")
		} else if multiLine {
			fmt.Fprintf(&b, "%s %s\n%s\n", ts, name, text)
			b.WriteString("\n")
		} else {
			fmt.Fprintf(&b, "%s %s %s\n", ts, name, text)
		}
	}

	// Wrap content to viewport width so long lines don't overflow
	wrapped := lipgloss.NewStyle().Width(m.viewport.Width()).Render(b.String())
	m.viewport.SetContent(wrapped)
	if gotoBottom {
		m.viewport.GotoBottom()
	}
	return m
}

// hasMarkdown reports whether text uses markdown worth rendering.
func hasMarkdown(text string) bool {
	for _, marker := range []string{"```", "**", "__", "`", "](", "\n- ", "\n# "} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return isMultiLineMarkdown(text)
}

func (m MessageViewModel) renderMessageText(text string) string {
	if m.renderer == nil {
		return text
	}

	// Glamour collapses single newlines (standard markdown paragraph
	// continuation). To preserve line breaks from Telegram while still
	// supporting multi-line markdown constructs (tables, code blocks),
	// split text into blocks by blank lines. Blocks that are multi-line
	// markdown (tables, fenced code) are rendered as a whole; regular
	// text blocks are rendered line-by-line to preserve line breaks.
	blocks := strings.Split(text, "\n\n")
	renderedBlocks := make([]string, len(blocks))

	for i, block := range blocks {
		if block == "" {
			renderedBlocks[i] = ""
			continue
		}

		if isMultiLineMarkdown(block) {
			r := m.renderBlock(block)
			renderedBlocks[i] = r
		} else {
			// Render each line individually to preserve line breaks.
			lines := strings.Split(block, "\n")
			renderedLines := make([]string, len(lines))
			for j, line := range lines {
				if line == "" {
					renderedLines[j] = ""
				} else {
					renderedLines[j] = m.renderBlock(line)
				}
			}
			renderedBlocks[i] = strings.Join(renderedLines, "\n")
		}
	}

	return strings.Join(renderedBlocks, "\n")
}

// renderBlock renders a single text block through glamour, trimming whitespace.
func (m MessageViewModel) renderBlock(text string) string {
	r, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	r = strings.TrimRight(r, "\n ")
	r = strings.TrimLeft(r, "\n")
	return r
}

// isMultiLineMarkdown returns true if the block is a multi-line markdown
// construct that must be rendered as a whole (tables, fenced code blocks).
func isMultiLineMarkdown(block string) bool {
	if !strings.Contains(block, "\n") {
		return false
	}
	trimmed := strings.TrimSpace(block)
	// Fenced code blocks.
	if strings.HasPrefix(trimmed, "```") {
		return true
	}
	// Tables: all lines contain pipes.
	lines := strings.Split(trimmed, "\n")
	allPipes := true
	for _, line := range lines {
		if !strings.Contains(line, "|") {
			allPipes = false
			break
		}
	}
	return allPipes
}
