package telegram

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danhigham/telequeue/internal/config"
	"github.com/danhigham/telequeue/internal/domain"
	"github.com/danhigham/telequeue/internal/metrics"
)

const twoFactorMarker = "two-factor password required"

// RESTClient talks to the bridge backend over REST and owns its live socket.
type RESTClient struct {
	http    *resty.Client
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
	dialer  *websocket.Dialer

	mu        sync.Mutex
	user      *domain.UserProfile
	lastPhone string
	lastCode  string

	wsMu sync.Mutex
	ws   *websocket.Conn
}

var _ Client = (*RESTClient)(nil)

func NewRESTClient(cfg *config.Config, logger *zap.Logger) *RESTClient {
	baseURL := strings.TrimRight(cfg.API.BaseURL, "/")

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(cfg.API.RequestTimeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetTransport(newThrottleTransport(cfg.API, newBreakerTransport(cfg.Breaker, http.DefaultTransport, logger)))

	return &RESTClient{
		http:    client,
		baseURL: baseURL,
		logger:  logger,
		now:     time.Now,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.API.RequestTimeout},
	}
}

// call performs one JSON request. A non-2xx response becomes a
// *domain.TransportError; an unparseable success body yields the zero T.
func call[T any](ctx context.Context, c *RESTClient, method, endpoint string, query map[string]string, body any) (T, error) {
	var out T

	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, endpoint)
	metrics.WireRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WireRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		c.logger.Debug("request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return out, &domain.TransportError{Message: err.Error(), Cause: err}
	}

	status := resp.StatusCode()
	metrics.WireRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()

	if !resp.IsSuccess() {
		msg := errorDetail(status, resp.Body())
		c.logger.Debug("backend rejected request",
			zap.String("endpoint", endpoint),
			zap.Int("status", status),
			zap.String("detail", msg),
		)
		return out, &domain.TransportError{StatusCode: status, Message: msg}
	}

	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		c.logger.Debug("unparseable response body", zap.String("endpoint", endpoint), zap.Error(err))
		var zero T
		return zero, nil
	}
	return out, nil
}

// errorDetail extracts the human-readable failure message of a non-2xx body.
func errorDetail(status int, body []byte) string {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err == nil {
		for _, key := range []string{"detail", "error"} {
			if s := stringify(data[key]); s != "" {
				return s
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return fmt.Sprintf("[%d] %s", status, text)
	}
	return "Request failed"
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

type userJSON struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Phone     string `json:"phone"`
}

func (u userJSON) profile() domain.UserProfile {
	return domain.UserProfile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Phone:     u.Phone,
	}
}

type meResponse struct {
	Authorized bool      `json:"authorized"`
	Me         *userJSON `json:"me"`
}

func (c *RESTClient) me(ctx context.Context) (*domain.UserProfile, error) {
	res, err := call[meResponse](ctx, c, http.MethodGet, "/me", nil, nil)
	if err != nil {
		return nil, err
	}
	if !res.Authorized || res.Me == nil {
		return nil, nil
	}
	user := res.Me.profile()
	return &user, nil
}

func (c *RESTClient) setUser(user *domain.UserProfile) {
	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
}

// CurrentUser returns the cached signed-in user, if any.
func (c *RESTClient) CurrentUser() (domain.UserProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return domain.UserProfile{}, false
	}
	return *c.user, true
}

// Initialize asks the backend whether a session already exists. It returns
// nil without error when nobody is signed in.
func (c *RESTClient) Initialize(ctx context.Context, cfg domain.APIConfig) (*domain.UserProfile, error) {
	c.logger.Debug("checking silent session", zap.Int("api_id", cfg.APIID))

	user, err := c.me(ctx)
	if err != nil {
		return nil, err
	}
	c.setUser(user)
	return user, nil
}

type sendCodeResponse struct {
	PhoneCodeHash      string `json:"phone_code_hash"`
	PhoneCodeHashCamel string `json:"phoneCodeHash"`
	PhoneCode          string `json:"phoneCode"`
}

func (c *RESTClient) SendCode(ctx context.Context, phone string) (string, error) {
	res, err := call[sendCodeResponse](ctx, c, http.MethodPost, "/auth/send_code", nil, map[string]string{"phone": phone})
	if err != nil {
		return "", err
	}

	for _, hash := range []string{res.PhoneCodeHash, res.PhoneCodeHashCamel, res.PhoneCode} {
		if hash != "" {
			return hash, nil
		}
	}
	return fmt.Sprintf("local_%d", c.now().UnixMilli()), nil
}

type signInRequest struct {
	Phone    string `json:"phone"`
	Code     string `json:"code"`
	Password string `json:"password,omitempty"`
}

type signInResponse struct {
	OK    bool      `json:"ok"`
	Me    *userJSON `json:"me"`
	Error string    `json:"error"`
}

func (c *RESTClient) SignIn(ctx context.Context, phone, code string) (*domain.UserProfile, error) {
	c.mu.Lock()
	c.lastPhone, c.lastCode = phone, code
	c.mu.Unlock()

	return c.signIn(ctx, signInRequest{Phone: phone, Code: code})
}

// SignInWithPassword completes a two-factor sign-in with the phone and code
// remembered from the preceding SignIn.
func (c *RESTClient) SignInWithPassword(ctx context.Context, password string) (*domain.UserProfile, error) {
	c.mu.Lock()
	phone, code := c.lastPhone, c.lastCode
	c.mu.Unlock()

	if phone == "" || code == "" {
		return nil, &domain.AuthError{Message: "no pending sign-in, repeat sign-in with a new code"}
	}
	return c.signIn(ctx, signInRequest{Phone: phone, Code: code, Password: password})
}

func (c *RESTClient) signIn(ctx context.Context, req signInRequest) (*domain.UserProfile, error) {
	res, err := call[signInResponse](ctx, c, http.MethodPost, "/auth/sign_in", nil, req)
	if err != nil {
		return nil, classifySignIn(err)
	}
	if res.Error != "" {
		return nil, classifySignIn(&domain.AuthError{Message: res.Error})
	}

	if res.OK && res.Me != nil {
		user := res.Me.profile()
		c.setUser(&user)
		return &user, nil
	}

	user, err := c.me(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &domain.AuthError{Message: "sign-in failed"}
	}
	c.setUser(user)
	return user, nil
}

// classifySignIn maps backend rejections of a sign-in to the auth taxonomy.
// Network failures stay transport errors.
func classifySignIn(err error) error {
	var msg string
	switch e := err.(type) {
	case *domain.TransportError:
		if e.StatusCode == 0 {
			return err
		}
		msg = e.Message
	case *domain.AuthError:
		msg = e.Message
	default:
		return err
	}

	if strings.Contains(strings.ToLower(msg), twoFactorMarker) {
		return domain.ErrTwoFactorRequired
	}
	return &domain.AuthError{Message: msg, Cause: err}
}

// Logout forgets the cached user and the remembered sign-in attempt.
func (c *RESTClient) Logout() {
	c.mu.Lock()
	c.user = nil
	c.lastPhone, c.lastCode = "", ""
	c.mu.Unlock()
}

func (c *RESTClient) requireUser() (domain.UserProfile, error) {
	user, ok := c.CurrentUser()
	if !ok {
		return domain.UserProfile{}, domain.ErrNotAuthorized
	}
	return user, nil
}

type dialogJSON struct {
	ChatID          int64   `json:"chat_id"`
	Title           *string `json:"title"`
	Type            string  `json:"type"`
	Username        *string `json:"username"`
	UnreadCount     int     `json:"unread_count"`
	LastMessageText *string `json:"last_message_text"`
}

type dialogsResponse struct {
	Dialogs []dialogJSON `json:"dialogs"`
}

// GetChats returns the private dialogs in backend order.
func (c *RESTClient) GetChats(ctx context.Context) ([]domain.Chat, error) {
	if _, err := c.requireUser(); err != nil {
		return nil, err
	}

	res, err := call[dialogsResponse](ctx, c, http.MethodGet, "/dialogs", nil, nil)
	if err != nil {
		return nil, err
	}

	now := c.now()
	chats := make([]domain.Chat, 0, len(res.Dialogs))
	for _, d := range res.Dialogs {
		if !strings.EqualFold(d.Type, string(domain.ChatKindPrivate)) {
			continue
		}
		chat := domain.Chat{
			ID:          d.ChatID,
			Title:       titleOrDefault(d.Title),
			Kind:        domain.ChatKindPrivate,
			Username:    deref(d.Username),
			UnreadCount: max(d.UnreadCount, 0),
		}
		if text := deref(d.LastMessageText); text != "" {
			chat.LastMessage = &domain.Message{ChatID: d.ChatID, Text: text, Timestamp: now}
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

type chatInfoResponse struct {
	Chat struct {
		ChatID   int64   `json:"chat_id"`
		Title    *string `json:"title"`
		Type     string  `json:"type"`
		Username *string `json:"username"`
	} `json:"chat"`
}

func (c *RESTClient) GetChatInfo(ctx context.Context, chatID int64) (domain.Chat, error) {
	query := map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}
	res, err := call[chatInfoResponse](ctx, c, http.MethodGet, "/chat_info", query, nil)
	if err != nil {
		return domain.Chat{}, err
	}

	id := res.Chat.ChatID
	if id == 0 {
		id = chatID
	}
	return domain.Chat{
		ID:       id,
		Title:    titleOrDefault(res.Chat.Title),
		Kind:     domain.ChatKind(strings.ToLower(res.Chat.Type)),
		Username: deref(res.Chat.Username),
	}, nil
}

type messageJSON struct {
	ID         int64   `json:"id"`
	FromUserID *int64  `json:"from_user_id"`
	Text       *string `json:"text"`
	Date       *int64  `json:"date"`
	Outgoing   bool    `json:"outgoing"`
}

// toMessage applies the wire defaults: sender 0, empty text, receipt time.
func (m messageJSON) toMessage(chatID int64, now time.Time) domain.Message {
	msg := domain.Message{
		ID:        m.ID,
		ChatID:    chatID,
		Text:      deref(m.Text),
		Timestamp: now,
		Out:       m.Outgoing,
	}
	if m.FromUserID != nil {
		msg.SenderID = *m.FromUserID
	}
	if m.Date != nil && *m.Date > 0 {
		msg.Timestamp = time.Unix(*m.Date, 0)
	}
	return msg
}

type messagesResponse struct {
	ChatID   int64         `json:"chat_id"`
	Messages []messageJSON `json:"messages"`
}

func (c *RESTClient) GetMessages(ctx context.Context, chatID int64, limit int) ([]domain.Message, error) {
	return c.fetchMessages(ctx, chatID, 0, limit)
}

// GetOlderMessages returns the page of messages strictly older than beforeID.
func (c *RESTClient) GetOlderMessages(ctx context.Context, chatID, beforeID int64, limit int) ([]domain.Message, error) {
	return c.fetchMessages(ctx, chatID, beforeID, limit)
}

func (c *RESTClient) fetchMessages(ctx context.Context, chatID, beforeID int64, limit int) ([]domain.Message, error) {
	if _, err := c.requireUser(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	query := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"limit":   strconv.Itoa(limit),
	}
	if beforeID != 0 {
		query["before_id"] = strconv.FormatInt(beforeID, 10)
	}

	res, err := call[messagesResponse](ctx, c, http.MethodGet, "/messages", query, nil)
	if err != nil {
		return nil, err
	}

	owner := res.ChatID
	if owner == 0 {
		owner = chatID
	}
	now := c.now()
	msgs := make([]domain.Message, 0, len(res.Messages))
	for _, m := range res.Messages {
		if beforeID != 0 && m.ID >= beforeID {
			continue
		}
		msgs = append(msgs, m.toMessage(owner, now))
	}
	slices.SortStableFunc(msgs, func(a, b domain.Message) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return msgs, nil
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK        bool   `json:"ok"`
	MessageID *int64 `json:"message_id"`
}

// SendMessage posts text and synthesizes the local copy right away. The
// copy carries a millisecond clock placeholder id; ServerID is set when the
// backend acknowledged the send with its own id.
func (c *RESTClient) SendMessage(ctx context.Context, chatID int64, text string) (SentMessage, error) {
	user, err := c.requireUser()
	if err != nil {
		return SentMessage{}, err
	}

	res, err := call[sendMessageResponse](ctx, c, http.MethodPost, "/send_message", nil, sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return SentMessage{}, err
	}

	now := c.now()
	sent := SentMessage{
		Message: domain.Message{
			ID:        now.UnixMilli(),
			ChatID:    chatID,
			SenderID:  user.ID,
			Text:      text,
			Timestamp: now,
			Out:       true,
		},
	}
	if res.MessageID != nil {
		sent.ServerID = *res.MessageID
	}
	return sent, nil
}

type resolveContactRequest struct {
	UserID   int64  `json:"user_id,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Username string `json:"username,omitempty"`
}

type resolveContactResponse struct {
	UserID int64 `json:"user_id"`
	ChatID int64 `json:"chat_id"`
}

func (c *RESTClient) ResolveContact(ctx context.Context, q domain.ContactQuery) (domain.ResolvedContact, error) {
	if err := q.Validate(); err != nil {
		return domain.ResolvedContact{}, err
	}

	body := resolveContactRequest{UserID: q.UserID, Phone: q.Phone, Username: q.Username}
	res, err := call[resolveContactResponse](ctx, c, http.MethodPost, "/resolve_contact", nil, body)
	if err != nil {
		return domain.ResolvedContact{}, err
	}
	return domain.ResolvedContact{UserID: res.UserID, ChatID: res.ChatID}, nil
}

type queueResponse struct {
	Queue []int64 `json:"queue"`
}

func (c *RESTClient) GetQueue(ctx context.Context) ([]int64, error) {
	res, err := call[queueResponse](ctx, c, http.MethodGet, "/queue", nil, nil)
	if err != nil {
		return nil, err
	}
	return nonNil(res.Queue), nil
}

type queueActionRequest struct {
	ChatID int64              `json:"chat_id"`
	Action domain.QueueAction `json:"action"`
}

// QueueAction applies a triage decision and returns the new queue snapshot.
func (c *RESTClient) QueueAction(ctx context.Context, chatID int64, action domain.QueueAction) ([]int64, error) {
	if !action.Valid() {
		return nil, &domain.ValidationError{Field: "action", Message: fmt.Sprintf("unknown queue action %q", action)}
	}

	res, err := call[queueResponse](ctx, c, http.MethodPost, "/queue/action", nil, queueActionRequest{ChatID: chatID, Action: action})
	if err != nil {
		return nil, err
	}
	return nonNil(res.Queue), nil
}

type healthResponse struct {
	OK bool `json:"ok"`
}

func (c *RESTClient) Health(ctx context.Context) error {
	res, err := call[healthResponse](ctx, c, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return err
	}
	if !res.OK {
		return &domain.TransportError{Message: "backend reported unhealthy"}
	}
	return nil
}

func titleOrDefault(title *string) string {
	if t := deref(title); t != "" {
		return t
	}
	return "Untitled"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
