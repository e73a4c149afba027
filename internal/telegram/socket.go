package telegram

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danhigham/telequeue/internal/domain"
	"github.com/danhigham/telequeue/internal/metrics"
)

// SocketURL derives the live-update endpoint from the REST base URL.
func SocketURL(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return strings.Replace(base, "http", "ws", 1) + "/ws"
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// ConnectWebSocket opens the live socket and delivers each parsed frame to
// onFrame from a reader goroutine. It is a no-op while a socket is open.
func (c *RESTClient) ConnectWebSocket(ctx context.Context, onFrame func(Frame)) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.ws != nil {
		return nil
	}

	target := SocketURL(c.baseURL)
	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return &domain.TransportError{StatusCode: status, Message: "connect live updates: " + err.Error(), Cause: err}
	}

	c.ws = conn
	c.logger.Info("live socket connected", zap.String("url", target))

	go c.readFrames(conn, onFrame)
	return nil
}

func (c *RESTClient) readFrames(conn *websocket.Conn, onFrame func(Frame)) {
	defer c.dropSocket(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("live socket closed")
			} else {
				c.logger.Debug("live socket read ended", zap.Error(err))
			}
			return
		}

		frame, err := ParseFrame(data, c.now())
		if err != nil {
			metrics.LiveFramesTotal.WithLabelValues("malformed").Inc()
			c.logger.Debug("dropping malformed frame", zap.Error(err))
			continue
		}
		metrics.LiveFramesTotal.WithLabelValues(FrameKind(frame)).Inc()
		onFrame(frame)
	}
}

func (c *RESTClient) dropSocket(conn *websocket.Conn) {
	c.wsMu.Lock()
	if c.ws == conn {
		c.ws = nil
	}
	c.wsMu.Unlock()
	_ = conn.Close()
}

// CloseWebSocket closes the live socket if one is open.
func (c *RESTClient) CloseWebSocket() error {
	c.wsMu.Lock()
	conn := c.ws
	c.ws = nil
	c.wsMu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}
