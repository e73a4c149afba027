package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danhigham/telequeue/internal/metrics"
	"github.com/danhigham/telequeue/internal/state"
	"github.com/danhigham/telequeue/internal/telegram"
)

// ErrSessionEnded is returned by Open when the session it was asked for is over.
var ErrSessionEnded = errors.New("live: session ended")

// Dispatcher folds live frames into the store and owns the socket lifecycle.
type Dispatcher struct {
	store  *state.Store
	socket telegram.LiveAPI
	logger *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	onIncoming func(chatID int64)
}

func NewDispatcher(store *state.Store, socket telegram.LiveAPI, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		socket: socket,
		logger: logger.Named("live"),
		now:    time.Now,
	}
}

// OnIncoming registers f to run after every inbound message is applied.
func (d *Dispatcher) OnIncoming(f func(chatID int64)) {
	d.mu.Lock()
	d.onIncoming = f
	d.mu.Unlock()
}

// Open subscribes to live updates for session generation gen. It refuses
// once that session is over, and frames arriving after it ends are dropped.
func (d *Dispatcher) Open(ctx context.Context, gen uint64) error {
	if d.store.Generation() != gen {
		metrics.StaleResponsesTotal.WithLabelValues("live_open").Inc()
		return ErrSessionEnded
	}

	err := d.socket.ConnectWebSocket(ctx, func(f telegram.Frame) {
		d.handle(gen, f)
	})
	if err != nil {
		return err
	}

	// A logout during the dial closed nothing; close the socket here.
	if d.store.Generation() != gen {
		metrics.StaleResponsesTotal.WithLabelValues("live_open").Inc()
		if err := d.socket.CloseWebSocket(); err != nil {
			d.logger.Warn("failed to close socket of ended session", zap.Error(err))
		}
		return ErrSessionEnded
	}
	d.logger.Info("live updates opened")
	return nil
}

func (d *Dispatcher) Close() error {
	return d.socket.CloseWebSocket()
}

func (d *Dispatcher) handle(gen uint64, f telegram.Frame) {
	mf, ok := f.(telegram.MessageFrame)
	if !ok {
		d.logger.Debug("ignoring frame", zap.String("kind", telegram.FrameKind(f)))
		return
	}

	msg := mf.Message
	inbound := !msg.Out
	at := d.now()

	applied := d.store.UpdateIf(gen, func(s state.State) state.State {
		s = s.ReceiveMessage(msg)
		if inbound {
			s = s.RecordIncoming(mf.ChatID, mf.ChatTitle, at)
		}
		return s
	})
	if !applied {
		metrics.StaleResponsesTotal.WithLabelValues("live_frame").Inc()
		return
	}

	d.logger.Debug("message received",
		zap.Int64("chat_id", mf.ChatID),
		zap.Int64("message_id", msg.ID),
		zap.Bool("outgoing", msg.Out),
	)

	if inbound {
		d.mu.Lock()
		notify := d.onIncoming
		d.mu.Unlock()
		if notify != nil {
			notify(mf.ChatID)
		}
	}
}
