package telegram

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/danhigham/telequeue/internal/config"
)

// serverFailure marks a 5xx response as a breaker failure while the
// response itself still reaches the caller for its error body.
type serverFailure struct {
	status int
}

func (e *serverFailure) Error() string {
	return fmt.Sprintf("server error %d", e.status)
}

// breakerTransport trips after consecutive transport failures or 5xx
// responses and then fails fast until the open timeout elapses.
type breakerTransport struct {
	breaker *gobreaker.CircuitBreaker
	next    http.RoundTripper
	logger  *zap.Logger
}

func newBreakerTransport(cfg config.BreakerConfig, next http.RoundTripper, logger *zap.Logger) *breakerTransport {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	settings := gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &breakerTransport{
		breaker: gobreaker.NewCircuitBreaker(settings),
		next:    next,
		logger:  logger,
	}
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	result, err := t.breaker.Execute(func() (interface{}, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, &serverFailure{status: resp.StatusCode}
		}
		return resp, nil
	})

	var sf *serverFailure
	if errors.As(err, &sf) {
		return result.(*http.Response), nil
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			t.logger.Debug("circuit breaker rejected request", zap.String("url", req.URL.String()))
		}
		return nil, err
	}

	return result.(*http.Response), nil
}
