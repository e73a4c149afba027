package telegram

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/danhigham/telequeue/internal/config"
)

// throttleTransport spaces outgoing requests to the configured rate.
// Waiting respects the request context.
type throttleTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

// newThrottleTransport returns next unchanged when rate limiting is off.
func newThrottleTransport(cfg config.APIConfig, next http.RoundTripper) http.RoundTripper {
	if cfg.RateLimit <= 0 {
		return next
	}
	return &throttleTransport{
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1)),
		next:    next,
	}
}

func (t *throttleTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}
