package middleware

import (
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openclaw/model-router/utils"
)

// RateLimitMiddleware applies a token-bucket limit per client address.
type RateLimitMiddleware struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	logger   *zap.Logger
}

// NewRateLimitMiddleware creates a per-client rate limiter
func NewRateLimitMiddleware(requestsPerSecond float64, burst int, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
		logger:   logger,
	}
}

// Limit is a middleware that rejects requests exceeding the client's bucket
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)

		if !m.limiterFor(client).Allow() {
			m.logger.Warn("rate limit exceeded",
				zap.String("client", client),
				zap.String("path", r.URL.Path))
			_ = utils.WriteTooManyRequests(w, "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) limiterFor(client string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, ok := m.limiters[client]
	if !ok {
		limiter = rate.NewLimiter(m.rps, m.burst)
		m.limiters[client] = limiter
	}
	return limiter
}

// clientKey derives the limiter key from the remote address. chi's RealIP
// middleware rewrites RemoteAddr from proxy headers before this runs.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
