package api

import (
	"fmt"
	"net/http"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
)

// defaultCredentialRate applies when security.rate_limit.login is empty.
const defaultCredentialRate = "10-M"

// newCredentialLimiter builds the per-IP limiter shared by login and
// register. rate uses the limiter's "<count>-<period>" format, e.g. "10-M".
func newCredentialLimiter(rate string) (*limiter.Limiter, error) {
	if rate == "" {
		rate = defaultCredentialRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parsing login rate limit %q: %w", rate, err)
	}
	return limiter.New(memory.NewStore(), parsed), nil
}

// rateLimitMiddleware throttles the credential endpoints by client IP. It
// is a pass-through when rate limiting is disabled.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	mw := stdlib.NewMiddleware(s.limiter,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Warn("rate limit reached",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeRateLimited(w)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			s.internalError(w, r, fmt.Errorf("rate limiter: %w", err))
		}),
	)
	return mw.Handler(next)
}
