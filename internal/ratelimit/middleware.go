package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	domainerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/http/response"
)

// Middleware rejects requests from a client IP that exceeded its budget
// with 429 and the standard error envelope.
func Middleware(limiter *KeyedRateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)

			if !limiter.Allow(key) {
				logger.Warn("rate limit exceeded", "ip", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(limiter)))
				response.HandleError(w, domainerrors.TooManyRequests("too many requests, please try again later"), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of RemoteAddr. Run chi's RealIP
// middleware first when the server sits behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterSeconds(limiter *KeyedRateLimiter) int {
	if limiter.limit <= 0 {
		return 60
	}
	return max(1, int(1/float64(limiter.limit)))
}
