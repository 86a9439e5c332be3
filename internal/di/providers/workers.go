package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/ratelimit"
)

// authLimiterIdleTTL is how long an idle client keeps its bucket.
const authLimiterIdleTTL = 10 * time.Minute

// AuthLimiterHandle wraps the per-client auth rate limiter with shutdown capability.
type AuthLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown stops the eviction loop.
func (h *AuthLimiterHandle) Shutdown() error {
	if h.KeyedRateLimiter == nil {
		return nil
	}
	return h.KeyedRateLimiter.Shutdown()
}

// ProvideAuthLimiter provides the limiter for login and registration.
// A non-positive rate disables limiting.
func ProvideAuthLimiter(i do.Injector) (*AuthLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.RateLimit.AuthPerMinute <= 0 {
		log.Info("Auth rate limiting disabled")
		return &AuthLimiterHandle{}, nil
	}

	limiter := ratelimit.PerInterval(cfg.RateLimit.AuthPerMinute, time.Minute, cfg.RateLimit.AuthBurst, authLimiterIdleTTL)
	log.Info("Auth rate limiting enabled",
		"per_minute", cfg.RateLimit.AuthPerMinute,
		"burst", cfg.RateLimit.AuthBurst,
	)
	return &AuthLimiterHandle{KeyedRateLimiter: limiter}, nil
}
