package mw

import (
	"context"
	"net"
	"net/http"
	"time"

	"walletbot/internal/config"
	"walletbot/pkg/httputil"

	"gitlab.com/nevasik7/alerting/logger"
)

type Limiter interface {
	Allow(ctx context.Context, key string, b config.RateBucket) (bool, error)
}

// RateLimitMiddleware token buckets per client ip and per jwt subject
type RateLimitMiddleware struct {
	log     logger.Logger
	limiter Limiter
	cfg     config.RateLimitConfig
}

func NewRateLimit(log logger.Logger, limiter Limiter, cfg config.RateLimitConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{log: log, limiter: limiter, cfg: cfg}
}

// Handler limits by ip. Expects chi RealIP in front so RemoteAddr is the client address.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.allow(r.Context(), "ip:"+clientIP(r), m.cfg.ByIP) {
			m.reject(w, r, m.cfg.ByIP)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SubjectHandler limits by jwt subject, mount after JWTMiddleware
func (m *RateLimitMiddleware) SubjectHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := SubjectFromContext(r.Context())
		if sub != "" && !m.allow(r.Context(), "sub:"+sub, m.cfg.BySubject) {
			m.reject(w, r, m.cfg.BySubject)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) allow(ctx context.Context, key string, b config.RateBucket) bool {
	ok, err := m.limiter.Allow(ctx, key, b)
	if err != nil {
		m.log.Warnf("Rate limiter unavailable for %s, error=%v", key, err)
	}
	return ok
}

func (m *RateLimitMiddleware) reject(w http.ResponseWriter, r *http.Request, b config.RateBucket) {
	if err := httputil.TooManyRequests(w, r, retryAfter(b), "rate limit exceeded"); err != nil {
		m.log.Errorf("Failed write 429 response, error=%v", err)
	}
}

// time until one token is back, a bucket without refill only frees up when its key expires
func retryAfter(b config.RateBucket) time.Duration {
	if b.RefillPerSec <= 0 {
		return time.Minute
	}
	return time.Second / time.Duration(b.RefillPerSec)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return "unknown"
	}
	return host
}
