// Package middleware provides HTTP middleware components for the application.
package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Config holds middleware configuration.
type Config struct {
	Logger *zap.Logger

	// CORS is disabled when nil.
	CORS *CORSConfig

	RateLimit      float64
	RateLimitBurst int

	RequestTimeout time.Duration
}

// Chain assembles the full middleware stack. Order matters: logging and
// request-id wrap everything, recovery sits inside them so panics are logged
// with a request id, and the timeout is innermost.
func Chain(config *Config) func(http.Handler) http.Handler {
	rateLimiter := NewRateLimiter(config.RateLimit, config.RateLimitBurst, config.Logger)

	return func(handler http.Handler) http.Handler {
		h := handler

		h = Timeout(config.RequestTimeout)(h)
		h = rateLimiter.Middleware(h)

		if config.CORS != nil {
			h = CORS(*config.CORS)(h)
		}

		h = Recovery(config.Logger)(h)
		h = RequestID(h)
		h = Logger(config.Logger)(h)

		return h
	}
}
