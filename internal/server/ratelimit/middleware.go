package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Middleware rejects requests over the limit with 429 and sets the
// X-RateLimit-* headers on every limited response.
func Middleware(l *Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ratelimit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ClientID(r)
			d := l.Allow(clientID, r.Method, r.URL.Path)
			setHeaders(w, d)
			if !d.Allowed {
				logger.Warn("rate limit exceeded",
					"client", clientID,
					"path", r.URL.Path,
					"class", d.Class,
					"limit", d.Limit,
					"retry_after", d.RetryAfter.String(),
				)
				writeLimited(w, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientID identifies the caller by the IP in RemoteAddr. Forwarded headers
// are not trusted.
func ClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func setHeaders(w http.ResponseWriter, d Decision) {
	if d.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
}

func writeLimited(w http.ResponseWriter, d Decision) {
	body := map[string]any{
		"error":   "rate_limit_exceeded",
		"message": "Too many " + string(d.Class) + " requests. Please try again later.",
		"class":   d.Class,
		"limit":   d.Limit,
	}
	if !d.ResetAt.IsZero() {
		body["reset_at"] = d.ResetAt.Format(time.RFC3339)
	}
	if d.RetryAfter > 0 {
		// Round up so a client that waits exactly Retry-After gets through.
		seconds := int((d.RetryAfter + time.Second - 1) / time.Second)
		body["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(body)
}
