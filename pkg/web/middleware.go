package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/forkful/pkg/log"
	"github.com/cuemby/forkful/pkg/metrics"
	"github.com/cuemby/forkful/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type contextKey int

const (
	userKey contextKey = iota
	requestKey
)

// requestInfo is shared between the outer logging middleware and the
// matched route handler
type requestInfo struct {
	id    string
	route string
}

// SessionCookie is the cookie that carries the login session token
const SessionCookie = "forkful_session"

// RateLimiter hands out one token bucket per client IP
type RateLimiter struct {
	limiters map[string]*clientLimiter
	rps      float64
	burst    int
	mu       sync.Mutex
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a per-client rate limiter. A non-positive rps
// disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		rps:      rps,
		burst:    burst,
	}
}

// Allow reports whether a request from clientIP may proceed
func (rl *RateLimiter) Allow(clientIP string) bool {
	if rl.rps <= 0 {
		return true
	}

	rl.mu.Lock()
	cl, exists := rl.limiters[clientIP]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.limiters[clientIP] = cl
	}
	cl.lastSeen = time.Now()
	rl.mu.Unlock()

	return cl.limiter.Allow()
}

// Cleanup drops limiters that have not been used for idle and returns how
// many were removed
func (rl *RateLimiter) Cleanup(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	removed := 0
	for ip, cl := range rl.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// Try X-Forwarded-For first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP in the chain
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush lets the event stream push through the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// route registers h under pattern and records the pattern as the metrics
// label, which keeps label cardinality bounded
func (s *Server) route(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		if info, ok := r.Context().Value(requestKey).(*requestInfo); ok {
			info.route = pattern
		}
		h(w, r)
	})
}

func requestID(r *http.Request) string {
	if info, ok := r.Context().Value(requestKey).(*requestInfo); ok {
		return info.id
	}
	return ""
}

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		info := &requestInfo{id: id, route: "unmatched"}
		r = r.WithContext(context.WithValue(r.Context(), requestKey, info))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		timer := metrics.NewTimer()

		next.ServeHTTP(rec, r)

		timer.ObserveDurationVec(metrics.HTTPRequestDuration, info.route)
		metrics.HTTPRequestsTotal.WithLabelValues(info.route, r.Method, strconv.Itoa(rec.status)).Inc()

		logger := log.WithRequestID(id)
		logger.Debug().
			Str("method", r.Method).
			Str("route", info.route).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", timer.Duration()).
			Str("client_ip", getClientIP(r)).
			Msg("HTTP request")
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)
		if !s.limiter.Allow(clientIP) {
			metrics.RateLimitedTotal.Inc()
			s.logger.Warn().Str("client_ip", clientIP).Msg("Rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withSession resolves the session cookie or bearer token to a user. A
// stale cookie is cleared; anonymous requests pass through.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.backend.Authenticate(token)
		if err != nil {
			if _, cerr := r.Cookie(SessionCookie); cerr == nil {
				clearSessionCookie(w)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentUser returns the signed-in user or nil
func currentUser(r *http.Request) *types.User {
	u, _ := r.Context().Value(userKey).(*types.User)
	return u
}
