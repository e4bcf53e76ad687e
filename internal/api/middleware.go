package api

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/npezzotti/go-praat/internal/session"
	"github.com/teris-io/shortid"
	"golang.org/x/time/rate"
)

const requestIdHeader = "X-Request-Id"

func (s *PraatApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Printf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// requestIdMiddleware tags every request with a short id, echoed in the
// response headers and used to correlate error logs.
func (s *PraatApp) requestIdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIdHeader)
		if id == "" {
			var err error
			if id, err = shortid.Generate(); err != nil {
				s.log.Printf("generate request id: %v", err)
			}
		}

		if id != "" {
			w.Header().Set(requestIdHeader, id)
			r = r.WithContext(WithRequestId(r.Context(), id))
		}

		next.ServeHTTP(w, r)
	})
}

// sessionMiddleware resolves the session cookie, if any, and attaches the
// session to the request context. Requests without a valid session pass
// through unchanged; handlers decide whether one is required.
func (s *PraatApp) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		id, data, err := s.sessions.Load(r.Context(), r)
		switch {
		case err == nil:
			r = r.WithContext(WithSession(r.Context(), id, data))
		case errors.Is(err, session.ErrNoSession):
		case errors.Is(err, session.ErrNotFound):
			// signed cookie for a session the store no longer has
			s.sessions.ClearCookie(w)
		default:
			s.writeError(w, r, NewInternalServerError(fmt.Errorf("load session: %w", err)))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *PraatApp) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIp(r)) {
			w.Header().Set("Retry-After", "60")
			s.writeError(w, r, NewTooManyRequestsError())
			return
		}

		next(w, r)
	}
}

func clientIp(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

const limiterIdleTimeout = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client address.
type ipRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastPrune time.Time
	now       func() time.Time
}

func newIpRateLimiter(perSecond float64, burst int) *ipRateLimiter {
	if perSecond <= 0 {
		perSecond = 0.2
	}
	if burst < 1 {
		burst = 5
	}

	return &ipRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > time.Minute {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTimeout {
				delete(l.visitors, k)
			}
		}
		l.lastPrune = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}
