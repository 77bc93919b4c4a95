package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/tillsession/pkg/slogx"
	"golang.org/x/time/rate"
)

// Limit is a token bucket described as Requests per Window, with room for
// Burst requests at once.
type Limit struct {
	Requests int
	Window   time.Duration
	Burst    int
}

func (l Limit) perSecond() rate.Limit {
	if l.Window <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(l.Requests) / l.Window.Seconds())
}

// Login server profiles. Each field can be overridden with
// TILL_RATELIMIT_<NAME>_REQUESTS, _WINDOW_SEC and _BURST.
var (
	// LoginLimit guards credential submission per client IP and email.
	LoginLimit = LimitFromEnv("LOGIN", Limit{Requests: 5, Window: time.Minute, Burst: 5})

	// ProbeLimit guards the health endpoint per client IP.
	ProbeLimit = LimitFromEnv("PROBE", Limit{Requests: 1000, Window: time.Minute, Burst: 1000})
)

const envPrefix = "TILL_RATELIMIT_"

// LimitFromEnv returns def with any positive overrides found in the
// environment applied. Unparseable values are ignored.
func LimitFromEnv(name string, def Limit) Limit {
	l := def
	if n, ok := positiveEnvInt(envPrefix + name + "_REQUESTS"); ok {
		l.Requests = n
	}
	if n, ok := positiveEnvInt(envPrefix + name + "_WINDOW_SEC"); ok {
		l.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnvInt(envPrefix + name + "_BURST"); ok {
		l.Burst = n
	}
	return l
}

func positiveEnvInt(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// KeyFunc groups requests that share a bucket. An empty key means the
// request cannot be classified and is let through.
type KeyFunc func(*http.Request) string

// ClientIP keys on the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// JSONField keys on a top-level string field of a JSON body, lower-cased.
// The body is put back for the handler. Non-JSON or oversized bodies yield
// an empty key.
func JSONField(name string) KeyFunc {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil || len(raw) > MaxBodyBytes {
			return ""
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return ""
		}

		var v string
		if err := json.Unmarshal(fields[name], &v); err != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// JoinKeys concatenates the non-empty keys of fns with sep.
func JoinKeys(sep string, fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if k := fn(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, sep)
	}
}

// idleAfter is how long a bucket may go unused before it is dropped.
const idleAfter = 10 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// buckets holds one limiter per key.
type buckets struct {
	limit Limit
	now   func() time.Time

	mu        sync.Mutex
	byKey     map[string]*bucket
	lastSweep time.Time
}

func newBuckets(l Limit) *buckets {
	return &buckets{
		limit:     l,
		now:       time.Now,
		byKey:     make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

func (b *buckets) get(key string) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastSweep) >= idleAfter {
		for k, e := range b.byKey {
			if now.Sub(e.seen) >= idleAfter {
				delete(b.byKey, k)
			}
		}
		b.lastSweep = now
	}

	e, ok := b.byKey[key]
	if !ok {
		e = &bucket{lim: rate.NewLimiter(b.limit.perSecond(), b.limit.Burst)}
		b.byKey[key] = e
	}
	e.seen = now
	return e.lim
}

func (b *buckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byKey)
}

// retryAfter is the whole number of seconds, at least one, until lim
// has a token again.
func retryAfter(lim *rate.Limiter) int {
	missing := 1 - lim.Tokens()
	if missing <= 0 || lim.Limit() <= 0 {
		return 1
	}
	secs := math.Ceil(missing / float64(lim.Limit()))
	return max(int(secs), 1)
}

// RateLimit rejects requests with 429 once the bucket selected by key is
// empty.
func RateLimit(l Limit, key KeyFunc) Middleware {
	b := newBuckets(l)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			k := key(r)
			if k == "" {
				log.Warn("rate limit: no key for request, allowing")
				next.ServeHTTP(w, r)
				return
			}

			lim := b.get(k)
			if lim.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			wait := retryAfter(lim)
			w.Header().Set("Retry-After", strconv.Itoa(wait))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Requests))
			w.Header().Set("X-RateLimit-Window", l.Window.String())

			log.Warn("rate limit exceeded", "key", k, "endpoint", r.URL.Path, "retry_after", wait)
			WriteError(w, http.StatusTooManyRequests,
				"rate_limit_exceeded", "Too many requests. Please try again later.")
		})
	}
}

// RateLimitByIP limits each client IP.
func RateLimitByIP(l Limit) Middleware {
	return RateLimit(l, ClientIP)
}

// RateLimitByIPAndJSONField limits each client IP and body field pair, so
// one address guessing at many accounts gets a bucket per account.
func RateLimitByIPAndJSONField(l Limit, field string) Middleware {
	return RateLimit(l, JoinKeys(":", ClientIP, JSONField(field)))
}
