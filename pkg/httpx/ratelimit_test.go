package httpx_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tillsession/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "remote addr", remote: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "remote addr without port", remote: "192.168.1.1", want: "192.168.1.1"},
		{
			name:    "first forwarded hop",
			remote:  "10.0.0.1:1",
			headers: map[string]string{"X-Forwarded-For": " 203.0.113.1 , 10.0.0.1"},
			want:    "203.0.113.1",
		},
		{
			name:    "real ip",
			remote:  "10.0.0.1:1",
			headers: map[string]string{"X-Real-IP": "203.0.113.7"},
			want:    "203.0.113.7",
		},
		{
			name:   "forwarded wins over real ip",
			remote: "10.0.0.1:1",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.1",
				"X-Real-IP":       "203.0.113.7",
			},
			want: "203.0.113.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, httpx.ClientIP(req))
		})
	}
}

func TestJSONField(t *testing.T) {
	t.Run("extracts and restores body", func(t *testing.T) {
		body := `{"email":" Bob@Test.com ","password":"secret"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		require.Equal(t, "bob@test.com", httpx.JSONField("email")(req))

		rest, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, body, string(rest))
	})

	t.Run("empty for non-JSON or non-string", func(t *testing.T) {
		for _, body := range []string{"email=bob", `{"email":42}`, `{}`, ``} {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			require.Empty(t, httpx.JSONField("email")(req), body)
		}
	})

	t.Run("oversized body", func(t *testing.T) {
		body := `{"email":"a@test.com","pad":"` + strings.Repeat("x", httpx.MaxBodyBytes) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		require.Empty(t, httpx.JSONField("email")(req))
	})
}

func TestJoinKeys(t *testing.T) {
	constant := func(s string) httpx.KeyFunc {
		return func(*http.Request) string { return s }
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	require.Equal(t, "a:b", httpx.JoinKeys(":", constant("a"), constant("b"))(req))
	require.Equal(t, "b", httpx.JoinKeys(":", constant(""), constant("b"))(req))
	require.Empty(t, httpx.JoinKeys(":", constant(""))(req))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit(t *testing.T) {
	limit := httpx.Limit{Requests: 2, Window: time.Minute, Burst: 2}

	t.Run("allows burst then rejects", func(t *testing.T) {
		h := httpx.RateLimitByIP(limit)(okHandler())

		codes := make([]int, 0, 3)
		for range 3 {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			codes = append(codes, rec.Code)
		}
		require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})

	t.Run("keys are independent", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.Limit{Requests: 1, Window: time.Minute, Burst: 1})(okHandler())

		for _, ip := range []string{"192.168.1.1:1", "192.168.1.2:1"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = ip
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, ip)
		}
	})

	t.Run("no key lets the request through", func(t *testing.T) {
		none := func(*http.Request) string { return "" }
		h := httpx.RateLimit(httpx.Limit{Requests: 1, Window: time.Minute, Burst: 1}, none)(okHandler())

		for range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("rejection headers and body", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.Limit{Requests: 1, Window: time.Minute, Burst: 1})(okHandler())

		var rec *httptest.ResponseRecorder
		for range 2 {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.9:1"
			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, req)
		}

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.Contains(t, rec.Body.String(), `"error":"rate_limit_exceeded"`)

		retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
		require.NoError(t, err)
		require.GreaterOrEqual(t, retry, 1)
		require.LessOrEqual(t, retry, 60)
	})
}

func TestRateLimitByIPAndJSONField(t *testing.T) {
	var reached int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email string `json:"email"`
		}
		require.NoError(t, httpx.DecodeJSON(w, r, &body))
		reached++
		w.WriteHeader(http.StatusOK)
	})

	limited := httpx.RateLimitByIPAndJSONField(httpx.Limit{Requests: 1, Window: time.Minute, Burst: 1}, "email")(handler)

	send := func(email string) int {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"`+email+`"}`))
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("alice@test.com"))
	require.Equal(t, http.StatusTooManyRequests, send("ALICE@test.com"))
	require.Equal(t, http.StatusOK, send("bob@test.com"))
	require.Equal(t, 2, reached)
}

func TestLimitProfiles(t *testing.T) {
	for name, l := range map[string]httpx.Limit{"login": httpx.LoginLimit, "probe": httpx.ProbeLimit} {
		t.Run(name, func(t *testing.T) {
			require.Positive(t, l.Requests)
			require.Greater(t, l.Window, time.Duration(0))
			require.Positive(t, l.Burst)
		})
	}
	require.Less(t, httpx.LoginLimit.Requests, httpx.ProbeLimit.Requests)
}

func TestLimitFromEnv(t *testing.T) {
	def := httpx.Limit{Requests: 5, Window: time.Minute, Burst: 5}

	t.Run("defaults when unset", func(t *testing.T) {
		require.Equal(t, def, httpx.LimitFromEnv("TEST_UNSET", def))
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("TILL_RATELIMIT_TEST_REQUESTS", "10")
		t.Setenv("TILL_RATELIMIT_TEST_WINDOW_SEC", "30")
		t.Setenv("TILL_RATELIMIT_TEST_BURST", "3")

		require.Equal(t, httpx.Limit{Requests: 10, Window: 30 * time.Second, Burst: 3},
			httpx.LimitFromEnv("TEST", def))
	})

	t.Run("ignores invalid values", func(t *testing.T) {
		t.Setenv("TILL_RATELIMIT_TEST_REQUESTS", "lots")
		t.Setenv("TILL_RATELIMIT_TEST_WINDOW_SEC", "-1")
		t.Setenv("TILL_RATELIMIT_TEST_BURST", "0")

		require.Equal(t, def, httpx.LimitFromEnv("TEST", def))
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}
