package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tillsession/pkg/idx"
)

// RequestIDHeader carries the id that ties client and server log lines
// together.
const RequestIDHeader = "X-Request-ID"

func requestID(h http.Header) (id string, generated bool) {
	if id = h.Get(RequestIDHeader); id != "" {
		return id, false
	}
	return idx.New().String(), true
}

// statusLevel logs server errors at error, client errors at warn and the
// rest at info.
func statusLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// HTTPMiddleware gives each request a logger carrying its request id,
// echoes that id in the response and logs one line when the handler
// returns.
func HTTPMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID, _ := requestID(r.Header)
			w.Header().Set(RequestIDHeader, reqID)

			logger := base.With("req_id", reqID, "method", r.Method, "path", r.URL.Path)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(WithContext(r.Context(), logger)))

			logger.Log(r.Context(), statusLevel(rec.status), "http_request",
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Transport is the client-side twin of HTTPMiddleware. It stamps outbound
// requests with a request id and logs each round trip with the logger
// found in the request context, falling back to base.
func Transport(base *slog.Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{base: base, next: next}
}

type loggingTransport struct {
	base *slog.Logger
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	reqID, generated := requestID(r.Header)
	if generated {
		// RoundTrippers must not mutate the caller's request.
		r = r.Clone(r.Context())
		r.Header.Set(RequestIDHeader, reqID)
	}

	logger, ok := fromContext(r.Context())
	if !ok {
		logger = t.base
	}
	logger = logger.With("req_id", reqID, "method", r.Method, "url", r.URL.Redacted())

	resp, err := t.next.RoundTrip(r)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_client_request", "duration_ms", elapsed, "error", err)
		return nil, err
	}

	logger.Debug("http_client_request", "status", resp.StatusCode, "duration_ms", elapsed)
	return resp, nil
}
