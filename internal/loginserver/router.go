// Package loginserver is a stand-in for the real login service. It answers
// POST /v1/login with tokens minted by a provider.Provider (normally the
// Fake), so the Network provider can be exercised end to end.
package loginserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tillsession/pkg/httpx"
	"github.com/aussiebroadwan/tillsession/pkg/provider"
	"github.com/aussiebroadwan/tillsession/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	provider     provider.Provider
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

func NewRouter(p provider.Provider, buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		provider:     p,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	// POST /v1/login - strict rate limit by IP + email to slow down guessing
	r.Mux.Handle("POST "+provider.LoginPath,
		httpx.Chain(&LoginHandler{Provider: r.provider},
			httpx.RateLimitByIPAndJSONField(httpx.LoginLimit, "email"),
		),
	)

	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.ProbeLimit),
		),
	)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}
