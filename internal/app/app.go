package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/tillsession/pkg/jwtx"
	"github.com/aussiebroadwan/tillsession/pkg/provider"
	"github.com/aussiebroadwan/tillsession/pkg/session"
	"github.com/aussiebroadwan/tillsession/pkg/slogx"
	"github.com/aussiebroadwan/tillsession/pkg/tokencache"
	"github.com/aussiebroadwan/tillsession/pkg/tokencache/drivers/memory"
	"github.com/aussiebroadwan/tillsession/pkg/tokencache/drivers/redis"
	"github.com/aussiebroadwan/tillsession/pkg/tokencache/drivers/sqlite"
	"golang.org/x/time/rate"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires a session.Manager to the configured cache and provider.
type Application struct {
	cfg    Config
	logger *slog.Logger

	cache   tokencache.Cache
	closers []io.Closer

	Session *session.Manager
}

// New builds the client application. Logs go to logOut (stderr when nil).
func New(ctx context.Context, cfg Config, logOut io.Writer) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tillsession",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  logOut,
		}),
	}

	if err := app.initCache(ctx); err != nil {
		return nil, err
	}

	p, err := app.buildProvider()
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	opts := []session.Option{session.WithLogger(app.logger)}
	if v := app.verifier(); v != nil {
		opts = append(opts, session.WithVerifier(v))
	}

	app.Session, err = session.New(ctx, app.cache, p, opts...)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	return app, nil
}

// Logger returns the application's logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Close ends subscriptions and releases the cache backend.
func (app *Application) Close() error {
	if app.Session != nil {
		app.Session.Close()
	}

	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

func (app *Application) initCache(ctx context.Context) error {
	switch app.cfg.Cache {
	case CacheMemory:
		app.cache = memory.New()

	case CacheSQLite:
		store, err := sqlite.NewStore(sqlite.DSN(app.cfg.CacheFile))
		if err != nil {
			return fmt.Errorf("failed to open cache file: %w", err)
		}
		app.cache = store
		app.closers = append(app.closers, store)

	case CacheRedis:
		c, err := redis.New(ctx, redis.Config{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
			Prefix:   app.cfg.RedisPrefix,
			TTL:      app.cfg.RedisTTL,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis cache: %w", err)
		}
		app.cache = c
		app.closers = append(app.closers, c)
	}

	app.logger.Debug("token cache ready", "driver", app.cfg.Cache)
	return nil
}

func (app *Application) buildProvider() (provider.Provider, error) {
	switch app.cfg.Provider {
	case ProviderNetwork:
		n := provider.NewNetwork(app.cfg.BaseURL)
		n.HTTPClient = &http.Client{
			Timeout:   app.cfg.HTTPTimeout,
			Transport: slogx.Transport(app.logger, nil),
		}
		if app.cfg.LoginRate > 0 {
			n.Limiter = rate.NewLimiter(rate.Limit(app.cfg.LoginRate), 1)
		}
		return n, nil

	case ProviderFake:
		f := provider.NewFake()
		f.Algorithm = app.cfg.SigningAlg
		if app.cfg.SigningSecret != "" {
			f.SigningSecret = []byte(app.cfg.SigningSecret)
		}
		return f, nil
	}

	return nil, fmt.Errorf("unknown provider %q", app.cfg.Provider)
}

// verifier returns an HS256 verifier when tokens are expected to be signed
// with a secret we know. Unsigned tokens are decoded without verification.
func (app *Application) verifier() jwtx.Verifier {
	if app.cfg.SigningAlg != jwtx.AlgHS256 {
		return nil
	}

	secret := app.cfg.SigningSecret
	if secret == "" && app.cfg.Provider == ProviderFake {
		secret = provider.FakeSecret
	}
	if secret == "" {
		app.logger.Warn("HS256 tokens expected but TILL_SIGNING_SECRET is unset, signatures are not checked")
		return nil
	}

	return jwtx.NewVerifierHS256([]byte(secret), "", 0)
}
