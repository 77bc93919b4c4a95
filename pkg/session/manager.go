package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/tillsession/pkg/cryptox"
	"github.com/aussiebroadwan/tillsession/pkg/identity"
	"github.com/aussiebroadwan/tillsession/pkg/idx"
	"github.com/aussiebroadwan/tillsession/pkg/jwtx"
	"github.com/aussiebroadwan/tillsession/pkg/provider"
	"github.com/aussiebroadwan/tillsession/pkg/slogx"
	"github.com/aussiebroadwan/tillsession/pkg/tokencache"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for attempt logs and cache failures.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithVerifier makes the Manager check token signatures instead of decoding
// them unverified. Leave unset for the fake provider's unsigned tokens.
func WithVerifier(v jwtx.Verifier) Option {
	return func(m *Manager) { m.verifier = v }
}

// LoginResult is what LoginAsync delivers.
type LoginResult struct {
	Identity identity.Identity
	Err      error
}

// Manager owns the session: the published identity, its subscribers and
// the cached authStatus and token. It is the only writer of those keys.
type Manager struct {
	cache    tokencache.Cache
	provider provider.Provider
	verifier jwtx.Verifier
	logger   *slog.Logger

	// mu serializes transitions. Provider calls happen outside it.
	mu      sync.Mutex
	gen     uint64
	current identity.Identity
	subs    map[*Subscription]struct{}
}

// New builds a Manager and resumes the identity stored in cache. A missing,
// unreadable or corrupt stored identity starts the Manager anonymous.
func New(ctx context.Context, cache tokencache.Cache, p provider.Provider, opts ...Option) (*Manager, error) {
	if cache == nil {
		return nil, ErrNilCache
	}
	if p == nil {
		return nil, ErrNilProvider
	}

	m := &Manager{
		cache:    cache,
		provider: p,
		logger:   slog.Default(),
		current:  identity.Default,
		subs:     make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.current = m.resume(ctx)
	return m, nil
}

func (m *Manager) resume(ctx context.Context) identity.Identity {
	stored, err := tokencache.GetJSON[identity.Identity](ctx, m.cache, tokencache.KeyAuthStatus)
	switch {
	case err != nil:
		m.logger.Warn("session: cached identity unreadable, starting anonymous", "error", err)
		return identity.Default
	case stored == nil:
		return identity.Default
	}

	resumed := stored.Normalize()
	if !resumed.IsAuthenticated {
		return resumed
	}

	decoded, claims, err := m.decodedIdentity(ctx)
	switch {
	case errors.Is(err, errNoToken):
		m.logger.Warn("session: resumed identity has no cached token", "role", resumed.Role)
	case err != nil:
		m.logger.Warn("session: cached token does not decode", "error", err)
	case decoded != resumed:
		m.logger.Warn("session: cached identity disagrees with cached token",
			"stored_role", resumed.Role, "token_role", decoded.Role)
	default:
		if err := claims.ValidateExpiry(); err != nil {
			m.logger.Info("session: resumed token is past its expiry", "expires_at", claims.Expiry())
		}
	}

	m.logger.Info("session: resumed", "role", resumed.Role, "user_id", resumed.UserID)
	return resumed
}

// Current returns the identity most recently published.
func (m *Manager) Current() identity.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe returns a replay-latest subscription: the current identity is
// delivered first, followed by every later change.
func (m *Manager) Subscribe() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := newSubscription(m.current, m.unsubscribe)
	m.subs[s] = struct{}{}
	return s
}

func (m *Manager) unsubscribe(s *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, s)
}

// Close ends every open subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := make([]*Subscription, 0, len(m.subs))
	for s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

// Token returns the raw cached token.
func (m *Manager) Token(ctx context.Context) (string, bool, error) {
	tok, ok, err := m.cache.Get(ctx, tokencache.KeyToken)
	if err != nil {
		return "", false, fmt.Errorf("session: read token: %w", err)
	}
	return tok, ok, nil
}

// Logout forgets the cached token and publishes the anonymous identity.
// Calling it while already anonymous notifies nobody.
func (m *Manager) Logout(ctx context.Context) {
	ctx = slogx.WithContext(ctx, m.logger)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.clearLocked(ctx)
}

// Login authenticates the credential and publishes the resulting identity.
// On failure the session is anonymous and the error is a *LoginError
// carrying the provider or decode error.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (identity.Identity, error) {
	ctx, gen := m.begin(ctx)
	return m.attempt(ctx, gen, provider.Credential{Identifier: identifier, Secret: secret})
}

// LoginAsync is Login on its own goroutine. The implicit logout happens
// before LoginAsync returns, so call order decides which login wins. The
// channel yields one result and is then closed.
func (m *Manager) LoginAsync(ctx context.Context, identifier, secret string) <-chan LoginResult {
	out := make(chan LoginResult, 1)

	ctx, gen := m.begin(ctx)
	cred := provider.Credential{Identifier: identifier, Secret: secret}
	go func() {
		defer close(out)
		id, err := m.attempt(ctx, gen, cred)
		out <- LoginResult{Identity: id, Err: err}
	}()

	return out
}

// begin performs the implicit logout and claims a new generation.
func (m *Manager) begin(ctx context.Context) (context.Context, uint64) {
	ctx = slogx.WithAttemptID(slogx.WithContext(ctx, m.logger), idx.New().String())

	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.clearLocked(ctx)
	return ctx, m.gen
}

func (m *Manager) attempt(ctx context.Context, gen uint64, cred provider.Credential) (identity.Identity, error) {
	log := slogx.FromContext(ctx)
	log.Debug("session: login started")

	token, id, err := m.authenticate(ctx, cred)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		log.Info("session: login superseded, result dropped")
		return identity.Default, &LoginError{Kind: KindSuperseded, Err: ErrSuperseded}
	}

	if err != nil {
		le := classify(err)
		log.Info("session: login failed", "kind", le.Kind, "error", err)
		m.clearLocked(ctx)
		return identity.Default, le
	}

	cctx := context.WithoutCancel(ctx)
	if err := m.cache.Set(cctx, tokencache.KeyToken, token); err != nil {
		log.Error("session: persist token failed", "error", err)
	}
	m.persistLocked(cctx, id)
	m.publishLocked(id)

	log.Info("session: login succeeded",
		"role", id.Role,
		"user_id", id.UserID,
		"token_fp", cryptox.LogFingerprint(token),
	)
	return id, nil
}

// authenticate calls the provider and decodes its token. No state is touched.
func (m *Manager) authenticate(ctx context.Context, cred provider.Credential) (string, identity.Identity, error) {
	resp, err := m.provider.Authenticate(ctx, cred)
	if err != nil {
		return "", identity.Default, err
	}
	if resp == nil || resp.AccessToken == "" {
		return "", identity.Default, fmt.Errorf("%w: empty token response", provider.ErrProviderFailure)
	}

	claims, err := m.decode(resp.AccessToken)
	if err != nil {
		return "", identity.Default, fmt.Errorf("session: decode token: %w", err)
	}
	return resp.AccessToken, identity.FromClaims(claims), nil
}

func (m *Manager) decode(token string) (*jwtx.Claims, error) {
	if m.verifier == nil {
		return jwtx.Decode(token)
	}
	claims, err := m.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// decodedIdentity decodes the cached token. It backs consistency checks
// only; the published identity is authoritative.
func (m *Manager) decodedIdentity(ctx context.Context) (identity.Identity, *jwtx.Claims, error) {
	tok, ok, err := m.cache.Get(ctx, tokencache.KeyToken)
	if err != nil {
		return identity.Default, nil, fmt.Errorf("session: read token: %w", err)
	}
	if !ok || tok == "" {
		return identity.Default, nil, errNoToken
	}

	claims, err := m.decode(tok)
	if err != nil {
		return identity.Default, nil, err
	}
	return identity.FromClaims(claims), claims, nil
}

// clearLocked drops the token, publishes the anonymous identity and records
// it. Cache failures are logged, never returned.
func (m *Manager) clearLocked(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	if err := m.cache.Remove(ctx, tokencache.KeyToken); err != nil {
		slogx.FromContext(ctx).Error("session: remove token failed", "error", err)
	}
	m.persistLocked(ctx, identity.Default)
	m.publishLocked(identity.Default)
}

func (m *Manager) persistLocked(ctx context.Context, id identity.Identity) {
	if err := tokencache.SetJSON(ctx, m.cache, tokencache.KeyAuthStatus, id); err != nil {
		slogx.FromContext(ctx).Error("session: persist identity failed", "error", err)
	}
}

// publishLocked notifies subscribers when id differs from the current value.
func (m *Manager) publishLocked(id identity.Identity) {
	if id == m.current {
		return
	}
	m.current = id
	for s := range m.subs {
		s.push(id)
	}
}
