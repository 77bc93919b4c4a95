// Package session owns "who is logged in" for a client process.
//
// A Manager authenticates credentials through a provider.Provider, turns the
// returned token into an identity.Identity, keeps the token and identity in a
// tokencache.Cache so a restarted process resumes where it left off, and
// fans identity changes out to subscribers.
//
// State transitions are serialized by the Manager. Every Login starts by
// logging out, and the most recently started Login or Logout wins: a login
// that completes after being overtaken publishes nothing and reports
// ErrSuperseded.
//
//	m, err := session.New(ctx, memory.New(), provider.NewFake())
//	sub := m.Subscribe()
//	defer sub.Close()
//
//	id, err := m.Login(ctx, "cashier@test.com", "x")
package session
