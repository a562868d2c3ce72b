// Package auth provides bearer-token storage and the unauthorized-session
// guard used by the backend client.
package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Sternrassler/wellness-sync/pkg/logging"
	"github.com/rs/zerolog"
)

// ErrNoToken is returned by a TokenProvider that holds no credentials.
var ErrNoToken = errors.New("no access token stored")

// TokenProvider reads and clears the bearer token used for backend requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// Redirector sends the user back to the login flow.
type Redirector interface {
	RedirectToLogin(reason string)
}

// RedirectFunc adapts a function to the Redirector interface.
type RedirectFunc func(reason string)

// RedirectToLogin calls f(reason).
func (f RedirectFunc) RedirectToLogin(reason string) {
	f(reason)
}

// StaticToken is an in-memory TokenProvider.
type StaticToken struct {
	mu    sync.RWMutex
	token string
}

// NewStaticToken returns a provider holding token.
func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: token}
}

// Token returns the stored token or ErrNoToken.
func (s *StaticToken) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// Set replaces the stored token.
func (s *StaticToken) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear forgets the stored token.
func (s *StaticToken) Clear(_ context.Context) error {
	s.Set("")
	return nil
}

// Guard wraps a TokenProvider and turns an unauthorized session into a
// single credential wipe plus a single redirect. It stays tripped until
// Reset is called after a new login.
type Guard struct {
	tokens   TokenProvider
	redirect Redirector
	logger   zerolog.Logger
	tripped  atomic.Bool
}

// NewGuard creates a Guard. redirect may be nil.
func NewGuard(tokens TokenProvider, redirect Redirector) *Guard {
	return &Guard{
		tokens:   tokens,
		redirect: redirect,
		logger:   logging.NewLogger(logging.ComponentAuth),
	}
}

// SetLogger overrides the guard logger.
func (g *Guard) SetLogger(logger zerolog.Logger) {
	g.logger = logger
}

// Token returns the current bearer token. A missing token trips the guard.
func (g *Guard) Token(ctx context.Context) (string, error) {
	token, err := g.tokens.Token(ctx)
	if err != nil || token == "" {
		g.Unauthorized(ctx, "no access token")
		if err == nil {
			err = ErrNoToken
		}
		return "", err
	}
	return token, nil
}

// Unauthorized clears stored credentials and redirects to login. Only the
// first call after construction or Reset has any effect; it reports
// whether this call was the one that acted.
func (g *Guard) Unauthorized(ctx context.Context, reason string) bool {
	if !g.tripped.CompareAndSwap(false, true) {
		return false
	}

	if err := g.tokens.Clear(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to clear stored credentials")
	}

	g.logger.Warn().Str("reason", reason).Msg("Session unauthorized - redirecting to login")
	if g.redirect != nil {
		g.redirect.RedirectToLogin(reason)
	}
	return true
}

// Tripped reports whether the session has been invalidated.
func (g *Guard) Tripped() bool {
	return g.tripped.Load()
}

// Reset re-arms the guard after a successful login.
func (g *Guard) Reset() {
	g.tripped.Store(false)
}
