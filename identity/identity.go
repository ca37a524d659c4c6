// Package identity answers who the current visitor is. Sign-in itself is
// delegated: DevProvider trusts a typed email address for local use and
// OIDCProvider sends the visitor to an OpenID Connect issuer. Both keep the
// result in a signed session cookie.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sagarc03/guestbook"
)

// Platform routes served by every provider.
const (
	LoginPath    = "/_ah/login"
	LogoutPath   = "/_ah/logout"
	CallbackPath = "/_ah/callback"

	// ContinueParam carries the page to return to after sign-in or sign-out.
	ContinueParam = "continue"
)

// Provider resolves the current user and serves its sign-in routes.
type Provider interface {
	// CurrentUser returns the signed-in user, or nil.
	CurrentUser(r *http.Request) *guestbook.User
	// LoginURL returns a URL that signs the visitor in and then returns to dest.
	LoginURL(dest string) string
	// LogoutURL returns a URL that signs the visitor out and then returns to dest.
	LogoutURL(dest string) string
	// Routes mounts the provider's handlers.
	Routes(r chi.Router)
}

// Config selects and configures a provider.
type Config struct {
	Provider     string        `mapstructure:"provider"`
	CookieName   string        `mapstructure:"cookie_name"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
	OIDC         OIDCConfig    `mapstructure:"oidc"`
}

// New builds the configured provider. Sessions are signed with activeKey
// from store.
func New(ctx context.Context, cfg Config, store guestbook.SecretStore, activeKey string) (Provider, error) {
	sessions := NewSessions(store, activeKey, SessionConfig{
		CookieName: cfg.CookieName,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.SecureCookie,
	})

	switch cfg.Provider {
	case "dev":
		return NewDevProvider(sessions), nil
	case "oidc":
		p, err := NewOIDCProvider(ctx, cfg.OIDC, sessions)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported identity provider: %s", cfg.Provider)
	}
}

// SafeContinue returns dest when it is a path on this site, else "/".
func SafeContinue(dest string) string {
	if dest == "" || !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") || strings.HasPrefix(dest, "/\\") {
		return "/"
	}
	return dest
}

func withContinue(path, dest string) string {
	return path + "?" + ContinueParam + "=" + url.QueryEscape(SafeContinue(dest))
}

// sessionProvider holds what both providers share: the cookie and sign-out.
type sessionProvider struct {
	sessions *Sessions
}

func (p sessionProvider) CurrentUser(r *http.Request) *guestbook.User {
	return p.sessions.Read(r)
}

func (p sessionProvider) LoginURL(dest string) string {
	return withContinue(LoginPath, dest)
}

func (p sessionProvider) LogoutURL(dest string) string {
	return withContinue(LogoutPath, dest)
}

func (p sessionProvider) logout(w http.ResponseWriter, r *http.Request) {
	p.sessions.Clear(w)
	http.Redirect(w, r, SafeContinue(r.URL.Query().Get(ContinueParam)), http.StatusFound)
}

type contextKey struct{}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user *guestbook.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the user stored by Middleware, or nil.
func UserFromContext(ctx context.Context) *guestbook.User {
	u, _ := ctx.Value(contextKey{}).(*guestbook.User)
	return u
}

// Middleware resolves the current user once per request and stores it in
// the request context.
func Middleware(p Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), p.CurrentUser(r))))
		})
	}
}
