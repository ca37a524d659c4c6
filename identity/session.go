package identity

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sagarc03/guestbook"
)

const sessionIssuer = "guestbook"

// DefaultCookieName names the session cookie when none is configured.
const DefaultCookieName = "guestbook_session"

// DefaultSessionTTL is how long a sign-in lasts.
const DefaultSessionTTL = 24 * time.Hour

// SessionConfig configures the session cookie.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Sessions issues and reads the signed session cookie. The cookie holds an
// HS256 JWT whose kid header names the signing key, so keys can rotate while
// cookies signed with an older key stay valid.
type Sessions struct {
	store      guestbook.SecretStore
	activeKey  string
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewSessions signs with activeKey and verifies with any key in store.
func NewSessions(store guestbook.SecretStore, activeKey string, cfg SessionConfig) *Sessions {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	return &Sessions{
		store:      store,
		activeKey:  activeKey,
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		secure:     cfg.Secure,
		now:        time.Now,
	}
}

// WithClock returns a copy of s that reads the time from now.
func (s *Sessions) WithClock(now func() time.Time) *Sessions {
	c := *s
	c.now = now
	return &c
}

// Token returns a signed session token for user.
func (s *Sessions) Token(user guestbook.User) (string, error) {
	if user.ID == "" {
		return "", fmt.Errorf("issue session: %w: empty user id", guestbook.ErrInvalidInput)
	}

	secret, err := s.store.Lookup(s.activeKey)
	if err != nil {
		return "", fmt.Errorf("issue session: %w", err)
	}

	now := s.now()
	claims := sessionClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.activeKey
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("issue session: %w", err)
	}
	return signed, nil
}

// Parse validates a session token and returns its user. Every failure wraps
// guestbook.ErrUnauthorized.
func (s *Sessions) Parse(raw string) (*guestbook.User, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		secret, err := s.store.Lookup(kid)
		if err != nil {
			return nil, err
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse session: %w: %w", guestbook.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("parse session: %w: empty subject", guestbook.ErrUnauthorized)
	}

	return &guestbook.User{ID: claims.Subject, Email: claims.Email}, nil
}

// Issue sets the session cookie for user.
func (s *Sessions) Issue(w http.ResponseWriter, user guestbook.User) error {
	token, err := s.Token(user)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.ttl),
		MaxAge:   int(s.ttl / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read returns the user in the request's session cookie, or nil when there
// is no valid session.
func (s *Sessions) Read(r *http.Request) *guestbook.User {
	c, err := r.Cookie(s.cookieName)
	if err != nil || c.Value == "" {
		return nil
	}

	user, err := s.Parse(c.Value)
	if err != nil {
		return nil
	}
	return user
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
