package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/sagarc03/guestbook"
	"golang.org/x/oauth2"
)

const (
	stateCookieName = "guestbook_oidc_state"
	stateTTL        = 10 * time.Minute
)

// OIDCConfig points at an OpenID Connect issuer.
type OIDCConfig struct {
	Issuer       string   `mapstructure:"issuer"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// OIDCProvider signs visitors in through an OpenID Connect issuer with the
// authorization code flow.
type OIDCProvider struct {
	sessionProvider
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	secure   bool
}

// NewOIDCProvider discovers the issuer's endpoints.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig, sessions *Sessions) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc issuer: %w", err)
	}

	scopes := []string{oidc.ScopeOpenID, "email"}
	for _, s := range cfg.Scopes {
		if s != oidc.ScopeOpenID && s != "email" {
			scopes = append(scopes, s)
		}
	}

	return &OIDCProvider{
		sessionProvider: sessionProvider{sessions: sessions},
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		secure:   sessions.secure,
	}, nil
}

// Routes mounts login, the issuer callback and logout.
func (p *OIDCProvider) Routes(r chi.Router) {
	r.Get(LoginPath, p.login)
	r.Get(CallbackPath, p.callback)
	r.Get(LogoutPath, p.logout)
}

func randState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// The state cookie holds "<state>.<base64url(continue)>".
func encodeState(state, dest string) string {
	return state + "." + base64.RawURLEncoding.EncodeToString([]byte(dest))
}

func decodeState(value string) (state, dest string, err error) {
	state, encoded, ok := strings.Cut(value, ".")
	if !ok || state == "" {
		return "", "", errors.New("malformed state cookie")
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", fmt.Errorf("malformed state cookie: %w", err)
	}
	return state, SafeContinue(string(raw)), nil
}

func (p *OIDCProvider) login(w http.ResponseWriter, r *http.Request) {
	state, err := randState()
	if err != nil {
		slog.Error("generate oidc state", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    encodeState(state, SafeContinue(r.URL.Query().Get(ContinueParam))),
		Path:     CallbackPath,
		MaxAge:   int(stateTTL / time.Second),
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, p.oauth.AuthCodeURL(state), http.StatusFound)
}

type idClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
}

func (p *OIDCProvider) callback(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(stateCookieName)
	if err != nil {
		http.Error(w, "missing sign-in state", http.StatusBadRequest)
		return
	}
	state, dest, err := decodeState(c.Value)
	if err != nil {
		http.Error(w, "bad sign-in state", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: CallbackPath, MaxAge: -1})

	q := r.URL.Query()
	if subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(state)) != 1 {
		http.Error(w, "sign-in state mismatch", http.StatusBadRequest)
		return
	}
	if e := q.Get("error"); e != "" {
		slog.Warn("oidc sign-in refused", "error", e, "description", q.Get("error_description"))
		http.Redirect(w, r, dest, http.StatusFound)
		return
	}

	user, err := p.exchange(r.Context(), q.Get("code"))
	if err != nil {
		slog.Error("oidc callback", "error", err)
		http.Error(w, "sign-in failed", http.StatusUnauthorized)
		return
	}

	if err := p.sessions.Issue(w, user); err != nil {
		slog.Error("issue oidc session", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, dest, http.StatusFound)
}

func (p *OIDCProvider) exchange(ctx context.Context, code string) (guestbook.User, error) {
	if code == "" {
		return guestbook.User{}, fmt.Errorf("exchange: %w: missing code", guestbook.ErrUnauthorized)
	}

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return guestbook.User{}, fmt.Errorf("exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return guestbook.User{}, fmt.Errorf("exchange: %w: no id_token in token response", guestbook.ErrUnauthorized)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return guestbook.User{}, fmt.Errorf("verify id token: %w", err)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return guestbook.User{}, fmt.Errorf("parse id token claims: %w", err)
	}

	email := claims.Email
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		email = ""
	}

	return guestbook.User{ID: idToken.Subject, Email: email}, nil
}
