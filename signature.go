package guestbook

import (
	"crypto/hmac"
	"fmt"
	"net/url"
	"strconv"
	"time"

	stowry "github.com/sagarc03/stowry-go"
)

// MaxExpiresSeconds caps the lifetime of a signed upload URL.
const MaxExpiresSeconds = 604800 // 7 days

// SecretStore resolves a signing key ID to its secret.
type SecretStore interface {
	// Lookup returns ErrNotFound wrapped when keyID is unknown.
	Lookup(keyID string) (string, error)
}

// UploadSigner signs and verifies one-time upload URLs using the stowry-go
// query signing scheme (X-Stowry-Credential, X-Stowry-Date,
// X-Stowry-Expires, X-Stowry-Signature).
type UploadSigner struct {
	store     SecretStore
	activeKey string
	now       func() time.Time
}

// NewUploadSigner signs with activeKey and verifies against any key in store.
func NewUploadSigner(store SecretStore, activeKey string) *UploadSigner {
	return &UploadSigner{
		store:     store,
		activeKey: activeKey,
		now:       time.Now,
	}
}

// WithClock returns a copy of s that reads the time from now.
func (s *UploadSigner) WithClock(now func() time.Time) *UploadSigner {
	c := *s
	c.now = now
	return &c
}

// Sign returns the signature query parameters for method and path, valid
// for expires from now.
func (s *UploadSigner) Sign(method, path string, expires time.Duration) (url.Values, error) {
	secs := int64(expires / time.Second)
	if secs <= 0 || secs > MaxExpiresSeconds {
		return nil, fmt.Errorf("sign upload url: %w: expires must be between 1s and %ds", ErrInvalidInput, MaxExpiresSeconds)
	}

	secret, err := s.store.Lookup(s.activeKey)
	if err != nil {
		return nil, fmt.Errorf("sign upload url: %w", err)
	}

	timestamp := s.now().Unix()
	sig := stowry.Sign(secret, method, path, timestamp, secs)

	query := url.Values{}
	query.Set(stowry.StowryCredentialParam, s.activeKey)
	query.Set(stowry.StowryDateParam, strconv.FormatInt(timestamp, 10))
	query.Set(stowry.StowryExpiresParam, strconv.FormatInt(secs, 10))
	query.Set(stowry.StowrySignatureParam, sig)
	return query, nil
}

// Verify checks the signature parameters in query against method and path.
//
// Failures wrap ErrUnauthorized, except an expired URL which wraps
// ErrUploadExpired.
func (s *UploadSigner) Verify(method, path string, query url.Values) error {
	credential := query.Get(stowry.StowryCredentialParam)
	date := query.Get(stowry.StowryDateParam)
	expiresStr := query.Get(stowry.StowryExpiresParam)
	signature := query.Get(stowry.StowrySignatureParam)

	if credential == "" || date == "" || expiresStr == "" || signature == "" {
		return fmt.Errorf("verify upload url: missing signature parameters: %w", ErrUnauthorized)
	}

	timestamp, err := strconv.ParseInt(date, 10, 64)
	if err != nil {
		return fmt.Errorf("verify upload url: invalid %s: %w", stowry.StowryDateParam, ErrUnauthorized)
	}

	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil || expires <= 0 || expires > MaxExpiresSeconds {
		return fmt.Errorf("verify upload url: invalid %s: must be between 1 and %d: %w", stowry.StowryExpiresParam, MaxExpiresSeconds, ErrUnauthorized)
	}

	if s.now().Unix() > timestamp+expires {
		return fmt.Errorf("verify upload url: %w", ErrUploadExpired)
	}

	secret, err := s.store.Lookup(credential)
	if err != nil {
		return fmt.Errorf("verify upload url: invalid credential: %w", ErrUnauthorized)
	}

	expected := stowry.Sign(secret, method, path, timestamp, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("verify upload url: signature mismatch: %w", ErrUnauthorized)
	}

	return nil
}
