// Package auth is the boundary to the external identity collaborator. The
// service only needs an opaque authenticated-user marker per request; how
// tokens are minted upstream is not modeled here.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

var (
	// ErrTokenNotFound indicates the presented token maps to no active session.
	ErrTokenNotFound = errors.New("auth: token not found")
	// ErrTokenExpired indicates the presented token is no longer valid.
	ErrTokenExpired = errors.New("auth: token expired")
)

// Session binds an opaque bearer token to a user marker.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// TokenStore persists issued tokens so they survive across requests.
type TokenStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}

// Verifier resolves bearer tokens into authenticated-user markers.
type Verifier struct {
	ttl   time.Duration
	store TokenStore

	NowFunc func() time.Time
}

// NewVerifier constructs a Verifier that also issues tokens with the
// provided TTL for local development and tests.
func NewVerifier(ttl time.Duration, store TokenStore) *Verifier {
	if store == nil {
		panic("auth: token store must not be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Verifier{ttl: ttl, store: store}
}

// Issue mints a new opaque token for the provided user identifier.
func (v *Verifier) Issue(ctx context.Context, userID string) (Session, error) {
	if userID == "" {
		return Session{}, errors.New("auth: user id must be provided")
	}

	token, err := randomToken()
	if err != nil {
		return Session{}, err
	}

	session := Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: v.now().Add(v.ttl),
	}

	if err := v.store.Save(ctx, session); err != nil {
		return Session{}, err
	}

	return session, nil
}

// Provision registers an operator-supplied token that never expires. It is
// how a deployment gets its first working credential before any tokens are
// issued.
func (v *Verifier) Provision(ctx context.Context, token, userID string) error {
	if token == "" {
		return errors.New("auth: token must be provided")
	}
	if userID == "" {
		return errors.New("auth: user id must be provided")
	}
	return v.store.Save(ctx, Session{Token: token, UserID: userID})
}

// Authenticate resolves a bearer token to its user marker. Expired tokens
// are removed as a side effect.
func (v *Verifier) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrTokenNotFound
	}

	session, err := v.store.Find(ctx, token)
	if err != nil {
		return "", err
	}

	// Provisioned sessions carry no expiry.
	if !session.ExpiresAt.IsZero() && v.now().After(session.ExpiresAt) {
		_ = v.store.Delete(ctx, token)
		return "", ErrTokenExpired
	}

	return session.UserID, nil
}

func (v *Verifier) now() time.Time {
	if v.NowFunc != nil {
		return v.NowFunc()
	}
	return time.Now().UTC()
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
