// Package auth gates the treasurer endpoints. A request is admitted with the shared
// admin key in X-Admin-Key, or with a short-lived bearer token issued in exchange
// for that key.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/zargusta/fundtracker/internal/http/respond"
)

const (
	KeyHeader = "X-Admin-Key"

	issuer  = "zargusta"
	subject = "treasurer"
)

var ErrSessionsDisabled = errors.New("sessions are disabled: no signing secret configured")

type Authenticator struct {
	key    string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Authenticator)

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// New builds an Authenticator. An empty key locks the admin API; an empty secret
// disables bearer tokens.
func New(key, secret string, ttl time.Duration, opts ...Option) *Authenticator {
	a := &Authenticator{
		key:    key,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// ValidKey reports whether r carries the admin key.
func (a *Authenticator) ValidKey(r *http.Request) bool {
	got := r.Header.Get(KeyHeader)
	if a.key == "" || got == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(got), []byte(a.key)) == 1
}

// Issue signs a session token valid for the configured TTL.
func (a *Authenticator) Issue() (string, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, ErrSessionsDisabled
	}

	now := a.now()
	expires := now.Add(a.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}

	return signed, expires, nil
}

func (a *Authenticator) validToken(r *http.Request) bool {
	if len(a.secret) == 0 {
		return false
	}

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return false
	}

	_, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(subject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)

	return err == nil
}

// Middleware rejects requests that carry neither the admin key nor a valid token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.ValidKey(r) && !a.validToken(r) {
			respond.Error(w, r, fmt.Errorf("%w: admin key or session token required", respond.ErrUnauthorized))
			return
		}

		next.ServeHTTP(w, r)
	})
}
