package main

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpiredCredential = errors.New("expired credential")
)

// SessionChecker reports whether the session a token was issued under is
// still live. Logout revokes the session, which invalidates the token even
// before its expiry.
type SessionChecker interface {
	Alive(ctx context.Context, sessionID string) (bool, error)
}

// Verifier resolves a connection credential to a user identity. It only
// resolves; registering the connection is the caller's job.
type Verifier struct {
	secret   []byte
	sessions SessionChecker
}

// NewVerifier builds a verifier for HMAC-signed tokens. sessions may be nil,
// in which case tokens are trusted until expiry.
func NewVerifier(secret string, sessions SessionChecker) *Verifier {
	return &Verifier{secret: []byte(secret), sessions: sessions}
}

type tokenClaims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

func (v *Verifier) Verify(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", ErrMissingCredential
	}
	token, err := jwt.ParseWithClaims(credential, &tokenClaims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredCredential
		}
		return "", ErrInvalidCredential
	}
	claims, ok := token.Claims.(*tokenClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidCredential
	}
	if v.sessions != nil && claims.SessionID != "" {
		alive, err := v.sessions.Alive(ctx, claims.SessionID)
		if err != nil {
			return "", ErrInvalidCredential
		}
		if !alive {
			return "", ErrExpiredCredential
		}
	}
	return claims.Subject, nil
}
