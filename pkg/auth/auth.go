// Package auth is the pluggable identity collaborator for the
// websocket handshake (§4.5): every connection carries a bearer token,
// validated once at ServeHTTP, whose player identity then binds to
// that connection for every subsequent message. Mirrors the
// interface-plus-swappable-implementations shape of
// internal/dealsource.DealSource and pkg/stats.Sink — pkg/transport
// depends only on Validator, never on a concrete token scheme.
package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Validator derives a caller's trusted player identity from a bearer
// token presented at connection time. A non-nil error means the
// handshake must be refused; the returned PlayerID is authoritative
// for every message the connection sends afterward and is never
// re-read from client-supplied payload fields.
type Validator interface {
	Validate(token string) (playerID string, err error)
}

// claims is the payload of a token minted by Issuer: just enough to
// bind a connection to one player identity, matching §4.5's "identity
// derived from the token" requirement without taking on a full OIDC
// claim set this module has no use for.
type claims struct {
	jwt.RegisteredClaims
	PlayerID string `json:"pid"`
}

// JWTValidator checks an HS256-signed bearer token against a shared
// server secret and returns the player id it attests to. This is the
// production Validator: a client cannot mint a token for a player id
// it doesn't control without the secret, satisfying "may not be
// spoofed" without standing up a separate auth service (§1 only scopes
// out *issuing* credentials — user registration/password auth — not
// this session-layer validation step).
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator builds a JWTValidator keyed by secret. The same
// secret must be used by whatever mints tokens (Issuer, or an external
// login service sharing this key out of band).
func NewJWTValidator(secret []byte) *JWTValidator {
	return &JWTValidator{secret: append([]byte(nil), secret...)}
}

func (v *JWTValidator) Validate(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("auth: no bearer token presented")
	}
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.PlayerID == "" {
		return "", fmt.Errorf("auth: token carries no player id")
	}
	return c.PlayerID, nil
}

// Issuer mints tokens a JWTValidator accepts, for local dev and for
// tests that need a real signed handshake rather than the Static
// validator below. A production deployment would instead point its
// login flow's secret at the same value passed to NewJWTValidator, per
// §1's "user registration / password auth is out of scope" — this
// module only ever validates, but a convenience issuer under the same
// key keeps the dev server runnable standalone.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an Issuer keyed by secret, minting tokens valid for
// ttl.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: append([]byte(nil), secret...), ttl: ttl}
}

// Mint returns a signed bearer token asserting playerID.
func (i *Issuer) Mint(playerID string) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		PlayerID: playerID,
	})
	return tok.SignedString(i.secret)
}

// Static is a test/dev-only Validator that trusts the token verbatim
// as the player id, optionally gated behind a fixed shared password so
// a stray production -production flag doesn't silently leave the
// handshake wide open. Never wired in by default in cmd/buckeuchresrv;
// only the JWTValidator is.
type Static struct {
	// RequirePassword, if non-empty, is matched in constant time
	// against the trailing ":password" suffix of the token, so a test
	// harness can still exercise "handshake rejected" paths.
	RequirePassword string
}

func (s Static) Validate(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("auth: no bearer token presented")
	}
	if s.RequirePassword == "" {
		return token, nil
	}
	playerID, pass, ok := splitLast(token, ':')
	if !ok || subtle.ConstantTimeCompare([]byte(pass), []byte(s.RequirePassword)) != 1 {
		return "", fmt.Errorf("auth: invalid static token")
	}
	return playerID, nil
}

func splitLast(s string, sep byte) (before, after string, ok bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
