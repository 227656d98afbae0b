// Package auth establishes who is on the other end of a connection.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/colonyops/huddle/internal/core/config"
	"github.com/colonyops/huddle/internal/core/session"
)

// ErrUnauthorized is returned when a request carries no acceptable identity.
var ErrUnauthorized = errors.New("unauthorized")

// Provider resolves the identity behind an upgrade request. A nil user with
// a nil error means the connection is anonymous.
type Provider interface {
	Authenticate(r *http.Request) (*session.User, error)
}

// Anonymous accepts every request without an identity. User ids then come
// from request payloads.
type Anonymous struct{}

func (Anonymous) Authenticate(*http.Request) (*session.User, error) {
	return nil, nil
}

// Claims are the token claims the server understands. The subject is the
// user id; name is the display name.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWT validates HS256 bearer tokens.
type JWT struct {
	secret   []byte
	issuer   string
	required bool
}

// NewJWT creates a provider. When required is false, requests without a token
// are anonymous; requests with an invalid token are always rejected.
func NewJWT(secret, issuer string, required bool) *JWT {
	return &JWT{secret: []byte(secret), issuer: issuer, required: required}
}

// New builds the provider described by the auth config.
func New(cfg config.AuthConfig) (Provider, error) {
	if cfg.JWTSecret == "" {
		if cfg.Required {
			return nil, fmt.Errorf("auth.required needs auth.jwt_secret")
		}
		return Anonymous{}, nil
	}
	return NewJWT(cfg.JWTSecret, cfg.JWTIssuer, cfg.Required), nil
}

// Authenticate reads the token from the Authorization header, or from the
// access_token query parameter for browser clients that cannot set headers
// on websocket upgrades.
func (p *JWT) Authenticate(r *http.Request) (*session.User, error) {
	raw := tokenFrom(r)
	if raw == "" {
		if p.required {
			return nil, fmt.Errorf("%w: missing token", ErrUnauthorized)
		}
		return nil, nil
	}
	return p.Verify(raw)
}

// Verify parses and validates a token string.
func (p *JWT) Verify(raw string) (*session.User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5 * time.Second),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}

	return &session.User{ID: claims.Subject, DisplayName: claims.Name}, nil
}

// Sign issues a token for a user. It is used by tests and tooling.
func (p *JWT) Sign(user session.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("access_token")
}
