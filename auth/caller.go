// Package auth turns credentials issued by the account service into a Caller.
// Issuing and revoking credentials is not done here.
package auth

import (
	"context"
	"fmt"
	"slices"
	"time"

	"wagl-backend/domain"
	"wagl-backend/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"
	RoleHost  = "host"
	issuer    = "wagl"
)

// Caller is the identity behind a request.
type Caller struct {
	UserID string
	Roles  []string
}

func (c Caller) IsAnonymous() bool { return c.UserID == "" }

func (c Caller) IsAdmin() bool { return slices.Contains(c.Roles, RoleAdmin) }

// CanManageSession tells whether the caller may issue invites for the session.
func (c Caller) CanManageSession(session domain.ChatSession) bool {
	if c.IsAnonymous() {
		return false
	}
	return c.IsAdmin() || session.CreatedByUserID == c.UserID
}

// Claims defines the data stored inside the JWT.
type Claims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// ParseCaller validates the signature and expiration of an HS256 token.
func ParseCaller(secret []byte, token string) (Caller, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Caller{}, errors.ErrInvalidToken
	}
	return Caller{UserID: claims.UserID, Roles: claims.Roles}, nil
}

// SignCaller creates a signed token. The server only verifies tokens; this is
// used by tooling and tests.
func SignCaller(secret []byte, caller Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: caller.UserID,
		Roles:  caller.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

type contextKey string

const callerKey contextKey = "caller"

func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns an anonymous caller when none was attached.
func CallerFromContext(ctx context.Context) Caller {
	caller, _ := ctx.Value(callerKey).(Caller)
	return caller
}
