package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
	ErrUnknownRole  = errors.New("unknown role in token")
)

type Role string

const (
	RolePatient  Role = "PATIENT"
	RoleDoctor   Role = "DOCTOR"
	RoleProvider Role = "PROVIDER"
)

// Identity is the authenticated caller, extracted from the bearer token issued
// by the auth service. It is passed explicitly into every workflow operation.
type Identity struct {
	UserID   string
	Name     string
	Role     Role
	Provider string // insurance company name, set for provider accounts only
}

// Claims mirrors the token payload issued by the auth service.
type Claims struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Provider string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken validates an HS256 token and returns the caller identity.
func ParseToken(raw, secret string) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenInvalid
	}
	if !token.Valid {
		return Identity{}, ErrTokenInvalid
	}

	role := Role(claims.Role)
	switch role {
	case RolePatient, RoleDoctor, RoleProvider:
	default:
		return Identity{}, ErrUnknownRole
	}

	return Identity{
		UserID:   claims.UserID,
		Name:     claims.Name,
		Role:     role,
		Provider: claims.Provider,
	}, nil
}

// GenerateToken signs an HS256 token for the given identity. The gateway never
// issues tokens in production; this exists for the stub upstream, the
// simulator, and tests.
func GenerateToken(id Identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   id.UserID,
		Name:     id.Name,
		Role:     string(id.Role),
		Provider: id.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "insurego",
			Subject:   id.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

type contextKey string

const (
	identityKey contextKey = "identity"
	tokenKey    contextKey = "bearer_token"
)

// WithIdentity stores the authenticated identity on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithToken stores the raw bearer token so the upstream client can forward it.
func WithToken(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, tokenKey, raw)
}

// TokenFromContext retrieves the raw bearer token, if any.
func TokenFromContext(ctx context.Context) string {
	if raw, ok := ctx.Value(tokenKey).(string); ok {
		return raw
	}
	return ""
}
