package api

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the resolved user behind a connection token
type Identity struct {
	UserID string
	Name   string
	Email  string
}

// IdentityResolver validates a connection token and returns the user behind
// it. The transport cannot carry custom headers, so the token arrives as a
// query parameter on the upgrade request.
type IdentityResolver interface {
	Resolve(token string) (Identity, error)
}

// JWTIdentityResolver resolves identities from HMAC-signed JWTs
type JWTIdentityResolver struct {
	secret        []byte
	signingMethod string
}

// NewJWTIdentityResolver creates a resolver for the given shared secret
func NewJWTIdentityResolver(secret, signingMethod string) *JWTIdentityResolver {
	if signingMethod == "" {
		signingMethod = "HS256"
	}
	return &JWTIdentityResolver{
		secret:        []byte(secret),
		signingMethod: signingMethod,
	}
}

// Resolve parses and verifies the token and extracts the identity claims
func (r *JWTIdentityResolver) Resolve(tokenStr string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, fmt.Errorf("missing token")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != r.signingMethod {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return r.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("invalid or expired token: %w", err)
	}
	if !token.Valid {
		return Identity{}, fmt.Errorf("invalid token")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("token missing sub claim")
	}
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)

	// Fall back through email to the user id so every session has a
	// usable display name
	if name == "" {
		name = email
	}
	if name == "" {
		name = sub
	}

	return Identity{UserID: sub, Name: name, Email: email}, nil
}
