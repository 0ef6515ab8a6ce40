package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the authenticated identity: the user's SOEID and the
// project the token was issued for. Tokens are long-lived service
// credentials and carry no expiry.
type Claims struct {
	SOEID     string `json:"soeid"`
	ProjectID string `json:"project_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens with a shared secret.
type TokenManager struct {
	secret []byte
}

// NewTokenManager creates a manager over the shared signing secret.
func NewTokenManager(secret string) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	return &TokenManager{secret: []byte(secret)}, nil
}

// Generate issues a token for the given identity.
func (m *TokenManager) Generate(soeid, projectID string) (string, error) {
	if soeid == "" {
		return "", fmt.Errorf("soeid cannot be empty")
	}
	if projectID == "" {
		return "", fmt.Errorf("project_id cannot be empty")
	}

	claims := Claims{
		SOEID:     soeid,
		ProjectID: projectID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses and validates a token, returning its claims. Only HS256
// signatures under the shared secret are accepted.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.SOEID == "" || claims.ProjectID == "" {
		return nil, fmt.Errorf("token missing identity claims")
	}
	return claims, nil
}
