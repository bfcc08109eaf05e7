// Package auth issues and verifies the session tokens shared by the REST
// API and the socket handshake.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "taskboard"

var ErrInvalidToken = errors.New("invalid token")

// Claims identify the session holder. Name and Email are display values
// for presence events.
type Claims struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	key    []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewTokenManager defaults a non-positive ttl to one hour.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{
		key: []byte(secret),
		ttl: ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(issuer),
		),
	}
}

func (tm *TokenManager) GenerateToken(userID, orgID, name, email string) (string, error) {
	issued := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		OrgID:  orgID,
		Name:   name,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(tm.ttl)),
		},
	}).SignedString(tm.key)
}

// ValidateToken returns the claims of a well-signed, unexpired token that
// names a user. Every failure wraps ErrInvalidToken.
func (tm *TokenManager) ValidateToken(raw string) (*Claims, error) {
	var claims Claims
	if _, err := tm.parser.ParseWithClaims(raw, &claims, tm.keyFunc); err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (tm *TokenManager) keyFunc(*jwt.Token) (any, error) {
	return tm.key, nil
}
