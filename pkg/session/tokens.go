package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors for session token operations.
var (
	ErrInvalidToken        = errors.New("invalid session token")
	ErrExpiredToken        = errors.New("session token has expired")
	ErrTokenSigningFailed  = errors.New("failed to sign session token")
	ErrInvalidSecretLength = errors.New("session secret must be at least 32 characters")
)

// Claims are the JWT claims of a session token. The token carries only
// the session ID; all state lives in the session file.
type Claims struct {
	jwt.RegisteredClaims

	SessionID string `json:"sid"`
}

// TokenConfig holds configuration for session token generation.
type TokenConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Issuer is the token issuer claim. Default: "groupbin"
	Issuer string

	// Lifetime is how long issued tokens stay valid. Default: 168h.
	Lifetime time.Duration
}

// TokenService issues and validates session tokens.
type TokenService struct {
	config TokenConfig
}

// NewTokenService creates a token service with the given configuration.
func NewTokenService(config TokenConfig) (*TokenService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}

	if config.Issuer == "" {
		config.Issuer = "groupbin"
	}
	if config.Lifetime == 0 {
		config.Lifetime = 168 * time.Hour
	}

	return &TokenService{config: config}, nil
}

// Lifetime returns the configured token lifetime.
func (s *TokenService) Lifetime() time.Duration {
	return s.config.Lifetime
}

// Issue creates a signed token for the given session ID.
func (s *TokenService) Issue(sessionID string, now time.Time) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Lifetime)),
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", ErrTokenSigningFailed
	}
	return signed, nil
}

// Validate parses a token and returns its claims.
// Returns an error if the token is invalid or expired.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
