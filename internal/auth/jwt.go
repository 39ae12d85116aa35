// Package auth issues and checks bearer tokens, hashes passwords and
// handles Google sign-in.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "cardbook"

// UsageResetPassword marks a token that may only be used to reset the
// password of its subject. Access tokens carry no usage.
const UsageResetPassword = "RESET_PASSWORD"

var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrWrongUsage   = errors.New("auth: token used for the wrong purpose")
)

// TokenService signs HS256 JWTs for access and password reset.
type TokenService struct {
	secret      []byte
	expire      time.Duration
	resetExpire time.Duration
}

// NewTokenService requires a secret of at least 16 characters.
func NewTokenService(secret string, expire, resetExpire time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if expire <= 0 || resetExpire <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	return &TokenService{secret: []byte(secret), expire: expire, resetExpire: resetExpire}, nil
}

type claims struct {
	Usage string `json:"usage,omitempty"`
	jwt.RegisteredClaims
}

// Generate returns an access token for userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.sign(userID, "", s.expire)
}

// GenerateReset returns a short-lived token accepted only by ValidateReset.
func (s *TokenService) GenerateReset(userID string) (string, error) {
	return s.sign(userID, UsageResetPassword, s.resetExpire)
}

// Validate checks an access token and returns its subject. Reset tokens
// are rejected with ErrWrongUsage.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	return s.validate(tokenStr, "")
}

// ValidateReset checks a reset token and returns its subject.
func (s *TokenService) ValidateReset(tokenStr string) (string, error) {
	return s.validate(tokenStr, UsageResetPassword)
}

func (s *TokenService) sign(userID, usage string, d time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Usage: usage,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) validate(tokenStr, usage string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{},
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Usage != usage {
		return "", ErrWrongUsage
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
