// Package auth validates the bearer credential presented during the
// WebSocket handshake. Browser clients cannot attach custom headers to the
// upgrade request, so the token travels as a query parameter; callers must
// keep that parameter out of every log line.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Claims carries the identity extracted from a verified credential.
type Claims struct {
	Subject string
	Roles   []string
}

// Verifier validates HS256-signed JWTs presented at connection time.
// Verification is pure: no state is created for rejected attempts.
type Verifier struct {
	secret []byte

	// allowExpired skips the exp claim check while still verifying the
	// signature. Off by default; see NewVerifier.
	allowExpired bool
}

// NewVerifier creates a verifier with the given signing secret. Expiry is
// enforced. Use NewVerifierAllowExpired only where long-lived chat sessions
// must outlive their token.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// NewVerifierAllowExpired creates a verifier that accepts expired tokens.
// The signature and subject claim are still required.
func NewVerifierAllowExpired(secret []byte) *Verifier {
	return &Verifier{secret: secret, allowExpired: true}
}

// Verify validates the token signature and extracts the subject and roles.
func (v *Verifier) Verify(tokenString string) (Claims, error) {
	if tokenString == "" {
		return Claims{}, fmt.Errorf("%w: empty credential", ErrInvalidToken)
	}

	var opts []jwt.ParserOption
	if v.allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	sub, ok := mapClaims["sub"].(string)
	if !ok || sub == "" {
		return Claims{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	claims := Claims{Subject: sub}
	if raw, ok := mapClaims["roles"].([]any); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				claims.Roles = append(claims.Roles, s)
			}
		}
	}
	return claims, nil
}

// Generate creates a signed token for the given subject with an expiry.
// Used by tests and operational tooling; the gateway never mints tokens for
// clients.
func (v *Verifier) Generate(subject string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
