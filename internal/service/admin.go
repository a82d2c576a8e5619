package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid admin token")
	ErrNoSecret     = errors.New("admin secret not configured")
)

const adminIssuer = "leadkit"

// AdminClaims identifies an operator calling the admin API.
type AdminClaims struct {
	Subject string
	Expires time.Time
}

// AdminTokens issues and verifies HS256 tokens for the admin API.
type AdminTokens struct {
	secret []byte
}

// NewAdminTokens creates a token service. An empty secret disables admin
// access entirely.
func NewAdminTokens(secret string) *AdminTokens {
	return &AdminTokens{secret: []byte(secret)}
}

// Enabled reports whether a signing secret is configured.
func (t *AdminTokens) Enabled() bool {
	return len(t.secret) > 0
}

// Issue signs a token for subject valid for ttl.
func (t *AdminTokens) Issue(subject string, ttl time.Duration) (string, error) {
	if !t.Enabled() {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    adminIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate verifies signature, issuer and expiry.
func (t *AdminTokens) Validate(tokenStr string) (*AdminClaims, error) {
	if !t.Enabled() {
		return nil, ErrNoSecret
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithIssuer(adminIssuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	out := &AdminClaims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		out.Expires = claims.ExpiresAt.Time
	}
	return out, nil
}
