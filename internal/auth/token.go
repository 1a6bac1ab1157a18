// Package auth turns bearer tokens into user identities.
// Tokens are HS256 JWTs whose subject is the user id.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
)

const issuer = "flockr"

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer signs and verifies access tokens with a shared secret.
type Issuer struct {
	key []byte
	now func() time.Time
}

// NewIssuer returns an Issuer using secret as the HMAC key.
func NewIssuer(secret string) *Issuer {
	return &Issuer{key: []byte(secret), now: time.Now}
}

// Sign returns a token identifying userID that expires after ttl.
func (i *Issuer) Sign(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := i.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := tok.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("auth.Issuer.Sign: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns the user id it names. Every failure wraps
// domain.ErrUnauthenticated.
func (i *Issuer) Parse(token string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return i.key, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, fmt.Errorf("%w: token has expired", domain.ErrUnauthenticated)
		}
		return uuid.Nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthenticated)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid subject", domain.ErrUnauthenticated)
	}
	return id, nil
}

// TokenFromRequest reads a bearer token from the Authorization header, or
// from the "token" query parameter for websocket clients that cannot set
// headers.
func TokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") && strings.TrimSpace(tok) != "" {
			return strings.TrimSpace(tok), nil
		}
		return "", fmt.Errorf("%w: malformed authorization header", domain.ErrUnauthenticated)
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q, nil
	}
	return "", fmt.Errorf("%w: no token provided", domain.ErrUnauthenticated)
}
