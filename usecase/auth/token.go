package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fastygo/dashboard/domain"
)

const claimRole = "role"

var ErrTokenSecretMissing = errors.New("jwt secret is not configured")

// Tokens issues and verifies HS256 bearer tokens that carry principal claims.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret, issuer string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tokens{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs a token for p. The role claim is informational only; the gate
// always resolves the role from the store.
func (t *Tokens) Issue(p *domain.Principal, role domain.Role) (string, time.Time, error) {
	if len(t.secret) == 0 {
		return "", time.Time{}, ErrTokenSecretMissing
	}
	if p == nil || p.Email == "" {
		return "", time.Time{}, domain.ErrInvalidPayload
	}

	now := t.now()
	expiresAt := now.Add(t.ttl)
	if p.ExpiresAt != nil && p.ExpiresAt.Before(expiresAt) {
		expiresAt = *p.ExpiresAt
	}

	claims := jwt.MapClaims{}
	for k, v := range PrincipalClaims(p) {
		claims[k] = v
	}
	claims[ClaimExpiry] = expiresAt.Unix()
	claims["iat"] = now.Unix()
	claims["iss"] = t.issuer
	if role != "" {
		claims[claimRole] = role.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies raw and returns its claims as a logged-in identity.
func (t *Tokens) Parse(raw string) (*ClaimSet, error) {
	if len(t.secret) == 0 {
		return nil, ErrTokenSecretMissing
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "invalid bearer token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if t.issuer != "" && !claims.VerifyIssuer(t.issuer, true) {
		return nil, domain.NewError(domain.ErrCodeUnauthorized, "unexpected token issuer")
	}
	return NewClaimSet(map[string]any(claims)), nil
}
