package auth

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/fastygo/dashboard/domain"
)

// Claim names read from the identity provider.
const (
	ClaimEmail         = "email"
	ClaimName          = "name"
	ClaimPicture       = "picture"
	ClaimSubject       = "sub"
	ClaimEmailVerified = "email_verified"
	ClaimExpiry        = "exp"
)

// Identity is the ambient session/identity collaborator consulted by the gate.
type Identity interface {
	IsLoggedIn() bool
	Claim(name string) (any, bool)
}

// ClaimSet is an Identity backed by a plain claims map, as stored in a
// session or carried by a bearer token.
type ClaimSet struct {
	LoggedIn bool
	Claims   map[string]any
}

// NewClaimSet returns a logged-in identity for claims.
func NewClaimSet(claims map[string]any) *ClaimSet {
	return &ClaimSet{LoggedIn: true, Claims: claims}
}

func (c *ClaimSet) IsLoggedIn() bool {
	return c != nil && c.LoggedIn
}

func (c *ClaimSet) Claim(name string) (any, bool) {
	if c == nil || c.Claims == nil {
		return nil, false
	}
	v, ok := c.Claims[name]
	return v, ok
}

// PrincipalClaims converts a principal back into the claim map a session stores.
func PrincipalClaims(p *domain.Principal) map[string]any {
	if p == nil {
		return nil
	}
	claims := map[string]any{
		ClaimEmail:         p.Email,
		ClaimSubject:       p.SubjectID,
		ClaimEmailVerified: p.EmailVerified,
	}
	if p.Name != "" {
		claims[ClaimName] = p.Name
	}
	if p.PictureURL != "" {
		claims[ClaimPicture] = p.PictureURL
	}
	if p.ExpiresAt != nil {
		claims[ClaimExpiry] = p.ExpiresAt.Unix()
	}
	return claims
}

// principalFromIdentity extracts the principal claims. Any malformed claim is an error.
func principalFromIdentity(id Identity) (*domain.Principal, error) {
	email, err := stringClaim(id, ClaimEmail)
	if err != nil {
		return nil, err
	}
	if email == "" {
		return nil, fmt.Errorf("claim %q missing", ClaimEmail)
	}

	p := &domain.Principal{Email: email}
	if p.Name, err = stringClaim(id, ClaimName); err != nil {
		return nil, err
	}
	if p.PictureURL, err = stringClaim(id, ClaimPicture); err != nil {
		return nil, err
	}
	if p.SubjectID, err = stringClaim(id, ClaimSubject); err != nil {
		return nil, err
	}
	if p.EmailVerified, err = boolClaim(id, ClaimEmailVerified); err != nil {
		return nil, err
	}
	if p.ExpiresAt, err = timeClaim(id, ClaimExpiry); err != nil {
		return nil, err
	}
	return p, nil
}

func stringClaim(id Identity, name string) (string, error) {
	v, ok := id.Claim(name)
	if !ok || v == nil {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("claim %q: unexpected type %T", name, v)
	}
}

func boolClaim(id Identity, name string) (bool, error) {
	v, ok := id.Claim(name)
	if !ok || v == nil {
		return false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("claim %q: %w", name, err)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("claim %q: unexpected type %T", name, v)
	}
}

func timeClaim(id Identity, name string) (*time.Time, error) {
	v, ok := id.Claim(name)
	if !ok || v == nil {
		return nil, nil
	}

	var seconds int64
	switch t := v.(type) {
	case time.Time:
		return &t, nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("claim %q: not a finite number", name)
		}
		seconds = int64(t)
	case int64:
		seconds = t
	case int:
		seconds = int64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return nil, fmt.Errorf("claim %q: %w", name, err)
		}
		seconds = n
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("claim %q: %w", name, err)
		}
		seconds = n
	default:
		return nil, fmt.Errorf("claim %q: unexpected type %T", name, v)
	}

	ts := time.Unix(seconds, 0)
	return &ts, nil
}

func isNilIdentity(id Identity) bool {
	if id == nil {
		return true
	}
	v := reflect.ValueOf(id)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Ptr, reflect.Interface, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
