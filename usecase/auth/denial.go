package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/fastygo/dashboard/domain"
)

type DenialReason string

const (
	ReasonUnauthenticated DenialReason = "unauthenticated"
	ReasonForbidden       DenialReason = "forbidden"
)

const (
	defaultUnauthenticatedMessage = "You must be signed in to access this page."
	defaultForbiddenMessage       = "You do not have the permissions required."
)

// Denial is returned by the guards when the protected operation must not run.
// It unwraps to domain.ErrUnauthorized or domain.ErrForbidden.
type Denial struct {
	Reason  DenialReason
	Role    domain.Role
	Allowed []domain.Role
	Message string
}

func (d *Denial) Error() string {
	if d == nil {
		return ""
	}
	if d.Reason == ReasonForbidden {
		return fmt.Sprintf("%s (role %q, required one of [%s])", d.Message, d.Role, strings.Join(domain.RoleStrings(d.Allowed), ", "))
	}
	return d.Message
}

func (d *Denial) Unwrap() error {
	if d == nil {
		return nil
	}
	if d.Reason == ReasonForbidden {
		return domain.ErrForbidden
	}
	return domain.ErrUnauthorized
}

// Effect renders a denial to the caller, for example a sign-in prompt.
// Guards invoke it once, then stop the protected operation.
type Effect func(ctx context.Context, denial *Denial)

// Operation is a protected unit of work.
type Operation func(ctx context.Context, id Identity) error
