package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/repository"
)

const defaultStoreTimeout = 2 * time.Second

// GateConfig holds the deployment settings the gate needs.
type GateConfig struct {
	// AdminEmails is consulted only when the user store cannot be reached.
	AdminEmails  []string
	StoreTimeout time.Duration
}

// Caller is the outcome of a successful authorization.
// Role is empty when only authentication was required.
type Caller struct {
	Principal *domain.Principal
	Role      domain.Role
}

// Gate decides whether a protected operation may run for the current caller.
// It never caches decisions: every guard call re-reads the identity.
type Gate struct {
	users   repository.UserRepository
	admins  map[string]struct{}
	timeout time.Duration
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func NewGate(users repository.UserRepository, cfg GateConfig, logger *zap.Logger, metrics *Metrics) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		if normalized := domain.NormalizeEmail(email); normalized != "" {
			admins[normalized] = struct{}{}
		}
	}
	return &Gate{
		users:   users,
		admins:  admins,
		timeout: cfg.StoreTimeout,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("github.com/fastygo/dashboard/usecase/auth"),
		now:     time.Now,
	}
}

// IsAuthenticated reports whether id belongs to a logged-in caller.
// A missing identity or one that panics is treated as anonymous.
func (g *Gate) IsAuthenticated(id Identity) (ok bool) {
	if isNilIdentity(id) {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("identity_unavailable", zap.Any("panic", r))
			ok = false
		}
	}()
	return id.IsLoggedIn()
}

// CurrentPrincipal extracts the caller's claims, or reports absent when the
// caller is anonymous or the claims are malformed.
func (g *Gate) CurrentPrincipal(id Identity) (p *domain.Principal, ok bool) {
	if !g.IsAuthenticated(id) {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("identity_claims_unreadable", zap.Any("panic", r))
			p, ok = nil, false
		}
	}()
	principal, err := principalFromIdentity(id)
	if err != nil {
		g.logger.Warn("identity_claims_malformed", zap.Error(err))
		return nil, false
	}
	return principal, true
}

// CheckSession is IsAuthenticated plus the token expiry carried in the exp claim.
func (g *Gate) CheckSession(id Identity) bool {
	p, ok := g.CurrentPrincipal(id)
	if !ok {
		return false
	}
	return !p.IsExpired(g.now())
}

// ResolveRole returns the caller's role from the user store, creating the user
// with role "user" on first sight. The stored role always wins over the admin
// allow-list; the allow-list only decides when the store fails or times out.
// Store errors are logged and never returned.
func (g *Gate) ResolveRole(ctx context.Context, p *domain.Principal) domain.Role {
	if p == nil {
		return domain.RoleAnonymous
	}

	ctx, span := g.tracer.Start(ctx, "auth.ResolveRole")
	defer span.End()

	storeCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	role, outcome, err := g.lookupOrCreate(storeCtx, p)
	if err != nil {
		role = domain.RoleUser
		if g.isAllowListed(p.Email) {
			role = domain.RoleAdmin
		}
		span.RecordError(err)
		g.metrics.resolved(outcomeFallback)
		g.logger.Error("role_resolution_failed",
			zap.String("email", p.Email),
			zap.String("fallback_role", role.String()),
			zap.Error(err))
		return role
	}

	span.SetAttributes(attribute.String("auth.role", role.String()), attribute.String("auth.outcome", outcome))
	g.metrics.resolved(outcome)
	return role
}

// RequireAuthenticated returns nil when the caller is logged in. Otherwise it
// invokes onFail and returns a *Denial; the caller must not continue.
func (g *Gate) RequireAuthenticated(ctx context.Context, id Identity, onFail Effect) error {
	if g.IsAuthenticated(id) {
		return nil
	}
	return g.deny(ctx, &Denial{
		Reason:  ReasonUnauthenticated,
		Role:    domain.RoleAnonymous,
		Message: defaultUnauthenticatedMessage,
	}, onFail)
}

// RequireRole applies RequireAuthenticated, then checks the resolved role against allowed.
func (g *Gate) RequireRole(ctx context.Context, id Identity, allowed []domain.Role, onFail Effect) error {
	_, err := g.Authorize(ctx, id, allowed, onFail)
	return err
}

// Authorize is RequireRole returning the resolved caller. With no allowed roles
// it only requires authentication and leaves Caller.Role empty. A returned
// Caller always has a Principal.
func (g *Gate) Authorize(ctx context.Context, id Identity, allowed []domain.Role, onFail Effect) (Caller, error) {
	if err := g.RequireAuthenticated(ctx, id, onFail); err != nil {
		return Caller{}, err
	}

	// Logged in but without readable claims: nothing downstream can act for
	// this caller, so it is treated like an anonymous one.
	principal, ok := g.CurrentPrincipal(id)
	if !ok {
		return Caller{}, g.deny(ctx, &Denial{
			Reason:  ReasonUnauthenticated,
			Role:    domain.RoleAnonymous,
			Allowed: allowed,
			Message: defaultUnauthenticatedMessage,
		}, onFail)
	}
	if len(allowed) == 0 {
		return Caller{Principal: principal}, nil
	}

	role := g.ResolveRole(ctx, principal)
	if !role.In(allowed...) {
		return Caller{}, g.deny(ctx, &Denial{
			Reason:  ReasonForbidden,
			Role:    role,
			Allowed: allowed,
			Message: defaultForbiddenMessage,
		}, onFail)
	}
	return Caller{Principal: principal, Role: role}, nil
}

// Protect wraps op so it only runs for callers that pass the guards.
// With no allowed roles only authentication is required.
func (g *Gate) Protect(allowed []domain.Role, onFail Effect, op Operation) Operation {
	return func(ctx context.Context, id Identity) error {
		var err error
		if len(allowed) == 0 {
			err = g.RequireAuthenticated(ctx, id, onFail)
		} else {
			err = g.RequireRole(ctx, id, allowed, onFail)
		}
		if err != nil {
			return err
		}
		return op(ctx, id)
	}
}

func (g *Gate) lookupOrCreate(ctx context.Context, p *domain.Principal) (domain.Role, string, error) {
	user, err := g.users.FindByEmail(ctx, p.Email)
	if err == nil {
		return user.Role, outcomeStored, nil
	}
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		return "", "", err
	}

	result, err := g.users.Insert(ctx, domain.NewUserFromPrincipal(p))
	if err != nil {
		return "", "", err
	}

	switch result {
	case repository.Inserted:
		g.logger.Info("user_created", zap.String("email", p.Email), zap.String("role", domain.RoleUser.String()))
		return domain.RoleUser, outcomeCreated, nil
	case repository.AlreadyExists:
		role, err := g.reread(ctx, p)
		return role, outcomeReread, err
	default:
		return "", "", fmt.Errorf("unexpected insert result %d", result)
	}
}

// reread handles a concurrent first login: someone else created the row.
func (g *Gate) reread(ctx context.Context, p *domain.Principal) (domain.Role, error) {
	user, err := g.users.FindByEmail(ctx, p.Email)
	if err == nil {
		return user.Role, nil
	}
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) || p.SubjectID == "" {
		return "", err
	}
	user, err = g.users.FindBySubject(ctx, p.SubjectID)
	if err != nil {
		return "", errors.Join(errors.New("user reported as existing but not found"), err)
	}
	return user.Role, nil
}

func (g *Gate) isAllowListed(email string) bool {
	_, ok := g.admins[domain.NormalizeEmail(email)]
	return ok
}

func (g *Gate) deny(ctx context.Context, d *Denial, onFail Effect) error {
	g.metrics.denied(d.Reason)
	g.logger.Debug("access_denied",
		zap.String("reason", string(d.Reason)),
		zap.String("role", d.Role.String()),
		zap.Strings("allowed", domain.RoleStrings(d.Allowed)))
	if onFail != nil {
		onFail(ctx, d)
	}
	return d
}
