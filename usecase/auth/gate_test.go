package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/repository"
	"github.com/fastygo/dashboard/repository/memory"
)

var errStoreDown = errors.New("connection refused")

// failingUsers fails every call, as when the database is unreachable.
type failingUsers struct{}

func (failingUsers) FindByEmail(context.Context, string) (*domain.User, error) {
	return nil, errStoreDown
}
func (failingUsers) FindBySubject(context.Context, string) (*domain.User, error) {
	return nil, errStoreDown
}
func (failingUsers) Insert(context.Context, *domain.User) (repository.InsertResult, error) {
	return 0, errStoreDown
}
func (failingUsers) Update(context.Context, *domain.User) error { return errStoreDown }
func (failingUsers) List(context.Context, repository.UserFilter) ([]domain.User, error) {
	return nil, errStoreDown
}

// slowUsers blocks until the context is done.
type slowUsers struct{ failingUsers }

func (slowUsers) FindByEmail(ctx context.Context, _ string) (*domain.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// racingUsers reports AlreadyExists on insert, as when another request won the race.
type racingUsers struct {
	*memory.UserRepository
	once sync.Once
}

func (r *racingUsers) Insert(ctx context.Context, user *domain.User) (repository.InsertResult, error) {
	var res repository.InsertResult
	r.once.Do(func() {
		winner := *user
		winner.Role = domain.RoleAdmin
		res, _ = r.UserRepository.Insert(ctx, &winner)
	})
	if res == repository.Inserted {
		return repository.AlreadyExists, nil
	}
	return r.UserRepository.Insert(ctx, user)
}

type panickyIdentity struct{}

func (panickyIdentity) IsLoggedIn() bool { panic("session store gone") }
func (panickyIdentity) Claim(string) (any, bool) { panic("session store gone") }

func newTestGate(users repository.UserRepository, admins ...string) *Gate {
	return NewGate(users, GateConfig{AdminEmails: admins, StoreTimeout: 50 * time.Millisecond}, nil, nil)
}

func loggedIn(email string) *ClaimSet {
	return NewClaimSet(map[string]any{
		ClaimEmail:   email,
		ClaimName:    "Test User",
		ClaimSubject: "sub-" + email,
	})
}

func TestIsAuthenticated(t *testing.T) {
	gate := newTestGate(memory.NewUserRepository())
	var nilClaims *ClaimSet

	tests := []struct {
		name string
		id   Identity
		want bool
	}{
		{name: "nil identity", id: nil, want: false},
		{name: "typed nil identity", id: nilClaims, want: false},
		{name: "not logged in", id: &ClaimSet{Claims: map[string]any{ClaimEmail: "a@example.com"}}, want: false},
		{name: "panicking collaborator", id: panickyIdentity{}, want: false},
		{name: "logged in", id: loggedIn("a@example.com"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.IsAuthenticated(tt.id))
		})
	}
}

func TestCurrentPrincipal(t *testing.T) {
	gate := newTestGate(memory.NewUserRepository())

	t.Run("extracts claims", func(t *testing.T) {
		id := NewClaimSet(map[string]any{
			ClaimEmail:         "a@example.com",
			ClaimName:          "Ann",
			ClaimPicture:       "https://example.com/a.png",
			ClaimSubject:       "1234",
			ClaimEmailVerified: true,
			ClaimExpiry:        float64(1893456000),
		})

		p, ok := gate.CurrentPrincipal(id)
		require.True(t, ok)
		assert.Equal(t, "a@example.com", p.Email)
		assert.Equal(t, "Ann", p.Name)
		assert.Equal(t, "https://example.com/a.png", p.PictureURL)
		assert.Equal(t, "1234", p.SubjectID)
		assert.True(t, p.EmailVerified)
		require.NotNil(t, p.ExpiresAt)
		assert.Equal(t, int64(1893456000), p.ExpiresAt.Unix())
	})

	malformed := map[string]map[string]any{
		"missing email":       {ClaimName: "Ann"},
		"email wrong type":    {ClaimEmail: 42},
		"verified wrong type": {ClaimEmail: "a@example.com", ClaimEmailVerified: []string{"yes"}},
		"exp not a number":    {ClaimEmail: "a@example.com", ClaimExpiry: "tomorrow"},
	}
	for name, claims := range malformed {
		t.Run(name, func(t *testing.T) {
			p, ok := gate.CurrentPrincipal(NewClaimSet(claims))
			assert.False(t, ok)
			assert.Nil(t, p)
		})
	}

	t.Run("anonymous", func(t *testing.T) {
		_, ok := gate.CurrentPrincipal(nil)
		assert.False(t, ok)
	})
}

func TestCheckSession(t *testing.T) {
	gate := newTestGate(memory.NewUserRepository())
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	gate.now = func() time.Time { return now }

	fresh := loggedIn("a@example.com")
	fresh.Claims[ClaimExpiry] = now.Add(time.Minute).Unix()
	stale := loggedIn("a@example.com")
	stale.Claims[ClaimExpiry] = now.Add(-time.Minute).Unix()

	assert.True(t, gate.CheckSession(fresh))
	assert.True(t, gate.CheckSession(loggedIn("a@example.com")), "no exp claim never expires")
	assert.False(t, gate.CheckSession(stale))
	assert.False(t, gate.CheckSession(nil))
}

func TestResolveRole(t *testing.T) {
	ctx := context.Background()

	t.Run("nil principal is anonymous", func(t *testing.T) {
		gate := newTestGate(memory.NewUserRepository())
		assert.Equal(t, domain.RoleAnonymous, gate.ResolveRole(ctx, nil))
	})

	t.Run("unseen email creates exactly one user", func(t *testing.T) {
		users := memory.NewUserRepository()
		gate := newTestGate(users)
		p := &domain.Principal{Email: "new@example.com", SubjectID: "s1", Name: "New"}

		assert.Equal(t, domain.RoleUser, gate.ResolveRole(ctx, p))

		assert.Equal(t, 1, users.Len())
		stored, err := users.FindByEmail(ctx, "new@example.com")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, stored.Role)
		assert.Equal(t, "s1", stored.GoogleSub)
		assert.True(t, stored.IsActive)
	})

	t.Run("stored role is returned", func(t *testing.T) {
		users := memory.NewUserRepository()
		_, err := users.Insert(ctx, &domain.User{Email: "boss@example.com", GoogleSub: "b", Role: domain.RoleAdmin})
		require.NoError(t, err)
		gate := newTestGate(users)

		assert.Equal(t, domain.RoleAdmin, gate.ResolveRole(ctx, &domain.Principal{Email: "boss@example.com"}))
		assert.Equal(t, 1, users.Len())
	})

	t.Run("stored role wins over allow-list", func(t *testing.T) {
		users := memory.NewUserRepository()
		_, err := users.Insert(ctx, &domain.User{Email: "listed@example.com", GoogleSub: "l", Role: domain.RoleUser})
		require.NoError(t, err)
		gate := newTestGate(users, "listed@example.com")

		assert.Equal(t, domain.RoleUser, gate.ResolveRole(ctx, &domain.Principal{Email: "listed@example.com"}))
	})

	t.Run("allow-list does not apply to new users", func(t *testing.T) {
		gate := newTestGate(memory.NewUserRepository(), "listed@example.com")
		assert.Equal(t, domain.RoleUser, gate.ResolveRole(ctx, &domain.Principal{Email: "listed@example.com"}))
	})

	t.Run("store failure falls back to allow-list", func(t *testing.T) {
		gate := newTestGate(failingUsers{}, "Listed@Example.com")

		assert.Equal(t, domain.RoleAdmin, gate.ResolveRole(ctx, &domain.Principal{Email: "listed@example.com"}))
		assert.Equal(t, domain.RoleUser, gate.ResolveRole(ctx, &domain.Principal{Email: "other@example.com"}))
	})

	t.Run("store timeout falls back to allow-list", func(t *testing.T) {
		gate := newTestGate(slowUsers{}, "listed@example.com")

		start := time.Now()
		role := gate.ResolveRole(ctx, &domain.Principal{Email: "listed@example.com"})

		assert.Equal(t, domain.RoleAdmin, role)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("already exists re-reads stored role", func(t *testing.T) {
		users := &racingUsers{UserRepository: memory.NewUserRepository()}
		gate := newTestGate(users)

		role := gate.ResolveRole(ctx, &domain.Principal{Email: "race@example.com", SubjectID: "r"})

		assert.Equal(t, domain.RoleAdmin, role)
		assert.Equal(t, 1, users.Len())
	})
}

func TestResolveRoleConcurrentFirstLogin(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	gate := newTestGate(users)
	p := &domain.Principal{Email: "twin@example.com", SubjectID: "twin"}

	const callers = 16
	roles := make([]domain.Role, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			roles[i] = gate.ResolveRole(ctx, p)
		}(i)
	}
	wg.Wait()

	for _, role := range roles {
		assert.Equal(t, domain.RoleUser, role)
	}
	assert.Equal(t, 1, users.Len())
}

func TestResolveRoleMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")
	gate := NewGate(failingUsers{}, GateConfig{}, nil, metrics)

	gate.ResolveRole(context.Background(), &domain.Principal{Email: "a@example.com"})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues(outcomeFallback)))
}

func TestRequireAuthenticated(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(memory.NewUserRepository())

	t.Run("anonymous is denied", func(t *testing.T) {
		var seen *Denial
		err := gate.RequireAuthenticated(ctx, nil, func(_ context.Context, d *Denial) { seen = d })

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		require.NotNil(t, seen)
		assert.Equal(t, ReasonUnauthenticated, seen.Reason)
	})

	t.Run("logged in proceeds without effect", func(t *testing.T) {
		called := false
		err := gate.RequireAuthenticated(ctx, loggedIn("a@example.com"), func(context.Context, *Denial) { called = true })

		assert.NoError(t, err)
		assert.False(t, called)
	})
}

func TestRequireRole(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	_, err := users.Insert(ctx, &domain.User{Email: "admin@example.com", GoogleSub: "adm", Role: domain.RoleAdmin})
	require.NoError(t, err)
	gate := newTestGate(users)
	admins := []domain.Role{domain.RoleAdmin}

	t.Run("user is forbidden", func(t *testing.T) {
		var seen *Denial
		err := gate.RequireRole(ctx, loggedIn("plain@example.com"), admins, func(_ context.Context, d *Denial) { seen = d })

		assert.ErrorIs(t, err, domain.ErrForbidden)
		require.NotNil(t, seen)
		assert.Equal(t, ReasonForbidden, seen.Reason)
		assert.Equal(t, domain.RoleUser, seen.Role)
		assert.Equal(t, admins, seen.Allowed)
	})

	t.Run("admin passes", func(t *testing.T) {
		caller, err := gate.Authorize(ctx, loggedIn("admin@example.com"), admins, nil)

		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, caller.Role)
		assert.Equal(t, "admin@example.com", caller.Principal.Email)
	})

	t.Run("anonymous fails authentication first", func(t *testing.T) {
		err := gate.RequireRole(ctx, nil, admins, nil)

		var denial *Denial
		require.ErrorAs(t, err, &denial)
		assert.Equal(t, ReasonUnauthenticated, denial.Reason)
	})
}

func TestAuthorizeRejectsUnreadableClaims(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(memory.NewUserRepository())
	broken := NewClaimSet(map[string]any{ClaimEmail: 42})
	require.True(t, gate.IsAuthenticated(broken))

	for name, allowed := range map[string][]domain.Role{
		"any signed-in caller": nil,
		"admin only":           {domain.RoleAdmin},
	} {
		t.Run(name, func(t *testing.T) {
			var seen *Denial
			caller, err := gate.Authorize(ctx, broken, allowed, func(_ context.Context, d *Denial) { seen = d })

			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			assert.Nil(t, caller.Principal)
			require.NotNil(t, seen)
			assert.Equal(t, ReasonUnauthenticated, seen.Reason)
		})
	}
}

func TestProtect(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(memory.NewUserRepository())

	t.Run("forbidden body never runs", func(t *testing.T) {
		ran := false
		op := gate.Protect([]domain.Role{domain.RoleAdmin}, nil, func(context.Context, Identity) error {
			ran = true
			return nil
		})

		err := op(ctx, loggedIn("plain@example.com"))

		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.False(t, ran)
	})

	t.Run("authenticated body runs", func(t *testing.T) {
		ran := false
		op := gate.Protect(nil, nil, func(context.Context, Identity) error {
			ran = true
			return nil
		})

		require.NoError(t, op(ctx, loggedIn("plain@example.com")))
		assert.True(t, ran)
	})
}

func TestAnonymousScenario(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(memory.NewUserRepository())
	var id Identity

	assert.False(t, gate.IsAuthenticated(id))
	p, _ := gate.CurrentPrincipal(id)
	assert.Equal(t, domain.RoleAnonymous, gate.ResolveRole(ctx, p))

	effects := 0
	ran := false
	err := gate.Protect(nil, func(context.Context, *Denial) { effects++ }, func(context.Context, Identity) error {
		ran = true
		return nil
	})(ctx, id)

	assert.Error(t, err)
	assert.Equal(t, 1, effects)
	assert.False(t, ran)
}
