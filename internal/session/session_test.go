package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/clock"
	"github.com/ariefcatur/go-storefront/internal/storage"
)

type fixture struct {
	blobs    storage.Blobs
	clock    *clock.Manual
	dir      *Directory
	tokens   *Tokens
	sessions *Sessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		blobs: storage.NewMemory(),
		clock: clock.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.dir = NewDirectory(f.blobs, nil, WithBcryptCost(bcrypt.MinCost), WithClock(f.clock))
	f.tokens = NewTokens("test-secret", time.Hour, f.clock)
	f.sessions = NewSessions(f.dir, f.tokens, f.blobs, time.Second, nil)
	return f
}

func TestDirectory_RegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.dir.Register(ctx, "Ann", "  Ann@Example.COM ", "secret1", RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, RoleBuyer, u.Role)

	got, err := f.dir.Authenticate(ctx, "ANN@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.dir.Authenticate(ctx, "ann@example.com", "wrong-pass")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = f.dir.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	_, err = f.dir.Register(ctx, "Ann 2", "ann@EXAMPLE.com", "secret2", RoleSeller)
	assert.ErrorIs(t, err, apperr.ErrEmailAlreadyExists)
}

func TestDirectory_RegisterRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name, userName, email, password string
		role                            Role
	}{
		{"admin role", "Eve", "eve@example.com", "secret1", RoleAdmin},
		{"unknown role", "Eve", "eve@example.com", "secret1", Role("owner")},
		{"empty name", " ", "eve@example.com", "secret1", RoleBuyer},
		{"bad email", "Eve", "eve.example.com", "secret1", RoleBuyer},
		{"short password", "Eve", "eve@example.com", "123", RoleBuyer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.dir.Register(ctx, tt.userName, tt.email, tt.password, tt.role)
			assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
		})
	}
	assert.Empty(t, f.dir.List())
}

func TestDirectory_EnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.dir.EnsureAdmin(ctx, "Admin", "admin@shop.test", "admin123")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, a.Role)
	b, err := f.dir.EnsureAdmin(ctx, "Other", "ADMIN@shop.test", "different")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, map[Role]int{RoleAdmin: 1}, f.dir.CountByRole())
}

func TestDirectory_PersistsAcrossReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.dir.Register(ctx, "Sam", "sam@example.com", "hunter22", RoleSeller)
	require.NoError(t, err)
	name := "Samuel"
	_, err = f.dir.UpdateProfile(ctx, u.ID, ProfilePatch{Name: &name, Address: &Address{City: "Oslo"}})
	require.NoError(t, err)

	reloaded := NewDirectory(f.blobs, nil, WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, reloaded.Load(ctx))
	got, err := reloaded.Get(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Samuel", got.Name)
	require.NotNil(t, got.Address)
	assert.Equal(t, "Oslo", got.Address.City)
	_, err = reloaded.Authenticate(ctx, "sam@example.com", "hunter22")
	assert.NoError(t, err)

	require.NoError(t, reloaded.Delete(ctx, u.ID))
	assert.ErrorIs(t, reloaded.Delete(ctx, u.ID), apperr.ErrNotFound)
}

func TestTokens_RoundTripAndExpiry(t *testing.T) {
	f := newFixture(t)
	raw, err := f.tokens.Issue(User{ID: "u-1", Role: RoleSeller})
	require.NoError(t, err)

	id, role, err := f.tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)
	assert.Equal(t, RoleSeller, role)

	_, _, err = NewTokens("other-secret", time.Hour, f.clock).Parse(raw)
	assert.Error(t, err)

	f.clock.Advance(2 * time.Hour)
	_, _, err = f.tokens.Parse(raw)
	assert.ErrorIs(t, err, errBadToken)
}

func TestMachine_LoginLogoutLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.dir.Register(ctx, "Ann", "ann@example.com", "secret1", RoleBuyer)
	require.NoError(t, err)

	m := f.sessions.Get(ctx, "s-1")
	assert.Equal(t, PhaseAnonymous, m.State().Phase)

	u, err := m.Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	st := m.State()
	assert.Equal(t, PhaseAuthenticated, st.Phase)
	require.NotNil(t, st.User)
	assert.Equal(t, u.ID, st.User.ID)

	_, err = m.Login(ctx, "ann@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "already signed in")
	_, err = m.Register(ctx, "X", "x@example.com", "secret1", RoleBuyer)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	m.Logout(ctx)
	assert.Equal(t, PhaseAnonymous, m.State().Phase)
	m.Logout(ctx)
	assert.Equal(t, PhaseAnonymous, m.State().Phase, "logout is unconditional")
}

func TestMachine_FailedLoginIsReportedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.sessions.Get(ctx, "s-1")

	_, err := m.Login(ctx, "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	st := m.State()
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.ErrorIs(t, st.Err, apperr.ErrInvalidCredentials)
	assert.Equal(t, PhaseAnonymous, m.State().Phase)

	// a failed session may try again
	_, err = m.Register(ctx, "Ghost", "ghost@example.com", "whatever", RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, PhaseAuthenticated, m.State().Phase)
}

func TestMachine_RegisterAdminFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.sessions.Get(ctx, "s-1")

	_, err := m.Register(ctx, "Eve", "eve@example.com", "secret1", RoleAdmin)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.Equal(t, PhaseFailed, m.State().Phase)
	assert.Empty(t, f.dir.List())
}

func TestSessions_ResolveFromPersistedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.dir.Register(ctx, "Ann", "ann@example.com", "secret1", RoleBuyer)
	require.NoError(t, err)
	_, err = f.sessions.Get(ctx, "s-1").Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)

	// a fresh registry over the same store, as after a restart
	restarted := NewSessions(f.dir, f.tokens, f.blobs, time.Second, nil)
	u, ok := restarted.Get(ctx, "s-1").User()
	require.True(t, ok)
	assert.Equal(t, "ann@example.com", u.Email)

	restarted.Get(ctx, "s-1").Logout(ctx)
	again := NewSessions(f.dir, f.tokens, f.blobs, time.Second, nil)
	assert.Equal(t, PhaseAnonymous, again.Get(ctx, "s-1").State().Phase)
}

func TestSessions_ResolveExpiredOrDeletedIsAnonymous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.dir.Register(ctx, "Ann", "ann@example.com", "secret1", RoleBuyer)
	require.NoError(t, err)
	_, err = f.sessions.Get(ctx, "s-1").Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	_, err = f.sessions.Get(ctx, "s-2").Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	restarted := NewSessions(f.dir, f.tokens, f.blobs, time.Second, nil)
	assert.Equal(t, PhaseAnonymous, restarted.Get(ctx, "s-1").State().Phase)

	fresh := NewTokens("test-secret", 24*time.Hour, f.clock)
	tok, err := fresh.Issue(u)
	require.NoError(t, err)
	require.NoError(t, f.blobs.Save(ctx, storage.SessionKey("s-2"), []byte(tok)))
	require.NoError(t, f.dir.Delete(ctx, u.ID))
	restarted = NewSessions(f.dir, fresh, f.blobs, time.Second, nil)
	assert.Equal(t, PhaseAnonymous, restarted.Get(ctx, "s-2").State().Phase)
}

func TestSessions_ResolveTimesOut(t *testing.T) {
	f := newFixture(t)
	slow := storage.WithLatency(f.blobs, time.Minute)
	s := NewSessions(f.dir, f.tokens, slow, 20*time.Millisecond, nil)

	start := time.Now()
	m := s.Get(context.Background(), "s-1")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, PhaseAnonymous, m.State().Phase)
}

func TestMachine_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.sessions.Get(ctx, "s-1")

	phone := "+47 555"
	_, err := m.UpdateProfile(ctx, ProfilePatch{Phone: &phone})
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	_, err = m.Register(ctx, "Ann", "ann@example.com", "secret1", RoleSeller)
	require.NoError(t, err)
	u, err := m.UpdateProfile(ctx, ProfilePatch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, u.Phone)
	cur, ok := m.User()
	require.True(t, ok)
	assert.Equal(t, phone, cur.Phone)
}

func TestAuthorize(t *testing.T) {
	buyer := &User{ID: "b", Role: RoleBuyer}
	admin := &User{ID: "a", Role: RoleAdmin}

	tests := []struct {
		name string
		st   State
		req  Requirement
		want Decision
	}{
		{"unresolved waits", State{Phase: PhaseUnresolved}, Requirement{}, Pending},
		{"authenticating waits", State{Phase: PhaseAuthenticating}, Requirement{Role: RoleAdmin}, Pending},
		{"anonymous to login", State{Phase: PhaseAnonymous}, Requirement{}, RedirectLogin},
		{"failed to login", State{Phase: PhaseFailed}, Requirement{Role: RoleBuyer}, RedirectLogin},
		{"any authenticated", State{Phase: PhaseAuthenticated, User: buyer}, Requirement{}, Allow},
		{"matching role", State{Phase: PhaseAuthenticated, User: buyer}, Requirement{Role: RoleBuyer}, Allow},
		{"buyer on admin view", State{Phase: PhaseAuthenticated, User: buyer}, Requirement{Role: RoleAdmin}, RedirectHome},
		{"admin on seller view", State{Phase: PhaseAuthenticated, User: admin}, Requirement{Role: RoleSeller}, RedirectHome},
		{"unknown role", State{Phase: PhaseAuthenticated, User: admin}, Requirement{Role: Role("root")}, RedirectHome},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.st, tt.req))
		})
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Seller ")
	require.NoError(t, err)
	assert.Equal(t, RoleSeller, r)
	_, err = ParseRole("guest")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

// strictBlobs refuses nil values the way a NOT NULL column does.
type strictBlobs struct{ storage.Blobs }

func (b strictBlobs) Save(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return errors.New("null value violates not-null constraint")
	}
	return b.Blobs.Save(ctx, key, value)
}

func TestMachine_LogoutSurvivesRestartOnStrictBackend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	blobs := strictBlobs{f.blobs}
	_, err := f.dir.Register(ctx, "Ann", "ann@example.com", "secret1", RoleBuyer)
	require.NoError(t, err)

	s := NewSessions(f.dir, f.tokens, blobs, time.Second, nil)
	_, err = s.Get(ctx, "s-1").Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	s.Get(ctx, "s-1").Logout(ctx)

	raw, err := f.blobs.Load(ctx, storage.SessionKey("s-1"))
	require.NoError(t, err)
	assert.Empty(t, raw)

	restarted := NewSessions(f.dir, f.tokens, blobs, time.Second, nil)
	assert.Equal(t, PhaseAnonymous, restarted.Get(ctx, "s-1").State().Phase)
}

func TestSessions_OnlySignedInSessionsAreKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.dir.Register(ctx, "Ann", "ann@example.com", "secret1", RoleBuyer)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		assert.Equal(t, PhaseAnonymous, f.sessions.Get(ctx, NewID()).State().Phase)
	}
	assert.Zero(t, f.sessions.Len())

	m := f.sessions.Get(ctx, "s-1")
	_, err = m.Login(ctx, "ghost@example.com", "nope")
	require.Error(t, err)
	assert.Zero(t, f.sessions.Len(), "failed login is not kept")

	_, err = m.Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.sessions.Len())
	assert.Same(t, m, f.sessions.Get(ctx, "s-1"))

	m.Logout(ctx)
	assert.Zero(t, f.sessions.Len())
	assert.Equal(t, PhaseAnonymous, f.sessions.Get(ctx, "s-1").State().Phase)
}
