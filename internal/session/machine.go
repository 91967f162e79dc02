package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/storage"
)

type Phase int

const (
	PhaseUnresolved Phase = iota
	PhaseAnonymous
	PhaseAuthenticating
	PhaseAuthenticated
	PhaseFailed // reported once by State, then reads as anonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseUnresolved:
		return "unresolved"
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// State is a snapshot of a session. User is set only when authenticated; Err
// only when failed.
type State struct {
	Phase Phase
	User  *User
	Err   error
}

// Machine is one client's session. Transitions:
//
//	unresolved     -> anonymous | authenticated   (Resolve)
//	anonymous      -> authenticating              (Login, Register)
//	authenticating -> authenticated | failed
//	authenticated  -> anonymous                   (Logout)
type Machine struct {
	mu    sync.Mutex
	state State

	id      string
	dir     *Directory
	tokens  *Tokens
	blobs   storage.Blobs
	timeout time.Duration
	log     *slog.Logger
	reg     *Sessions // nil for a machine outside a registry
}

func (m *Machine) ID() string { return m.id }

// State returns the current snapshot. A failed state is returned once and
// then folded back to anonymous.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.snapshotLocked()
	if st.Phase == PhaseFailed {
		m.state = State{Phase: PhaseAnonymous}
	}
	return st
}

func (m *Machine) snapshotLocked() State {
	st := m.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// User returns the authenticated user.
func (m *Machine) User() (User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseAuthenticated || m.state.User == nil {
		return User{}, false
	}
	return *m.state.User, true
}

// Resolve restores the session from its persisted token. It runs once; a
// missing, expired or unreadable token, or a store that does not answer
// within the timeout, resolves to anonymous. It does not consume a pending
// failure report.
func (m *Machine) Resolve(ctx context.Context) State {
	m.mu.Lock()
	if m.state.Phase != PhaseUnresolved {
		defer m.mu.Unlock()
		return m.snapshotLocked()
	}
	m.mu.Unlock()

	next := State{Phase: PhaseAnonymous}
	if u, err := m.restore(ctx); err == nil {
		next = State{Phase: PhaseAuthenticated, User: &u}
	} else if !apperr.IsNotFound(err) {
		m.log.Warn("session restore failed", "session_id", m.id, "err", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase == PhaseUnresolved {
		m.state = next
	}
	return m.snapshotLocked()
}

func (m *Machine) restore(ctx context.Context) (User, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	raw, err := m.blobs.Load(ctx, storage.SessionKey(m.id))
	if err != nil {
		return User{}, err
	}
	if len(raw) == 0 {
		return User{}, apperr.NotFound("session.Resolve", "session", m.id)
	}
	userID, _, err := m.tokens.Parse(string(raw))
	if err != nil {
		return User{}, err
	}
	// role and profile come from the directory, not the token
	return m.dir.Get(userID)
}

// Login authenticates against the directory. Only an anonymous session may
// log in.
func (m *Machine) Login(ctx context.Context, email, password string) (User, error) {
	if err := m.begin("session.Login"); err != nil {
		return User{}, err
	}
	u, err := m.dir.Authenticate(ctx, email, password)
	return m.finish(ctx, u, err)
}

// Register creates a buyer or seller account and signs it in.
func (m *Machine) Register(ctx context.Context, name, email, password string, role Role) (User, error) {
	if err := m.begin("session.Register"); err != nil {
		return User{}, err
	}
	u, err := m.dir.Register(ctx, name, email, password, role)
	return m.finish(ctx, u, err)
}

func (m *Machine) begin(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state.Phase {
	case PhaseAnonymous, PhaseFailed:
		m.state = State{Phase: PhaseAuthenticating}
		return nil
	}
	return apperr.New(op, "session", m.id, fmt.Errorf("%w: session is %s", apperr.ErrInvalidTransition, m.state.Phase))
}

func (m *Machine) finish(ctx context.Context, u User, err error) (User, error) {
	if err == nil {
		err = m.persist(ctx, u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = State{Phase: PhaseFailed, Err: err}
		return User{}, err
	}
	m.state = State{Phase: PhaseAuthenticated, User: &u}
	m.log.Info("session authenticated", "session_id", m.id, "user_id", u.ID, "role", u.Role)
	if m.reg != nil {
		m.reg.keep(m)
	}
	return u, nil
}

func (m *Machine) persist(ctx context.Context, u User) error {
	tok, err := m.tokens.Issue(u)
	if err != nil {
		return err
	}
	return m.blobs.Save(ctx, storage.SessionKey(m.id), []byte(tok))
}

// Logout always ends anonymous. The persisted token is blanked with an empty
// value, which every backend stores; a failed write is logged, since the
// in-memory session is already gone.
func (m *Machine) Logout(ctx context.Context) {
	m.mu.Lock()
	m.state = State{Phase: PhaseAnonymous}
	m.mu.Unlock()
	if m.reg != nil {
		m.reg.forget(m)
	}
	if err := m.blobs.Save(ctx, storage.SessionKey(m.id), []byte{}); err != nil {
		m.log.Warn("session clear failed", "session_id", m.id, "err", err)
	}
}

// UpdateProfile edits the signed-in user's own profile.
func (m *Machine) UpdateProfile(ctx context.Context, patch ProfilePatch) (User, error) {
	cur, ok := m.User()
	if !ok {
		return User{}, apperr.New("session.UpdateProfile", "session", m.id, apperr.ErrNotAuthenticated)
	}
	u, err := m.dir.UpdateProfile(ctx, cur.ID, patch)
	if err != nil {
		return User{}, err
	}
	m.mu.Lock()
	if m.state.Phase == PhaseAuthenticated && m.state.User != nil && m.state.User.ID == u.ID {
		m.state.User = &u
	}
	m.mu.Unlock()
	return u, nil
}
