package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront/internal/storage"
)

// Sessions keeps one Machine per signed-in client session id. Machines are
// resolved from the persisted token, so a restart does not sign anyone out.
type Sessions struct {
	mu       sync.Mutex
	machines map[string]*Machine

	dir     *Directory
	tokens  *Tokens
	blobs   storage.Blobs
	timeout time.Duration
	log     *slog.Logger
}

func NewSessions(dir *Directory, tokens *Tokens, blobs storage.Blobs, resolveTimeout time.Duration, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		machines: make(map[string]*Machine),
		dir:      dir,
		tokens:   tokens,
		blobs:    blobs,
		timeout:  resolveTimeout,
		log:      logger.With("component", "session"),
	}
}

func (s *Sessions) Directory() *Directory { return s.dir }

// NewID mints a session id for a client that has none.
func NewID() string { return uuid.NewString() }

// Get returns the resolved machine for id. Only signed-in sessions are kept
// between requests; an anonymous session is rebuilt from the store each time
// and joins the registry when it logs in or registers.
func (s *Sessions) Get(ctx context.Context, id string) *Machine {
	s.mu.Lock()
	m, ok := s.machines[id]
	s.mu.Unlock()
	if ok {
		return m
	}
	m = &Machine{
		state:   State{Phase: PhaseUnresolved},
		id:      id,
		dir:     s.dir,
		tokens:  s.tokens,
		blobs:   s.blobs,
		timeout: s.timeout,
		log:     s.log,
		reg:     s,
	}
	if m.Resolve(ctx).Phase == PhaseAuthenticated {
		s.keep(m)
	}
	return m
}

func (s *Sessions) keep(m *Machine) {
	s.mu.Lock()
	s.machines[m.id] = m
	s.mu.Unlock()
}

func (s *Sessions) forget(m *Machine) {
	s.mu.Lock()
	if s.machines[m.id] == m {
		delete(s.machines, m.id)
	}
	s.mu.Unlock()
}

// Len is the number of signed-in sessions held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.machines)
}
