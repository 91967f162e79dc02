package session

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/clock"
	"github.com/ariefcatur/go-storefront/internal/storage"
)

const minPasswordLen = 6

type account struct {
	User
	PasswordHash []byte `json:"password_hash"`
}

// Directory is the user registry. Emails are unique after case folding.
type Directory struct {
	mu       sync.RWMutex
	accounts []account

	cost  int
	clock clock.Clock
	blob  *storage.JSON[[]account]
	log   *slog.Logger
	dummy []byte
}

type DirectoryOption func(*Directory)

// WithBcryptCost overrides bcrypt.DefaultCost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) DirectoryOption {
	return func(d *Directory) { d.cost = cost }
}

func WithClock(c clock.Clock) DirectoryOption {
	return func(d *Directory) { d.clock = clock.OrSystem(c) }
}

func NewDirectory(blobs storage.Blobs, logger *slog.Logger, opts ...DirectoryOption) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory{
		cost:  bcrypt.DefaultCost,
		clock: clock.System{},
		log:   logger.With("component", "directory"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if blobs != nil {
		d.blob = &storage.JSON[[]account]{Blobs: blobs, Key: storage.KeyUsers}
	}
	// compared against on unknown emails so both failure paths cost one bcrypt
	d.dummy, _ = bcrypt.GenerateFromPassword([]byte("storefront-dummy"), d.cost)
	return d
}

func (d *Directory) Load(ctx context.Context) error {
	if d.blob == nil {
		return nil
	}
	accts, _, err := d.blob.Load(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.accounts = accts
	d.mu.Unlock()
	return nil
}

// Register creates a buyer or seller account. Admin accounts cannot be
// self-registered.
func (d *Directory) Register(ctx context.Context, name, email, password string, role Role) (User, error) {
	if !role.SelfAssignable() {
		return User{}, apperr.Invalid("session.Register", "role %q cannot be self-assigned", role)
	}
	return d.create(ctx, "session.Register", name, email, password, role)
}

// EnsureAdmin creates the admin account on first boot; an existing account
// with the same email is left untouched.
func (d *Directory) EnsureAdmin(ctx context.Context, name, email, password string) (User, error) {
	if u, ok := d.byEmail(email); ok {
		return u, nil
	}
	u, err := d.create(ctx, "session.EnsureAdmin", name, email, password, RoleAdmin)
	if err != nil {
		return User{}, err
	}
	d.log.Info("admin account created", "user_id", u.ID, "email", u.Email)
	return u, nil
}

func (d *Directory) create(ctx context.Context, op, name, email, password string, role Role) (User, error) {
	name = strings.TrimSpace(name)
	email = d.normalize(email)
	switch {
	case name == "":
		return User{}, apperr.Invalid(op, "name is required")
	case !strings.Contains(email, "@"):
		return User{}, apperr.Invalid(op, "email %q is not valid", email)
	case len(password) < minPasswordLen:
		return User{}, apperr.Invalid(op, "password must be at least %d characters", minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return User{}, apperr.New(op, "user", email, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.indexByEmailLocked(email) >= 0 {
		return User{}, apperr.New(op, "user", email, apperr.ErrEmailAlreadyExists)
	}
	u := User{ID: uuid.NewString(), Name: name, Email: email, Role: role, CreatedAt: d.clock.Now()}
	next := append(slices.Clone(d.accounts), account{User: u, PasswordHash: hash})
	if err := d.commitLocked(ctx, next); err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (d *Directory) Authenticate(_ context.Context, email, password string) (User, error) {
	email = d.normalize(email)
	d.mu.RLock()
	i := d.indexByEmailLocked(email)
	var a account
	if i >= 0 {
		a = d.accounts[i]
	}
	d.mu.RUnlock()

	if i < 0 {
		_ = bcrypt.CompareHashAndPassword(d.dummy, []byte(password))
		return User{}, apperr.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return User{}, apperr.ErrInvalidCredentials
	}
	return a.User, nil
}

func (d *Directory) Get(id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.accounts {
		if a.ID == id {
			return a.User, nil
		}
	}
	return User{}, apperr.NotFound("session.Get", "user", id)
}

func (d *Directory) List() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]User, len(d.accounts))
	for i, a := range d.accounts {
		out[i] = a.User
	}
	return out
}

func (d *Directory) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (User, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return User{}, apperr.Invalid("session.UpdateProfile", "name cannot be empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexByIDLocked(id)
	if i < 0 {
		return User{}, apperr.NotFound("session.UpdateProfile", "user", id)
	}
	next := slices.Clone(d.accounts)
	patch.apply(&next[i].User)
	if err := d.commitLocked(ctx, next); err != nil {
		return User{}, err
	}
	return next[i].User, nil
}

func (d *Directory) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexByIDLocked(id)
	if i < 0 {
		return apperr.NotFound("session.Delete", "user", id)
	}
	return d.commitLocked(ctx, slices.Delete(slices.Clone(d.accounts), i, i+1))
}

// CountByRole feeds the admin dashboard.
func (d *Directory) CountByRole() map[Role]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := map[Role]int{}
	for _, a := range d.accounts {
		out[a.Role]++
	}
	return out
}

func (d *Directory) byEmail(email string) (User, bool) {
	email = d.normalize(email)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i := d.indexByEmailLocked(email); i >= 0 {
		return d.accounts[i].User, true
	}
	return User{}, false
}

func (d *Directory) normalize(email string) string {
	// Caser is stateful, so one per call
	return cases.Fold().String(strings.TrimSpace(email))
}

func (d *Directory) indexByEmailLocked(email string) int {
	return slices.IndexFunc(d.accounts, func(a account) bool { return a.Email == email })
}

func (d *Directory) indexByIDLocked(id string) int {
	return slices.IndexFunc(d.accounts, func(a account) bool { return a.ID == id })
}

func (d *Directory) commitLocked(ctx context.Context, next []account) error {
	if d.blob != nil {
		if err := d.blob.Save(ctx, next); err != nil {
			d.log.Error("users save failed", "err", err)
			return err
		}
	}
	d.accounts = next
	return nil
}
