package session

import (
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable reports whether a user may pick r at registration.
func (r Role) SelfAssignable() bool {
	switch r {
	case RoleBuyer, RoleSeller:
		return true
	case RoleAdmin:
		return false
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", apperr.Invalid("session.ParseRole", "unknown role %q", s)
	}
	return r, nil
}

// Requirement is what a protected view asks of the session. A zero Role
// means any authenticated user.
type Requirement struct {
	Role Role
}

type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectHome
	Pending // session not resolved yet: show a neutral indicator, do not redirect
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	case Pending:
		return "pending"
	}
	return "unknown"
}

// Authorize is the role gate.
func Authorize(st State, req Requirement) Decision {
	switch st.Phase {
	case PhaseUnresolved, PhaseAuthenticating:
		return Pending
	case PhaseAnonymous, PhaseFailed:
		return RedirectLogin
	case PhaseAuthenticated:
	default:
		return RedirectLogin
	}
	if st.User == nil {
		return RedirectLogin
	}
	switch req.Role {
	case "":
		return Allow
	case RoleBuyer, RoleSeller, RoleAdmin:
		if st.User.Role == req.Role {
			return Allow
		}
		return RedirectHome
	}
	return RedirectHome
}
