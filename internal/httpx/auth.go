package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/session"
	"github.com/ariefcatur/go-storefront/internal/support"
)

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerReq struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required"`
}

type statsResp struct {
	Orders  orders.Stats           `json:"orders"`
	Users   map[session.Role]int   `json:"users"`
	Tickets map[support.Status]int `json:"tickets"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	m := machineFrom(r)
	u, err := m.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	a.adoptCart(r, m, u.ID)
	writeJSON(w, http.StatusOK, u)
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	role, err := session.ParseRole(req.Role)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	m := machineFrom(r)
	u, err := m.Register(r.Context(), req.Name, req.Email, req.Password, role)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	a.adoptCart(r, m, u.ID)
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	machineFrom(r).Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (a *API) updateMe(w http.ResponseWriter, r *http.Request) {
	var patch session.ProfilePatch
	if err := decode(r, &patch); err != nil {
		writeError(w, a.Log, err)
		return
	}
	u, err := machineFrom(r).UpdateProfile(r.Context(), patch)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Sessions.Directory().List())
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == currentUser(r).ID {
		writeError(w, a.Log, apperr.Invalid("httpx.deleteUser", "admins cannot delete themselves"))
		return
	}
	if err := a.Sessions.Directory().Delete(r.Context(), id); err != nil {
		writeError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResp{
		Orders:  a.Orders.Stats(),
		Users:   a.Sessions.Directory().CountByRole(),
		Tickets: a.Tickets.CountByStatus(),
	})
}
