package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/session"
	"github.com/ariefcatur/go-storefront/internal/support"
)

type ticketReq struct {
	Subject          string `json:"subject" validate:"required,max=200"`
	Message          string `json:"message" validate:"required,max=5000"`
	RelatedProductID *int64 `json:"related_product_id" validate:"omitempty,gt=0"`
}

type reviewReq struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (a *API) listTickets(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if u.Role == session.RoleAdmin {
		writeJSON(w, http.StatusOK, a.Tickets.List())
		return
	}
	writeJSON(w, http.StatusOK, a.Tickets.ListByUser(u.ID))
}

func (a *API) createTicket(w http.ResponseWriter, r *http.Request) {
	var req ticketReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	t, err := a.Tickets.Create(r.Context(), currentUser(r), req.Subject, req.Message, req.RelatedProductID)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) transitionTicket(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	t, err := a.Tickets.Transition(r.Context(), currentUser(r), chi.URLParam(r, "id"), support.Status(req.Status))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) listReviews(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, a.Reviews.ListByProduct(id))
}

func (a *API) createReview(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	var req reviewReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	rv, err := a.Reviews.Create(r.Context(), currentUser(r), id, req.Rating, req.Comment)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}
