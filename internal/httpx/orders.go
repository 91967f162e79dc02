package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/session"
)

// HeaderIdempotencyKey lets a client retry checkout without placing twice.
const HeaderIdempotencyKey = "Idempotency-Key"

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

type orderStatusResp struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Cached    bool      `json:"cached"`
}

func (a *API) placeOrder(w http.ResponseWriter, r *http.Request) {
	var co orders.Checkout
	if err := decode(r, &co); err != nil {
		writeError(w, a.Log, err)
		return
	}
	if co.ExternalID == "" {
		co.ExternalID = r.Header.Get(HeaderIdempotencyKey)
	}
	o, err := a.Orders.Place(r.Context(), currentUser(r).ID, co)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Orders.ListByUser(currentUser(r).ID))
}

func (a *API) allOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Orders.List())
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.visibleOrder(r)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus answers from the status cache when it can and falls back to
// the order store.
func (a *API) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := a.visibleOrder(r)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	if a.Status != nil {
		if c, ok := a.Status.Order(r.Context(), id); ok {
			writeJSON(w, http.StatusOK, orderStatusResp{OrderID: id, Status: c.Status, UpdatedAt: c.UpdatedAt, Cached: true})
			return
		}
		if err := a.Status.SetOrder(r.Context(), id, string(o.Status), o.UpdatedAt); err != nil {
			a.Log.Warn("status cache write failed", "order_id", id, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, orderStatusResp{OrderID: id, Status: string(o.Status), UpdatedAt: o.UpdatedAt})
}

// visibleOrder returns {id} when the caller owns it or is an admin; anyone
// else gets not found.
func (a *API) visibleOrder(r *http.Request) (orders.Order, error) {
	id := chi.URLParam(r, "id")
	o, err := a.Orders.Get(id)
	if err != nil {
		return orders.Order{}, err
	}
	u := currentUser(r)
	if u.Role != session.RoleAdmin && o.UserID != u.ID {
		return orders.Order{}, apperr.NotFound("httpx.order", "order", id)
	}
	return o, nil
}

func (a *API) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.Cancel(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) advanceOrder(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	o, err := a.Orders.Advance(r.Context(), chi.URLParam(r, "id"), orders.Status(req.Status))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
