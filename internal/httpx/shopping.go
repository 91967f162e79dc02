package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/session"
)

type cartItemReq struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity"`
}

type quantityReq struct {
	Quantity int `json:"quantity"`
}

type wishlistReq struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

// cartOwner is the signed-in user, or the session itself for anonymous
// shoppers.
func cartOwner(r *http.Request) string {
	m := machineFrom(r)
	if u, ok := m.User(); ok {
		return u.ID
	}
	return anonymousOwner(m)
}

func anonymousOwner(m *session.Machine) string { return "anon:" + m.ID() }

func (a *API) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Carts.View(cartOwner(r)))
}

func (a *API) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	v, err := a.Carts.Add(r.Context(), cartOwner(r), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) setCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "productID")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	var req quantityReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	v, err := a.Carts.SetQuantity(r.Context(), cartOwner(r), id, req.Quantity)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "productID")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	v, err := a.Carts.Remove(r.Context(), cartOwner(r), id)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := a.Carts.Clear(r.Context(), cartOwner(r)); err != nil {
		writeError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adoptCart moves an anonymous cart into the user's cart after sign-in.
// Rows that no longer fit the stock are dropped with a log line.
func (a *API) adoptCart(r *http.Request, m *session.Machine, userID string) {
	from := anonymousOwner(m)
	items := a.Carts.Items(from)
	if len(items) == 0 {
		return
	}
	for _, it := range items {
		if _, err := a.Carts.Add(r.Context(), userID, it.ProductID, it.Quantity); err != nil {
			a.Log.Warn("cart row not adopted", "user_id", userID, "product_id", it.ProductID, "err", err)
		}
	}
	if err := a.Carts.Clear(r.Context(), from); err != nil {
		a.Log.Warn("anonymous cart clear failed", "session_id", m.ID(), "err", err)
	}
}

func (a *API) getWishlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Wishlists.List(currentUser(r).ID))
}

func (a *API) addWishlist(w http.ResponseWriter, r *http.Request) {
	var req wishlistReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	it, err := a.Wishlists.Add(r.Context(), currentUser(r).ID, req.ProductID)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// inWishlist backs the heart toggle on a product page.
func (a *API) inWishlist(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "productID")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"in_wishlist": a.Wishlists.Contains(currentUser(r).ID, id)})
}

func (a *API) removeWishlist(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "productID")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	if err := a.Wishlists.Remove(r.Context(), currentUser(r).ID, id); err != nil {
		writeError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
