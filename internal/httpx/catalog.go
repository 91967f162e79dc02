package httpx

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/session"
)

type productReq struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"required"`
	Image       string          `json:"image" validate:"omitempty,url"`
	Stock       int             `json:"stock" validate:"gte=0"`
	SellerID    string          `json:"seller_id"`
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	f, err := catalog.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog.Query(a.Catalog.List(), f))
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	p, err := a.Catalog.Get(id)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Catalog.Categories())
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	u := currentUser(r)
	np := catalog.NewProduct{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Image:       req.Image,
		Stock:       req.Stock,
		SellerID:    req.SellerID,
	}
	if u.Role == session.RoleSeller {
		np.SellerID = u.ID
	}
	p, err := a.Catalog.Insert(r.Context(), np)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := a.ownedProduct(w, r)
	if !ok {
		return
	}
	var patch catalog.Patch
	if err := decode(r, &patch); err != nil {
		writeError(w, a.Log, err)
		return
	}
	// ratings come from reviews only
	patch.Rating, patch.ReviewCount = nil, nil
	if currentUser(r).Role != session.RoleAdmin {
		patch.SellerID = nil
	}
	p, err := a.Catalog.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := a.ownedProduct(w, r)
	if !ok {
		return
	}
	if err := a.Catalog.Delete(r.Context(), id); err != nil {
		writeError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedProduct resolves {id} and checks that a seller only touches their own
// products. Admins may touch any.
func (a *API) ownedProduct(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return 0, false
	}
	p, err := a.Catalog.Get(id)
	if err != nil {
		writeError(w, a.Log, err)
		return 0, false
	}
	u := currentUser(r)
	if u.Role != session.RoleAdmin && p.SellerID != u.ID {
		writeError(w, a.Log, apperr.New("httpx.product", "product", p.IDString(), apperr.ErrForbidden))
		return 0, false
	}
	return id, true
}

func (a *API) sellerProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Query(a.Catalog.List(), catalog.Filter{SellerID: currentUser(r).ID}))
}

func (a *API) sellerOrders(w http.ResponseWriter, r *http.Request) {
	owned := catalog.Query(a.Catalog.List(), catalog.Filter{SellerID: currentUser(r).ID})
	ids := make([]int64, len(owned))
	for i, p := range owned {
		ids[i] = p.ID
	}
	writeJSON(w, http.StatusOK, a.Orders.ListBySeller(ids))
}
