package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/reviews"
	"github.com/ariefcatur/go-storefront/internal/session"
	"github.com/ariefcatur/go-storefront/internal/support"
	"github.com/ariefcatur/go-storefront/internal/wishlist"
)

// HeaderSession carries the client's session id. Requests without one get a
// fresh id back in the same header.
const HeaderSession = "X-Session-Id"

// API wires the storefront components to HTTP.
type API struct {
	Catalog   *catalog.Store
	Carts     *cart.Carts
	Wishlists *wishlist.Wishlists
	Orders    *orders.Service
	Tickets   *support.Tracker
	Reviews   *reviews.Reviews
	Sessions  *session.Sessions
	Status    *redisx.StatusCache // optional
	Log       *slog.Logger
}

func (a *API) Register(r chi.Router) {
	if a.Log == nil {
		a.Log = slog.Default()
	}
	r.Group(func(r chi.Router) {
		r.Use(a.withSession)

		r.Post("/session", a.newSession)

		r.Get("/products", a.listProducts)
		r.Get("/products/{id}", a.getProduct)
		r.Get("/categories", a.listCategories)
		r.Get("/products/{id}/reviews", a.listReviews)

		// the cart works for anonymous shoppers too
		r.Get("/cart", a.getCart)
		r.Post("/cart/items", a.addCartItem)
		r.Put("/cart/items/{productID}", a.setCartItem)
		r.Delete("/cart/items/{productID}", a.removeCartItem)
		r.Delete("/cart", a.clearCart)

		r.Post("/auth/login", a.login)
		r.Post("/auth/register", a.register)
		r.Post("/auth/logout", a.logout)

		r.Group(func(r chi.Router) {
			r.Use(a.require(session.Requirement{}))

			r.Get("/auth/me", a.me)
			r.Patch("/auth/me", a.updateMe)

			r.Get("/wishlist", a.getWishlist)
			r.Post("/wishlist", a.addWishlist)
			r.Get("/wishlist/{productID}", a.inWishlist)
			r.Delete("/wishlist/{productID}", a.removeWishlist)

			r.Post("/orders", a.placeOrder)
			r.Get("/orders", a.listOrders)
			r.Get("/orders/{id}", a.getOrder)
			r.Get("/orders/{id}/status", a.getOrderStatus)
			r.Post("/orders/{id}/cancel", a.cancelOrder)

			r.Get("/tickets", a.listTickets)
			r.Post("/tickets", a.createTicket)

			r.Post("/products/{id}/reviews", a.createReview)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAny(session.RoleSeller, session.RoleAdmin))
			r.Post("/products", a.createProduct)
			r.Put("/products/{id}", a.updateProduct)
			r.Delete("/products/{id}", a.deleteProduct)
		})

		r.Route("/seller", func(r chi.Router) {
			r.Use(a.require(session.Requirement{Role: session.RoleSeller}))
			r.Get("/products", a.sellerProducts)
			r.Get("/orders", a.sellerOrders)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.require(session.Requirement{Role: session.RoleAdmin}))
			r.Post("/orders/{id}/status", a.advanceOrder)
			r.Post("/tickets/{id}/status", a.transitionTicket)
			r.Get("/admin/users", a.listUsers)
			r.Delete("/admin/users/{id}", a.deleteUser)
			r.Get("/admin/orders", a.allOrders)
			r.Get("/admin/stats", a.stats)
		})
	})
}

type ctxKey int

const machineKey ctxKey = iota

func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderSession)
		if id == "" {
			id = session.NewID()
		}
		w.Header().Set(HeaderSession, id)
		m := a.Sessions.Get(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), machineKey, m)))
	})
}

func machineFrom(r *http.Request) *session.Machine {
	m, _ := r.Context().Value(machineKey).(*session.Machine)
	return m
}

// currentUser is only meaningful behind require.
func currentUser(r *http.Request) session.User {
	u, _ := machineFrom(r).User()
	return u
}

// require is the role gate as middleware.
func (a *API) require(req session.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.gate(w, session.Authorize(machineFrom(r).State(), req)) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// requireAny allows the first of roles the session satisfies.
func (a *API) requireAny(roles ...session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := machineFrom(r).State()
			d := session.RedirectHome
			for _, role := range roles {
				if d = session.Authorize(st, session.Requirement{Role: role}); d != session.RedirectHome {
					break
				}
			}
			if a.gate(w, d) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

func (a *API) gate(w http.ResponseWriter, d session.Decision) bool {
	switch d {
	case session.Allow:
		return true
	case session.RedirectLogin:
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login required", "redirect": "/login"})
	case session.RedirectHome:
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed for this role", "redirect": "/"})
	case session.Pending:
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session is resolving"})
	default:
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
	}
	return false
}

func (a *API) newSession(w http.ResponseWriter, r *http.Request) {
	id := session.NewID()
	w.Header().Set(HeaderSession, id)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}
