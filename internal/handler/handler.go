// Package handler exposes the storefront over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xenking/vejoias/internal/auth"
	"github.com/xenking/vejoias/internal/domain/cart"
	"github.com/xenking/vejoias/internal/domain/catalog"
	"github.com/xenking/vejoias/internal/domain/order"
	"github.com/xenking/vejoias/internal/domain/user"
	"github.com/xenking/vejoias/pkg/httpmiddleware"
)

// Catalog is the jewel catalog use cases.
type Catalog interface {
	List(ctx context.Context, f catalog.Filter) ([]catalog.Jewel, error)
	Get(ctx context.Context, id int64) (*catalog.Jewel, error)
	Create(ctx context.Context, j *catalog.Jewel) error
	Update(ctx context.Context, j *catalog.Jewel) error
	Delete(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]catalog.Category, error)
	CreateCategory(ctx context.Context, c *catalog.Category) error
}

// Carts is the shopping cart use cases.
type Carts interface {
	Get(ctx context.Context, userID int64) (*cart.Cart, error)
	AddItem(ctx context.Context, userID, jewelID int64, quantity int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, userID, jewelID int64) (*cart.Cart, error)
}

// Orders is the checkout and order management use cases.
type Orders interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.Order, error)
	SyncPaymentStatus(ctx context.Context, transactionID string) error
	UpdateStatus(ctx context.Context, id int64, status string) (*order.Order, error)
	List(ctx context.Context, userID int64) ([]order.Order, error)
	ListAll(ctx context.Context, status string) ([]order.Order, error)
	GetOwned(ctx context.Context, userID, id int64) (*order.Order, error)
}

// Users is the account use cases.
type Users interface {
	Register(ctx context.Context, req user.RegisterRequest) (*user.User, error)
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
	Get(ctx context.Context, id int64) (*user.User, error)
	List(ctx context.Context) ([]user.User, error)
}

// Tokens issues and checks JWTs.
type Tokens interface {
	Issue(userID int64, staff bool) (*auth.Pair, error)
	Access(userID int64, staff bool) (string, time.Time, error)
	Verify(token string, want auth.TokenType) (auth.Principal, error)
}

// Deps are the use cases served by the Handler.
type Deps struct {
	Catalog Catalog
	Carts   Carts
	Orders  Orders
	Users   Users
	Tokens  Tokens
	// Schema is the OpenAPI document served at /api/schema/.
	Schema []byte
}

// Handler implements the /api routes.
type Handler struct {
	Deps
}

// New returns a Handler.
func New(deps Deps) *Handler {
	return &Handler{Deps: deps}
}

// Router returns a chi router serving every /api route. Trailing slashes
// are optional.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/schema", h.schema)
		r.Post("/cadastro", h.register)
		r.Post("/token", h.obtainToken)
		r.Post("/token/refresh", h.refreshToken)
		r.Post("/webhook/mercadopago", h.mercadoPagoWebhook)

		r.Get("/joias", h.listJewels)
		r.Get("/joias/{id}", h.getJewel)
		r.Get("/categorias", h.listCategories)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/me", h.me)
			r.Get("/carrinho", h.getCart)
			r.Post("/carrinho", h.addToCart)
			r.Delete("/carrinho", h.removeFromCart)
			r.Post("/checkout", h.checkout)
			r.Get("/pedidos", h.listOrders)
			r.Get("/pedidos/{id}", h.getOrder)

			r.Group(func(r chi.Router) {
				r.Use(h.requireStaff)

				r.Post("/joias", h.createJewel)
				r.Put("/joias/{id}", h.updateJewel)
				r.Delete("/joias/{id}", h.deleteJewel)
				r.Post("/categorias", h.createCategory)
				r.Get("/admin/pedidos", h.listAllOrders)
				r.Patch("/admin/pedidos/{id}/status", h.updateOrderStatus)
				r.Get("/admin/usuarios", h.listUsers)
			})
		})
	})
	return r
}

func (h *Handler) schema(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(h.Schema)
}
