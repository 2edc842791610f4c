package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/health"
	"github.com/vladislavdragonenkov/checkout/internal/service/cart"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/service/fulfillment"
	"github.com/vladislavdragonenkov/checkout/internal/service/order"
	"github.com/vladislavdragonenkov/checkout/internal/service/payment"
	"github.com/vladislavdragonenkov/checkout/internal/version"
)

const defaultRequestTimeout = 30 * time.Second

// Handler агрегирует сервисы, доступные через HTTP API.
type Handler struct {
	carts    *cart.Service
	checkout *checkout.Validator
	orders   *order.Ledger
	payments *payment.Processor
	fulfill  *fulfillment.Engine
	health   *health.Handler
	logger   *log.Entry
}

// NewHandler создаёт HTTP handler поверх сервисного слоя.
func NewHandler(
	carts *cart.Service,
	validator *checkout.Validator,
	orders *order.Ledger,
	payments *payment.Processor,
	fulfill *fulfillment.Engine,
	healthHandler *health.Handler,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}
	return &Handler{
		carts:    carts,
		checkout: validator,
		orders:   orders,
		payments: payments,
		fulfill:  fulfill,
		health:   healthHandler,
		logger:   logger,
	}
}

// Router собирает chi-роутер со всеми маршрутами сервиса.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))

	if h.health != nil {
		r.Method(http.MethodGet, "/health", h.health)
		r.Get("/health/live", health.LivenessHandler)
		r.Get("/health/ready", h.health.ReadinessHandler)
	}
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		v, c, d := version.Info()
		h.respondJSON(w, http.StatusOK, map[string]string{
			"version": v,
			"commit":  c,
			"date":    d,
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Put("/items/{product_id}", h.setCartItemQty)
			r.Delete("/items/{product_id}", h.removeCartItem)
			r.Post("/merge", h.mergeCart)
		})

		r.Post("/checkout", h.postCheckout)

		r.Route("/payments", func(r chi.Router) {
			r.Post("/initialize", h.initializePayment)
			r.Post("/verify", h.verifyPayment)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.listOrders)
			r.Get("/{id}", h.getOrder)
			r.Get("/{id}/timeline", h.getOrderTimeline)
		})

		r.Patch("/admin/orders/{id}/status", h.updateOrderStatus)
		r.Post("/admin/orders/{id}/fulfill", h.fulfillOrder)
	})

	return r
}
