package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/enamelgeorgia/storefront/api/controllers"
	webhookcontrollers "github.com/enamelgeorgia/storefront/api/controllers/webhooks"
	"github.com/enamelgeorgia/storefront/api/middleware"
	"github.com/enamelgeorgia/storefront/internal/cart"
	"github.com/enamelgeorgia/storefront/internal/orders"
	"github.com/enamelgeorgia/storefront/internal/payments"
	"github.com/enamelgeorgia/storefront/pkg/config"
	"github.com/enamelgeorgia/storefront/pkg/db"
	"github.com/enamelgeorgia/storefront/pkg/logger"
	"github.com/enamelgeorgia/storefront/pkg/redis"
	"github.com/enamelgeorgia/storefront/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient db.Pinger,
	redisClient *redis.Client,
	cartService cart.Service,
	orderService orders.Service,
	paymentService payments.Service,
	stripeClient *stripe.Client,
	webhookService *payments.WebhookService,
	webhookGuard *payments.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	})

	// Signature-verified, so it sits outside the identity stack.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(webhookService, stripeClient, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.RequireCartIdentity(logg))
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Get("/summary", controllers.CartSummary(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.With(middleware.RequireAuth(logg)).Post("/transfer", controllers.CartTransfer(cartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.RequireAuth(logg))
			r.Post("/", controllers.OrderCreate(orderService, logg))
			r.Get("/", controllers.OrderList(orderService, logg))
			r.With(middleware.RequireAdmin(logg)).Get("/stats", controllers.OrderStats(orderService, logg))
			r.Get("/number/{orderNumber}", controllers.OrderFetchByNumber(orderService, logg))
			r.Get("/{orderId}", controllers.OrderFetch(orderService, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(orderService, logg))
			r.With(middleware.RequireAdmin(logg)).Patch("/{orderId}/status", controllers.OrderUpdateStatus(orderService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Use(middleware.RequireAuth(logg))
			r.Post("/intent", controllers.PaymentIntentCreate(paymentService, logg))
			r.Post("/confirm", controllers.PaymentConfirm(paymentService, logg))
			r.Get("/", controllers.PaymentList(paymentService, logg))
			r.Get("/{intentId}/status", controllers.PaymentStatus(paymentService, logg))
			r.With(middleware.RequireAdmin(logg)).Post("/refund", controllers.PaymentRefund(paymentService, logg))
		})
	})

	return r
}
