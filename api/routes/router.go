package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shopcore-backend/api/controllers"
	admincontrollers "github.com/angelmondragon/shopcore-backend/api/controllers/admin"
	cartcontrollers "github.com/angelmondragon/shopcore-backend/api/controllers/cart"
	checkoutcontrollers "github.com/angelmondragon/shopcore-backend/api/controllers/checkout"
	ordercontrollers "github.com/angelmondragon/shopcore-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/shopcore-backend/api/controllers/payments"
	"github.com/angelmondragon/shopcore-backend/api/middleware"
	"github.com/angelmondragon/shopcore-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/shopcore-backend/internal/checkout"
	"github.com/angelmondragon/shopcore-backend/internal/inventory"
	"github.com/angelmondragon/shopcore-backend/internal/orders"
	"github.com/angelmondragon/shopcore-backend/internal/payments"
	"github.com/angelmondragon/shopcore-backend/internal/shipping"
	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
	"github.com/angelmondragon/shopcore-backend/pkg/redis"
)

const paymentRetryWindow = time.Minute

// Deps are the services behind the HTTP surface. Tracking and Gatherer may be
// nil; the tracking route then answers 500 and /metrics is not mounted.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        controllers.Pinger
	Redis     *redis.Client
	Carts     cart.Service
	Checkout  checkoutsvc.Service
	Orders    orders.Service
	Payments  payments.Service
	Inventory inventory.Service
	Tracking  *shipping.Dispatcher
	Gatherer  prometheus.Gatherer

	// DeadLetters backs the outbox dead-letter routes; nil leaves them unmounted.
	DeadLetters admincontrollers.DeadLetters
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
		cfg.RateLimit.CheckoutEmailLimit,
	)
	retryPolicy := middleware.NewRateLimitPolicy(
		"payment_retry",
		paymentRetryWindow,
		cfg.RateLimit.CheckoutIPLimit,
		0,
	)
	lookupPolicy := middleware.NewRateLimitPolicy(
		"order_lookup",
		cfg.RateLimit.LookupWindow,
		cfg.RateLimit.LookupIPLimit,
		0,
	).WithSubject("order_number", cfg.RateLimit.LookupNumberLimit, middleware.URLParam("orderNumber"))
	var idempotencyStore redis.IdempotencyStore
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
	}
	idempotent := middleware.Idempotency(idempotencyStore, cfg.Eventing.CheckoutIdempotencyTTL, logg)
	limit := func(policy middleware.RateLimitPolicy) func(http.Handler) http.Handler {
		if deps.Redis == nil {
			return passthrough
		}
		return middleware.RateLimit(policy, deps.Redis, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readinessDeps(deps), logg))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// provider callbacks carry their own signatures and never a bearer token
	r.Route("/api/v1/payments/{gateway}", func(r chi.Router) {
		r.Get("/return", paymentcontrollers.Return(deps.Payments, logg))
		r.Post("/webhook", paymentcontrollers.Webhook(deps.Payments, logg))
		r.Get("/ipn", paymentcontrollers.Webhook(deps.Payments, logg))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.With(limit(lookupPolicy)).Get("/orders/{orderNumber}", ordercontrollers.PublicDetail(deps.Orders, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))

		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Post("/", cartcontrollers.CartOpen(deps.Carts, logg))
			r.Route("/{cartId}", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(deps.Carts, logg))
				r.Post("/items", cartcontrollers.CartAddItem(deps.Carts, logg))
				r.Delete("/items", cartcontrollers.CartClear(deps.Carts, logg))
				r.Patch("/items/{itemId}", cartcontrollers.CartUpdateItem(deps.Carts, logg))
				r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(deps.Carts, logg))
				r.Post("/coupon", cartcontrollers.CartApplyCoupon(deps.Carts, logg))
				r.Delete("/coupon", cartcontrollers.CartRemoveCoupon(deps.Carts, logg))
				r.Put("/shipping-method", cartcontrollers.CartSetShippingMethod(deps.Carts, logg))
			})
		})

		r.With(
			limit(checkoutPolicy),
			idempotent,
		).Post("/api/v1/checkout", checkoutcontrollers.Checkout(deps.Checkout, logg))

		r.Route("/api/v1/orders/{orderId}", func(r chi.Router) {
			r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
			r.Get("/tracking", ordercontrollers.Tracking(deps.Orders, trackingSource(deps.Tracking), logg))
			r.With(
				limit(retryPolicy),
				idempotent,
			).Post("/payments", ordercontrollers.RetryPayment(deps.Orders, deps.Payments, logg))
			r.With(idempotent).Post("/cancel", ordercontrollers.Cancel(deps.Orders, logg))
		})

		r.Route("/api/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))
			r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))

			r.Get("/orders/{orderId}", admincontrollers.OrderDetail(deps.Orders, logg))
			r.Get("/orders/{orderId}/payments", admincontrollers.OrderPayments(deps.Payments, logg))
			r.With(idempotent).Post("/orders/{orderId}/cancel", admincontrollers.CancelOrder(deps.Orders, logg))
			r.With(idempotent).Patch("/payments/{paymentId}/status", admincontrollers.UpdatePaymentStatus(deps.Payments, logg))
			r.With(idempotent).Post("/variants/{variantId}/restock", admincontrollers.RestockVariant(deps.Inventory, logg))
			if deps.DeadLetters != nil {
				r.Get("/outbox/dead-letters", admincontrollers.ListDeadLetters(deps.DeadLetters, logg))
				r.Post("/outbox/dead-letters/{eventId}/requeue", admincontrollers.RequeueDeadLetter(deps.DeadLetters, logg))
			}
		})
	})

	return r
}

func readinessDeps(deps Deps) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{}
	if deps.DB != nil {
		checks["postgres"] = deps.DB
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	return checks
}

// trackingSource keeps a nil dispatcher from becoming a non-nil interface.
func trackingSource(d *shipping.Dispatcher) ordercontrollers.TrackingSource {
	if d == nil {
		return nil
	}
	return d
}

func passthrough(next http.Handler) http.Handler { return next }
