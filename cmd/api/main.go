package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/shopcore-backend/api/routes"
	"github.com/angelmondragon/shopcore-backend/internal/automation"
	"github.com/angelmondragon/shopcore-backend/internal/cart"
	"github.com/angelmondragon/shopcore-backend/internal/checkout"
	"github.com/angelmondragon/shopcore-backend/internal/discounts"
	"github.com/angelmondragon/shopcore-backend/internal/gateways"
	"github.com/angelmondragon/shopcore-backend/internal/inventory"
	"github.com/angelmondragon/shopcore-backend/internal/notifications"
	"github.com/angelmondragon/shopcore-backend/internal/orders"
	"github.com/angelmondragon/shopcore-backend/internal/payments"
	"github.com/angelmondragon/shopcore-backend/internal/shipping"
	"github.com/angelmondragon/shopcore-backend/pkg/bootstrap"
	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
	"github.com/angelmondragon/shopcore-backend/pkg/metrics"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox/idempotency"
	pkgsquare "github.com/angelmondragon/shopcore-backend/pkg/square"
	pkgstripe "github.com/angelmondragon/shopcore-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	proc := bootstrap.Start("api")
	cfg, logg := proc.Config(), proc.Logger()

	dbClient := proc.Database(context.Background())
	redisClient := proc.Redis(context.Background())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	deadLetters, err := outbox.NewDeadLetters(dbClient, outbox.NewDLQRepository(gormDB), logg)
	proc.Must(err, "failed to build dead-letter store")
	ordersRepo := orders.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	ledger := inventory.NewLedger(gormDB)

	accessKeys, err := orders.NewAccessKeys(cfg.Checkout.AccessKeySecret)
	proc.Must(err, "failed to configure order access keys")

	coupons, err := discounts.ParseCatalog(cfg.Coupons.Catalog)
	proc.Must(err, "failed to parse coupon catalog")

	gatewayRegistry, err := buildGateways(context.Background(), cfg, logg)
	proc.Must(err, "failed to configure payment gateways")

	replayGuard, err := idempotency.NewManager(redisClient, cfg.Eventing.WebhookReplayTTL)
	proc.Must(err, "failed to create webhook replay guard")

	mailer := buildMailer(cfg, logg)
	notifier, err := notifications.NewService(mailer, replayGuard, logg)
	proc.Must(err, "failed to create notification service")

	automationService, err := automation.NewService(dbClient, ordersRepo, outboxService, logg)
	proc.Must(err, "failed to create automation service")

	paymentService, err := payments.NewService(payments.Deps{
		Tx:            dbClient,
		Orders:        ordersRepo,
		Gateways:      gatewayRegistry,
		Events:        outboxService,
		Automation:    automationService,
		Notifier:      notifier,
		Replay:        replayGuard,
		Metrics:       settlementMetrics,
		Logger:        logg,
		Epsilon:       cfg.Checkout.Epsilon(),
		ReturnBaseURL: cfg.Checkout.ReturnBaseURL,
	})
	proc.Must(err, "failed to create payment service")

	dispatcher, err := shipping.NewDispatcher(gormDB, shipping.NewManualProvider("MAN"), logg)
	proc.Must(err, "failed to create shipment dispatcher")

	cartService, err := cart.NewService(cartRepo, dbClient, ledger, coupons, enums.Currency(cfg.Checkout.DefaultCurrency), logg)
	proc.Must(err, "failed to create cart service")

	checkoutService, err := checkout.NewService(checkout.Deps{
		Tx:                dbClient,
		Carts:             cartRepo,
		Orders:            ordersRepo,
		Ledger:            ledger,
		Events:            outboxService,
		Keys:              accessKeys,
		Payments:          paymentService,
		Shipments:         dispatcher,
		Metrics:           settlementMetrics,
		Logger:            logg,
		OrderNumberPrefix: cfg.Checkout.OrderNumberPrefix,
	})
	proc.Must(err, "failed to create checkout service")

	orderService, err := orders.NewService(ordersRepo, dbClient, ledger, outboxService, accessKeys, logg)
	proc.Must(err, "failed to create order service")

	inventoryService, err := inventory.NewService(dbClient, ledger, logg)
	proc.Must(err, "failed to create inventory service")

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Carts:     cartService,
			Checkout:  checkoutService,
			Orders:    orderService,
			Payments:  paymentService,
			Inventory: inventoryService,
			Tracking:  dispatcher,
			Gatherer:  registry,

			DeadLetters: deadLetters,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := proc.Context(map[string]any{
		"addr":     server.Addr,
		"gateways": gatewayRegistry.Names(),
	})
	defer stop()
	proc.Run(ctx, func(ctx context.Context) error { return serve(ctx, server) })
}

// serve runs server until ctx ends, then drains in-flight requests.
func serve(ctx context.Context, server *http.Server) error {
	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// buildGateways registers an adapter for every provider whose credentials are
// configured. Missing credentials leave the method unavailable at checkout.
func buildGateways(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*gateways.Registry, error) {
	opts := gateways.Options{
		TestMode: gateways.TestModeEnabled(cfg.FeatureFlags.GatewayTestMode),
		Logger:   logg,
	}
	if opts.TestMode {
		logg.Warn(ctx, "gateway test mode enabled, unsigned callbacks are accepted")
	}

	var adapters []gateways.Adapter
	if cfg.VNPay.Enabled() {
		adapter, err := gateways.NewVNPay(cfg.VNPay, opts)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	if cfg.Stripe.Enabled() {
		client, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, err
		}
		adapter, err := gateways.NewStripe(client, client.SigningSecret(), cfg.Stripe, opts)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	if cfg.Square.Enabled() {
		client, err := pkgsquare.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, err
		}
		adapter, err := gateways.NewSquare(client, opts)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return gateways.NewRegistry(adapters...)
}

func buildMailer(cfg *config.Config, logg *logger.Logger) notifications.Mailer {
	if cfg.Sendgrid.APIKey == "" {
		logg.Warn(context.Background(), "sendgrid not configured, payment receipts go to the log")
		return notifications.NewLogMailer(logg)
	}
	mailer, err := notifications.NewSendgridMailer(cfg.Sendgrid, logg)
	if err != nil {
		logg.Warn(context.Background(), "sendgrid mailer unavailable, falling back to log: "+err.Error())
		return notifications.NewLogMailer(logg)
	}
	return mailer
}
