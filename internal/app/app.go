package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/vejoias/api"
	"github.com/xenking/vejoias/internal/auth"
	"github.com/xenking/vejoias/internal/domain/cart"
	"github.com/xenking/vejoias/internal/domain/catalog"
	"github.com/xenking/vejoias/internal/domain/coupon"
	"github.com/xenking/vejoias/internal/domain/notify"
	"github.com/xenking/vejoias/internal/domain/order"
	"github.com/xenking/vejoias/internal/domain/payment"
	"github.com/xenking/vejoias/internal/domain/user"
	"github.com/xenking/vejoias/internal/gateway/email"
	"github.com/xenking/vejoias/internal/gateway/evolution"
	"github.com/xenking/vejoias/internal/gateway/mercadopago"
	"github.com/xenking/vejoias/internal/gateway/mockpay"
	"github.com/xenking/vejoias/internal/handler"
	"github.com/xenking/vejoias/internal/storage/cache"
	"github.com/xenking/vejoias/internal/storage/postgres"
	"github.com/xenking/vejoias/pkg/health"
	"github.com/xenking/vejoias/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	// Repositories.
	jewelRepo := postgres.NewJewelRepository(pool)
	categoryRepo := postgres.NewCategoryRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	var cartRepo cart.Repository = postgres.NewCartRepository(pool)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		cartRepo = cache.NewCachedCarts(cartRepo, cache.NewCartCache(rdb, cfg.CartCache.TTL, cfg.CartCache.Jitter))
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.RedisCheck(rdb))
		lg.Info("Cart cache enabled", zap.Duration("ttl", cfg.CartCache.TTL))
	} else {
		lg.Warn("Cart cache disabled, no redis url configured")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Gateways.
	payments, err := newPaymentGateway(cfg.Payment)
	if err != nil {
		return errors.Wrap(err, "create payment gateway")
	}
	notifier, err := newNotifier(lg, cfg)
	if err != nil {
		return errors.Wrap(err, "create notifier")
	}

	// Domain services.
	catalogService := catalog.NewService(jewelRepo, categoryRepo)
	cartService := cart.NewService(cartRepo, jewelRepo)
	userService := user.NewService(userRepo, auth.NewBcryptHasher())
	orderService, err := order.NewService(order.Deps{
		Orders:   orderRepo,
		Carts:    cartService,
		Jewels:   jewelRepo,
		Users:    userRepo,
		Coupons:  coupon.NewRepoValidator(couponRepo),
		Payments: payments,
		Notifier: notifier,
	}, order.WithMeterProvider(m.MeterProvider()))
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	tokens, err := auth.NewIssuer(auth.IssuerConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return errors.Wrap(err, "create token issuer")
	}

	// HTTP handlers: API routes + health endpoints on one chi router.
	mux := handler.New(handler.Deps{
		Catalog: catalogService,
		Carts:   cartService,
		Orders:  orderService,
		Users:   userService,
		Tokens:  tokens,
		Schema:  api.OpenAPI,
	}).Router()
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("vejoias-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func newPaymentGateway(cfg PaymentConfig) (payment.Gateway, error) {
	switch cfg.Provider {
	case "mercadopago":
		return mercadopago.New(mercadopago.Config{
			BaseURL:     cfg.MercadoPago.BaseURL,
			AccessToken: cfg.MercadoPago.AccessToken,
			Timeout:     cfg.MercadoPago.Timeout,
		})
	case "mock", "":
		return mockpay.New(cfg.FailureRatio), nil
	default:
		return nil, errors.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

// newNotifier fans out to every configured channel. Channels without
// configuration only log.
func newNotifier(lg *zap.Logger, cfg *Config) (notify.Notifier, error) {
	var channels notify.Multi

	if cfg.Email.Host != "" {
		sender, err := email.New(email.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		})
		if err != nil {
			return nil, err
		}
		channels = append(channels, sender)
	} else {
		lg.Warn("Email notifications disabled")
		channels = append(channels, notify.Log{Channel: "email"})
	}

	if cfg.WhatsApp.BaseURL != "" {
		client, err := evolution.New(evolution.Config{
			BaseURL:  cfg.WhatsApp.BaseURL,
			APIKey:   cfg.WhatsApp.APIKey,
			Instance: cfg.WhatsApp.Instance,
			Timeout:  cfg.WhatsApp.Timeout,
		})
		if err != nil {
			return nil, err
		}
		channels = append(channels, client)
	} else {
		lg.Warn("WhatsApp notifications disabled")
		channels = append(channels, notify.Log{Channel: "whatsapp"})
	}
	return channels, nil
}
