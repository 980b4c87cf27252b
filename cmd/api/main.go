package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/storefront/customizer/internal/di"
	"github.com/storefront/customizer/internal/handlers"
	"github.com/storefront/customizer/internal/platform/config"
	pfirestore "github.com/storefront/customizer/internal/platform/firestore"
	"github.com/storefront/customizer/internal/platform/idempotency"
	"github.com/storefront/customizer/internal/platform/jobs"
	"github.com/storefront/customizer/internal/platform/observability"
	"github.com/storefront/customizer/internal/repositories"
	firestoreRepo "github.com/storefront/customizer/internal/repositories/firestore"
	"github.com/storefront/customizer/internal/repositories/memory"
	"github.com/storefront/customizer/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	cat, err := di.LoadCatalog(cfg)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.String("file", cfg.Catalog.File), zap.Error(err))
	}

	var (
		closers []func(context.Context) error
		checks  []repositories.DependencyCheck
	)

	backend, err := newCartBackend(cfg)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.String("backend", cfg.Carts.Backend), zap.Error(err))
	}
	checks = append(checks, backend.checks...)
	closers = append(closers, backend.close)

	stopJanitor := idempotency.StartJanitor(backend.submissions, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize, time.Now, logger.Named("idempotency"))
	closers = append(closers, func(context.Context) error {
		stopJanitor()
		return nil
	})

	var publisher services.LineItemPublisher
	if cfg.PubSub.Enabled() {
		topic, pubsubClose, err := newCartTopic(ctx, cfg.PubSub)
		if err != nil {
			logger.Fatal("failed to initialise pubsub topic", zap.String("topic", cfg.PubSub.CartTopic), zap.Error(err))
		}
		closers = append(closers, pubsubClose)
		p, err := jobs.NewPubSubLineItemPublisher(topic, cfg.PubSub.PublishTimeout)
		if err != nil {
			logger.Fatal("failed to initialise line item publisher", zap.Error(err))
		}
		publisher = p
		checks = append(checks, repositories.DependencyCheck{
			Name: "pubsub",
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", topic.ID())
				}
				return nil
			},
		})
	} else {
		logger.Info("pubsub topic not configured; line item events disabled")
	}

	container, err := di.NewContainer(cfg, di.Infrastructure{
		Catalog:   cat,
		Carts:     backend.carts,
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	for _, fn := range closers {
		container.OnClose(fn)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("resource close error", zap.Error(err))
		}
	}()

	healthOpts := []handlers.HealthOption{
		handlers.WithHealthBuildInfo(handlers.BuildInfo{
			Version:   cfg.Build.Version,
			CommitSHA: cfg.Build.CommitSHA,
			StartedAt: startedAt,
		}),
	}
	if len(checks) > 0 {
		healthRepo, err := repositories.NewDependencyHealthRepository(checks)
		if err != nil {
			logger.Warn("health: dependency checks disabled", zap.Error(err))
		} else {
			healthOpts = append(healthOpts, handlers.WithHealthRepository(healthRepo))
		}
	}

	svc := container.Services
	customizationHandlers := handlers.NewCustomizationHandlers(svc.Customization)
	productHandlers := handlers.NewProductHandlers(cat, svc.Sessions)
	sessionHandlers := handlers.NewSessionHandlers(svc.Sessions)
	cartHandlers := handlers.NewCartHandlers(svc.Carts, svc.Sessions)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithCustomizationRoutes(customizationHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithSessionRoutes(sessionHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithCartMiddlewares(idempotency.Middleware(backend.submissions,
			idempotency.WithHeader(cfg.Idempotency.Header),
			idempotency.WithTTL(cfg.Idempotency.TTL),
		)),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront customizer api listening",
			zap.String("cartBackend", cfg.Carts.Backend),
			zap.Int("products", len(cat.Products(ctx))),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

type cartBackend struct {
	carts       repositories.CartRepository
	submissions idempotency.Store
	checks      []repositories.DependencyCheck
	close       func(context.Context) error
}

func newCartBackend(cfg config.Config) (cartBackend, error) {
	switch cfg.Carts.Backend {
	case config.CartBackendFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		repo, err := firestoreRepo.NewCartRepository(provider)
		if err != nil {
			return cartBackend{}, err
		}
		submissions, err := idempotency.NewFirestoreStore(provider)
		if err != nil {
			return cartBackend{}, err
		}
		return cartBackend{
			carts:       repo,
			submissions: submissions,
			checks:      []repositories.DependencyCheck{{Name: "firestore", Check: repo.Ping}},
			close:       func(context.Context) error { return provider.Close() },
		}, nil
	default:
		return cartBackend{
			carts:       memory.NewCartRepository(time.Now),
			submissions: idempotency.NewMemoryStore(),
			close:       func(context.Context) error { return nil },
		}, nil
	}
}

func newCartTopic(ctx context.Context, cfg config.PubSubConfig) (*pubsub.Topic, func(context.Context) error, error) {
	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub: create client: %w", err)
	}
	topic := client.Topic(strings.TrimSpace(cfg.CartTopic))
	closeFn := func(context.Context) error {
		topic.Stop()
		return client.Close()
	}
	return topic, closeFn, nil
}
