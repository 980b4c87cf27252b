package di

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/storefront/customizer/internal/catalog"
	"github.com/storefront/customizer/internal/platform/config"
	"github.com/storefront/customizer/internal/platform/requestctx"
	"github.com/storefront/customizer/internal/repositories"
	"github.com/storefront/customizer/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Customization services.CustomizationService
	Sessions      services.ProductSessionService
	Carts         services.CartService
}

// Infrastructure carries the adapters built by the caller. Publisher, Meter and
// Clock are optional.
type Infrastructure struct {
	Catalog   *catalog.Catalog
	Carts     repositories.CartRepository
	Publisher services.LineItemPublisher
	Meter     metric.Meter
	Logger    *zap.Logger
	Clock     func() time.Time
}

// Container wires the catalog, repositories and services for runtime use.
type Container struct {
	Config   config.Config
	Catalog  *catalog.Catalog
	Services Services

	closers []func(context.Context) error
}

// NewContainer constructs the service graph from cfg and infra.
func NewContainer(cfg config.Config, infra Infrastructure) (*Container, error) {
	if infra.Catalog == nil {
		return nil, errors.New("di: catalog is required")
	}
	if infra.Carts == nil {
		return nil, errors.New("di: cart repository is required")
	}
	clock := infra.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := infra.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	customizationSvc := services.NewCustomizationService(services.CustomizationServiceDeps{
		MaxLength: cfg.Customization.MaxLength,
		Meter:     infra.Meter,
		Logger:    ServiceLogger(logger.Named("customization")),
	})

	sessionSvc, err := services.NewProductSessionService(services.ProductSessionServiceDeps{
		Catalog:       infra.Catalog,
		Customization: customizationSvc,
		Clock:         clock,
		IdleTTL:       cfg.Sessions.IdleTTL,
		Logger:        ServiceLogger(logger.Named("sessions")),
	})
	if err != nil {
		return nil, fmt.Errorf("build session service: %w", err)
	}

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Repository:      infra.Carts,
		Catalog:         infra.Catalog,
		Customization:   customizationSvc,
		Publisher:       infra.Publisher,
		Meter:           infra.Meter,
		Clock:           clock,
		DefaultCurrency: cfg.Carts.DefaultCurrency,
		Logger:          ServiceLogger(logger.Named("carts")),
	})
	if err != nil {
		return nil, fmt.Errorf("build cart service: %w", err)
	}

	return &Container{
		Config:  cfg,
		Catalog: infra.Catalog,
		Services: Services{
			Customization: customizationSvc,
			Sessions:      sessionSvc,
			Carts:         cartSvc,
		},
	}, nil
}

// LoadCatalog reads the configured catalog file, or the embedded catalog when none is set.
func LoadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	opts := []catalog.Option{catalog.WithCustomizableTitle(cfg.Customization.ProductTitle)}
	if path := strings.TrimSpace(cfg.Catalog.File); path != "" {
		return catalog.LoadFile(path, opts...)
	}
	return catalog.Default(opts...)
}

// OnClose registers fn to run during Close. Functions run in reverse order.
func (c *Container) OnClose(fn func(context.Context) error) {
	if c == nil || fn == nil {
		return
	}
	c.closers = append(c.closers, fn)
}

// Close releases resources registered with OnClose.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// ServiceLogger adapts zap to the event hook accepted by the services. The
// request logger on ctx wins over base so request fields are kept.
func ServiceLogger(base *zap.Logger) func(context.Context, string, map[string]any) {
	if base == nil {
		base = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = base
		}

		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		zapFields := make([]zap.Field, 0, len(keys)+1)
		zapFields = append(zapFields, zap.String("event", event))
		for _, k := range keys {
			zapFields = append(zapFields, zap.Any(k, fields[k]))
		}

		if strings.HasSuffix(event, "_failed") {
			logger.Warn(event, zapFields...)
			return
		}
		logger.Info(event, zapFields...)
	}
}
