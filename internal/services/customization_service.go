package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront/customizer/internal/customization"
)

const instrumentationName = "github.com/storefront/customizer/internal/services"

var tracer = otel.Tracer(instrumentationName)

// CustomizationServiceDeps configures the customization service.
type CustomizationServiceDeps struct {
	MaxLength int
	Meter     metric.Meter
	Logger    func(context.Context, string, map[string]any)
}

type customizationService struct {
	maxLength   int
	validations metric.Int64Counter
	logger      func(context.Context, string, map[string]any)
}

// NewCustomizationService constructs a CustomizationService. A non-positive
// MaxLength uses customization.DefaultMaxLength.
func NewCustomizationService(deps CustomizationServiceDeps) CustomizationService {
	maxLength := deps.MaxLength
	if maxLength <= 0 {
		maxLength = customization.DefaultMaxLength
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}

	var counter metric.Int64Counter = noop.Int64Counter{}
	if c, err := meter.Int64Counter("customization.validations",
		metric.WithDescription("Customization validations by outcome"),
	); err == nil {
		counter = c
	} else {
		logger(context.Background(), "customization.metric_registration_failed", map[string]any{"error": err.Error()})
	}

	return &customizationService{
		maxLength:   maxLength,
		validations: counter,
		logger:      logger,
	}
}

func (s *customizationService) MaxLength() int {
	return s.maxLength
}

func (s *customizationService) Validate(ctx context.Context, c TextCustomization) customization.ValidationResult {
	ctx, span := tracer.Start(ctx, "customization.Validate")
	defer span.End()

	result := customization.ValidateMaxLength(c, s.maxLength)
	s.validations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("valid", result.Valid)))
	span.SetAttributes(attribute.Bool("customization.valid", result.Valid), attribute.Bool("customization.has_line2", c.HasLine2()))
	if !result.Valid {
		fields := make([]string, 0, len(result.Errors))
		for _, field := range customization.Fields {
			if _, ok := result.Errors[field]; ok {
				fields = append(fields, string(field))
			}
		}
		span.AddEvent("validation_failed", trace.WithAttributes(attribute.StringSlice("fields", fields)))
	}
	return result
}

func (s *customizationService) Sanitize(_ context.Context, text string) string {
	return customization.Sanitize(text)
}

func (s *customizationService) Attributes(ctx context.Context, c TextCustomization) (Attributes, error) {
	if err := s.Validate(ctx, c).Err(); err != nil {
		return nil, err
	}
	return customization.ToAttributes(c), nil
}
