package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storefront/customizer/internal/customization"
	domain "github.com/storefront/customizer/internal/domain"
	"github.com/storefront/customizer/internal/platform/httpx"
	"github.com/storefront/customizer/internal/services"
)

// CustomizationHandlers exposes the text customization rules over HTTP.
type CustomizationHandlers struct {
	customizations services.CustomizationService
}

// NewCustomizationHandlers constructs customization handlers.
func NewCustomizationHandlers(customizations services.CustomizationService) *CustomizationHandlers {
	return &CustomizationHandlers{customizations: customizations}
}

// Routes wires the /customizations endpoints onto the provided router.
func (h *CustomizationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/rules", h.rules)
	r.Post("/validate", h.validate)
	r.Post("/sanitize", h.sanitize)
	r.Post("/attributes", h.attributes)
}

type customizationRequest struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

func (req customizationRequest) toDomain() domain.TextCustomization {
	return domain.TextCustomization{Line1: req.Line1, Line2: req.Line2}
}

type sanitizeRequest struct {
	Text string `json:"text"`
}

type sanitizeResponse struct {
	Text string `json:"text"`
}

type attributesResponse struct {
	Attributes []attributePayload `json:"attributes"`
}

type rulesResponse struct {
	MaxLength          int      `json:"maxLength"`
	RequiredFields     []string `json:"requiredFields"`
	AllowedPunctuation string   `json:"allowedPunctuation"`
	AttributeKeys      []string `json:"attributeKeys"`
}

func (h *CustomizationHandlers) rules(w http.ResponseWriter, r *http.Request) {
	if h.customizations == nil {
		serviceUnavailable(r.Context(), w, "customization")
		return
	}
	writeJSONResponse(w, http.StatusOK, rulesResponse{
		MaxLength:          h.customizations.MaxLength(),
		RequiredFields:     []string{string(customization.FieldLine1)},
		AllowedPunctuation: ".,!?-",
		AttributeKeys:      []string{customization.AttributeLine1, customization.AttributeLine2},
	})
}

func (h *CustomizationHandlers) validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customizations == nil {
		serviceUnavailable(ctx, w, "customization")
		return
	}
	var req customizationRequest
	if err := httpx.DecodeJSON(r, maxJSONBodySize, &req); err != nil {
		httpx.WriteBodyError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.customizations.Validate(ctx, req.toDomain()))
}

func (h *CustomizationHandlers) sanitize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customizations == nil {
		serviceUnavailable(ctx, w, "customization")
		return
	}
	var req sanitizeRequest
	if err := httpx.DecodeJSON(r, maxJSONBodySize, &req); err != nil {
		httpx.WriteBodyError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sanitizeResponse{Text: h.customizations.Sanitize(ctx, req.Text)})
}

func (h *CustomizationHandlers) attributes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customizations == nil {
		serviceUnavailable(ctx, w, "customization")
		return
	}
	var req customizationRequest
	if err := httpx.DecodeJSON(r, maxJSONBodySize, &req); err != nil {
		httpx.WriteBodyError(w, r, err)
		return
	}
	attrs, err := h.customizations.Attributes(ctx, req.toDomain())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, attributesResponse{Attributes: buildAttributes(attrs)})
}
