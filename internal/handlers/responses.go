package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/storefront/customizer/internal/customization"
	domain "github.com/storefront/customizer/internal/domain"
	"github.com/storefront/customizer/internal/platform/httpx"
	"github.com/storefront/customizer/internal/preview"
	"github.com/storefront/customizer/internal/productstate"
	"github.com/storefront/customizer/internal/services"
)

const maxJSONBodySize = 16 * 1024

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type attributePayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type variantPayload struct {
	ID               string            `json:"id"`
	SKU              string            `json:"sku,omitempty"`
	Title            string            `json:"title"`
	Price            int64             `json:"price"`
	AvailableForSale bool              `json:"availableForSale"`
	SelectedOptions  map[string]string `json:"selectedOptions,omitempty"`
}

type optionPayload struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type productPayload struct {
	ID               string           `json:"id"`
	Handle           string           `json:"handle"`
	Title            string           `json:"title"`
	DescriptionHTML  string           `json:"descriptionHtml"`
	Price            int64            `json:"price"`
	Currency         string           `json:"currency"`
	AvailableForSale bool             `json:"availableForSale"`
	Customizable     bool             `json:"customizable"`
	Options          []optionPayload  `json:"options"`
	Variants         []variantPayload `json:"variants"`
}

type sessionPayload struct {
	ID            string             `json:"id"`
	ProductHandle string             `json:"product"`
	State         productstate.State `json:"state"`
	Confirmed     productstate.State `json:"confirmed"`
	Pending       int                `json:"pending"`
	Query         string             `json:"query"`
	Variant       *variantPayload    `json:"selectedVariant"`
	Customizable  bool               `json:"customizable"`
	Preview       preview.Descriptor `json:"preview"`
	CreatedAt     string             `json:"createdAt"`
	UpdatedAt     string             `json:"updatedAt"`
}

type cartItemPayload struct {
	ID            string             `json:"id"`
	ProductID     string             `json:"productId"`
	ProductHandle string             `json:"productHandle"`
	VariantID     string             `json:"variantId"`
	SKU           string             `json:"sku,omitempty"`
	Title         string             `json:"title"`
	Quantity      int                `json:"quantity"`
	UnitPrice     int64              `json:"unitPrice"`
	Currency      string             `json:"currency"`
	Attributes    []attributePayload `json:"attributes"`
	AddedAt       string             `json:"addedAt"`
	UpdatedAt     string             `json:"updatedAt,omitempty"`
}

type cartEstimatePayload struct {
	Subtotal  int64 `json:"subtotal"`
	ItemCount int   `json:"itemCount"`
	Total     int64 `json:"total"`
}

type cartPayload struct {
	ID        string              `json:"id"`
	Currency  string              `json:"currency"`
	Items     []cartItemPayload   `json:"items"`
	Estimate  cartEstimatePayload `json:"estimate"`
	UpdatedAt string              `json:"updatedAt,omitempty"`
}

func buildAttributes(attrs domain.Attributes) []attributePayload {
	out := make([]attributePayload, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, attributePayload{Key: attr.Key, Value: attr.Value})
	}
	return out
}

func buildVariantPayload(v domain.ProductVariant) variantPayload {
	payload := variantPayload{
		ID:               v.ID,
		SKU:              v.SKU,
		Title:            v.Title,
		Price:            v.Price,
		AvailableForSale: v.AvailableForSale,
	}
	if len(v.SelectedOptions) > 0 {
		payload.SelectedOptions = make(map[string]string, len(v.SelectedOptions))
		for _, opt := range v.SelectedOptions {
			payload.SelectedOptions[opt.Name] = opt.Value
		}
	}
	return payload
}

func buildProductPayload(p domain.Product) productPayload {
	payload := productPayload{
		ID:               p.ID,
		Handle:           p.Handle,
		Title:            p.Title,
		DescriptionHTML:  p.DescriptionHTML,
		Price:            p.Price,
		Currency:         p.Currency,
		AvailableForSale: p.AvailableForSale,
		Customizable:     p.Customizable,
		Options:          make([]optionPayload, 0, len(p.Options)),
		Variants:         make([]variantPayload, 0, len(p.Variants)),
	}
	for _, opt := range p.Options {
		payload.Options = append(payload.Options, optionPayload{Name: opt.Name, Values: append([]string(nil), opt.Values...)})
	}
	for _, v := range p.Variants {
		payload.Variants = append(payload.Variants, buildVariantPayload(v))
	}
	return payload
}

func buildSessionPayload(s services.ProductSession) sessionPayload {
	payload := sessionPayload{
		ID:            s.ID,
		ProductHandle: s.ProductHandle,
		State:         s.State,
		Confirmed:     s.Confirmed,
		Pending:       s.Pending,
		Query:         s.Query,
		Customizable:  s.Customizable,
		Preview:       s.Preview,
		CreatedAt:     formatTime(s.CreatedAt, time.Time{}),
		UpdatedAt:     formatTime(s.UpdatedAt, time.Time{}),
	}
	if s.Variant != nil {
		v := buildVariantPayload(*s.Variant)
		payload.Variant = &v
	}
	return payload
}

func buildCartPayload(cart services.Cart) cartPayload {
	est := cart.Estimate()
	payload := cartPayload{
		ID:       cart.ID,
		Currency: cart.Currency,
		Items:    make([]cartItemPayload, 0, len(cart.Items)),
		Estimate: cartEstimatePayload{
			Subtotal:  est.Subtotal,
			ItemCount: est.ItemCount,
			Total:     est.Total,
		},
		UpdatedAt: formatTime(cart.UpdatedAt, time.Time{}),
	}
	for _, item := range cart.Items {
		line := cartItemPayload{
			ID:            item.ID,
			ProductID:     item.ProductID,
			ProductHandle: item.ProductHandle,
			VariantID:     item.VariantID,
			SKU:           item.SKU,
			Title:         item.Title,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Currency:      item.Currency,
			Attributes:    buildAttributes(item.Attributes),
			AddedAt:       formatTime(item.AddedAt, time.Time{}),
		}
		if item.UpdatedAt != nil {
			line.UpdatedAt = formatTime(*item.UpdatedAt, time.Time{})
		}
		payload.Items = append(payload.Items, line)
	}
	return payload
}

// writeValidationError answers 422 with the per-field messages of an invalid customization.
func writeValidationError(ctx context.Context, w http.ResponseWriter, verr *customization.ValidationError) {
	fields := verr.Fields()
	names := make([]string, 0, len(fields))
	for field := range fields {
		names = append(names, string(field))
	}
	sort.Strings(names)

	errs := make(map[string]any, len(fields))
	for field, msg := range fields {
		errs[string(field)] = msg
	}
	kinds := make(map[string]any, len(verr.Result.Kinds))
	for field, kind := range verr.Result.Kinds {
		kinds[string(field)] = string(kind)
	}

	httpx.WriteError(ctx, w, httpx.NewError("invalid_customization", "customization failed validation", http.StatusUnprocessableEntity).
		WithDetails(map[string]any{
			"fields": names,
			"errors": errs,
			"kinds":  kinds,
		}))
}

// writeServiceError maps service sentinels onto the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var verr *customization.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(ctx, w, verr)
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "session not found or expired", http.StatusNotFound))
	case errors.Is(err, services.ErrSessionInvalidInput), errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartVariantRequired):
		httpx.WriteError(ctx, w, httpx.NewError("variant_required", "select every option before adding to cart", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCustomizationRequired):
		httpx.WriteError(ctx, w, httpx.NewError("customization_required", "enter customization text before adding to cart", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCartProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "selected product is not available for sale", http.StatusConflict))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart or line item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", "cart has been modified; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

func serviceUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_service_unavailable", name+" service is unavailable", http.StatusServiceUnavailable))
}
