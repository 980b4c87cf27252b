package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/storefront/customizer/internal/catalog"
	domain "github.com/storefront/customizer/internal/domain"
	"github.com/storefront/customizer/internal/platform/httpx"
	"github.com/storefront/customizer/internal/platform/pagination"
	"github.com/storefront/customizer/internal/preview"
	"github.com/storefront/customizer/internal/productstate"
	"github.com/storefront/customizer/internal/services"
)

// ProductReader is the catalog surface used by the product endpoints.
type ProductReader interface {
	services.ProductCatalog
	Products(ctx context.Context) []domain.Product
}

// ProductHandlers serves product pages, previews and session creation.
type ProductHandlers struct {
	catalog  ProductReader
	sessions services.ProductSessionService
}

// NewProductHandlers constructs product handlers. sessions may be nil, in which
// case session creation answers 503.
func NewProductHandlers(catalog ProductReader, sessions services.ProductSessionService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog, sessions: sessions}
}

// Routes wires the /products endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{handle}", h.getProduct)
	r.Get("/{handle}/preview.svg", h.previewSVG)
	r.Post("/{handle}/sessions", h.openSession)
}

type productListResponse struct {
	Products      []productPayload `json:"products"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

type productViewResponse struct {
	Product         productPayload     `json:"product"`
	State           productstate.State `json:"state"`
	SelectedVariant *variantPayload    `json:"selectedVariant"`
	Preview         preview.Descriptor `json:"preview"`
	Query           string             `json:"query"`
}

type openSessionRequest struct {
	State *productstate.Update `json:"state"`
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	products, next := pagination.Page(h.catalog.Products(ctx), params, func(p domain.Product) string { return p.Handle })
	resp := productListResponse{
		Products:      make([]productPayload, 0, len(products)),
		NextPageToken: next,
	}
	for _, p := range products {
		resp.Products = append(resp.Products, buildProductPayload(p))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	product, state, ok := h.resolve(w, r)
	if !ok {
		return
	}

	resp := productViewResponse{
		Product: buildProductPayload(product),
		State:   state,
		Preview: preview.FromState(state),
		Query:   productstate.ToQuery(nil, state).Encode(),
	}
	if variant, found := catalog.ResolveVariant(product, state); found {
		v := buildVariantPayload(variant)
		resp.SelectedVariant = &v
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *ProductHandlers) previewSVG(w http.ResponseWriter, r *http.Request) {
	product, state, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if !product.Customizable {
		httpx.WriteError(r.Context(), w, httpx.NewError("preview_unavailable", "product has no customization preview", http.StatusNotFound))
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, preview.RenderSVG(preview.FromState(state)))
}

func (h *ProductHandlers) openSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		serviceUnavailable(ctx, w, "session")
		return
	}

	var req openSessionRequest
	if err := httpx.DecodeJSON(r, maxJSONBodySize, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.WriteBodyError(w, r, err)
		return
	}

	cmd := services.OpenSessionCommand{
		ProductHandle: chi.URLParam(r, "handle"),
		Query:         r.URL.Query(),
	}
	if req.State != nil {
		cmd.Seed = *req.State
	}

	sess, err := h.sessions.Open(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/sessions/"+sess.ID)
	writeJSONResponse(w, http.StatusCreated, buildSessionPayload(sess))
}

// resolve loads the product named in the path and derives its state from the
// query string on top of the default option selection.
func (h *ProductHandlers) resolve(w http.ResponseWriter, r *http.Request) (domain.Product, productstate.State, bool) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return domain.Product{}, productstate.State{}, false
	}

	handle := strings.TrimSpace(chi.URLParam(r, "handle"))
	product, err := h.catalog.ProductByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			err = services.ErrProductNotFound
		}
		writeServiceError(ctx, w, err)
		return domain.Product{}, productstate.State{}, false
	}

	fromQuery := productstate.FromQuery(r.URL.Query())
	seed := productstate.Update{Values: fromQuery.Values()}
	if c, ok := fromQuery.Customization(); ok {
		seed.Customization = &c
	}
	return product, productstate.Merge(catalog.DefaultState(product), seed), true
}
