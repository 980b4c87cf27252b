package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/storefront/customizer/internal/platform/httpx"
	"github.com/storefront/customizer/internal/platform/requestctx"
	"github.com/storefront/customizer/internal/productstate"
	"github.com/storefront/customizer/internal/services"
)

// CartHandlers exposes cart endpoints addressed by an opaque cart ID.
type CartHandlers struct {
	carts    services.CartService
	sessions services.ProductSessionService
}

// NewCartHandlers constructs cart handlers. sessions resolves add requests that
// reference a product session instead of carrying state inline; it may be nil.
func NewCartHandlers(carts services.CartService, sessions services.ProductSessionService) *CartHandlers {
	return &CartHandlers{carts: carts, sessions: sessions}
}

// Routes wires the /carts endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/{cartID}", func(rt chi.Router) {
		rt.Get("/", h.getCart)
		rt.Post("/items", h.addItem)
		rt.Delete("/items/{itemID}", h.removeItem)
	})
}

type addCartItemRequest struct {
	Product   string              `json:"product"`
	SessionID string              `json:"session_id"`
	State     *productstate.State `json:"state"`
	Quantity  *int                `json:"quantity"`
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		serviceUnavailable(ctx, w, "cart")
		return
	}
	cart, err := h.carts.GetCart(ctx, chi.URLParam(r, "cartID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		serviceUnavailable(ctx, w, "cart")
		return
	}

	var req addCartItemRequest
	if err := httpx.DecodeJSON(r, maxJSONBodySize, &req); err != nil {
		httpx.WriteBodyError(w, r, err)
		return
	}

	cmd := services.AddCartItemCommand{
		CartID:        chi.URLParam(r, "cartID"),
		ProductHandle: strings.TrimSpace(req.Product),
		Quantity:      1,
	}
	if req.Quantity != nil {
		cmd.Quantity = *req.Quantity
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = requestctx.SessionID(ctx)
	}
	switch {
	case req.State != nil:
		cmd.State = *req.State
	case sessionID != "":
		if h.sessions == nil {
			serviceUnavailable(ctx, w, "session")
			return
		}
		sess, err := h.sessions.Get(ctx, sessionID)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		if cmd.ProductHandle == "" {
			cmd.ProductHandle = sess.ProductHandle
		}
		if !strings.EqualFold(cmd.ProductHandle, sess.ProductHandle) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "session belongs to a different product", http.StatusBadRequest))
			return
		}
		cmd.State = sess.State
	}

	cart, err := h.carts.AddItem(ctx, cmd)
	if err != nil {
		requestctx.Logger(ctx).Sugar().Infow("add to cart rejected",
			"cartID", cmd.CartID,
			"product", cmd.ProductHandle,
			"error", err.Error(),
		)
		writeServiceError(ctx, w, err)
		return
	}
	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		serviceUnavailable(ctx, w, "cart")
		return
	}
	cart, err := h.carts.RemoveItem(ctx, chi.URLParam(r, "cartID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func setCartResponseHeaders(w http.ResponseWriter, cart services.Cart) {
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	if !cart.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", cart.UpdatedAt.UTC().Format(http.TimeFormat))
	}
}
