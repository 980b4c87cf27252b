package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storefront/customizer/internal/platform/httpx"
	"github.com/storefront/customizer/internal/productstate"
	"github.com/storefront/customizer/internal/services"
)

// SessionHandlers exposes product session state transitions.
type SessionHandlers struct {
	sessions services.ProductSessionService
}

// NewSessionHandlers constructs session handlers.
func NewSessionHandlers(sessions services.ProductSessionService) *SessionHandlers {
	return &SessionHandlers{sessions: sessions}
}

// Routes wires the /sessions endpoints onto the provided router.
func (h *SessionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/{sessionID}", func(rt chi.Router) {
		rt.Get("/", h.getSession)
		rt.Patch("/", h.patchSession)
		rt.Put("/options/{option}", h.selectOption)
		rt.Put("/image", h.selectImage)
		rt.Put("/customization", h.updateCustomization)
		rt.Post("/confirm", h.confirm)
	})
}

type selectOptionRequest struct {
	Value string `json:"value"`
}

type selectImageRequest struct {
	Index string `json:"index"`
}

func (h *SessionHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		serviceUnavailable(ctx, w, "session")
		return
	}
	sess, err := h.sessions.Get(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSessionPayload(sess))
}

func (h *SessionHandlers) patchSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		serviceUnavailable(ctx, w, "session")
		return
	}
	var update productstate.Update
	if err := httpx.DecodeJSON(r, maxJSONBodySize, &update); err != nil {
		httpx.WriteBodyError(w, r, err)
		return
	}
	sess, err := h.sessions.Update(ctx, chi.URLParam(r, "sessionID"), update)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSessionPayload(sess))
}

func (h *SessionHandlers) selectOption(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		serviceUnavailable(ctx, w, "session")
		return
	}
	var req selectOptionRequest
	if err := httpx.DecodeJSON(r, maxJSONBodySize, &req); err != nil {
		httpx.WriteBodyError(w, r, err)
		return
	}
	sess, err := h.sessions.SelectOption(ctx, chi.URLParam(r, "sessionID"), chi.URLParam(r, "option"), req.Value)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSessionPayload(sess))
}

func (h *SessionHandlers) selectImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		serviceUnavailable(ctx, w, "session")
		return
	}
	var req selectImageRequest
	if err := httpx.DecodeJSON(r, maxJSONBodySize, &req); err != nil {
		httpx.WriteBodyError(w, r, err)
		return
	}
	sess, err := h.sessions.SelectImage(ctx, chi.URLParam(r, "sessionID"), req.Index)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSessionPayload(sess))
}

func (h *SessionHandlers) updateCustomization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		serviceUnavailable(ctx, w, "session")
		return
	}
	var req customizationRequest
	if err := httpx.DecodeJSON(r, maxJSONBodySize, &req); err != nil {
		httpx.WriteBodyError(w, r, err)
		return
	}
	sess, err := h.sessions.UpdateCustomization(ctx, chi.URLParam(r, "sessionID"), req.toDomain())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSessionPayload(sess))
}

func (h *SessionHandlers) confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		serviceUnavailable(ctx, w, "session")
		return
	}
	sess, err := h.sessions.Confirm(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSessionPayload(sess))
}
