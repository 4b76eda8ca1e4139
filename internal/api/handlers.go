package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"walkypainty/internal/canvas"
	"walkypainty/internal/identity"
	"walkypainty/internal/middleware"
	"walkypainty/internal/presence"
)

// PresenceSource reports live connection counts
type PresenceSource interface {
	Stats(ctx context.Context) (presence.Stats, error)
}

type handlers struct {
	canvases *canvas.Service
	presence PresenceSource
	logger   *zap.Logger
}

func who(r *http.Request) identity.Identity {
	if ident, ok := middleware.IdentityFrom(r.Context()); ok {
		return ident
	}
	return identity.NewGuest()
}

func (h *handlers) welcome(w http.ResponseWriter, r *http.Request) {
	respondMessage(w, http.StatusOK, "Welcome to the WalkyPainty API")
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) presenceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.presence.Stats(r.Context())
	if err != nil {
		h.logger.Warn("presence stats", zap.Error(err))
		respondMessage(w, http.StatusServiceUnavailable, "Realtime server unavailable")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// listCanvases: ?public=false adds the caller's readable private canvases
func (h *handlers) listCanvases(w http.ResponseWriter, r *http.Request) {
	publicOnly := r.URL.Query().Get("public") != "false"
	list, err := h.canvases.List(r.Context(), who(r), publicOnly)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondList(w, list)
}

func (h *handlers) createCanvas(w http.ResponseWriter, r *http.Request) {
	var req canvas.CreateCanvasRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	c, err := h.canvases.Create(r.Context(), who(r), req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *handlers) getCanvas(w http.ResponseWriter, r *http.Request) {
	c, err := h.canvases.Get(r.Context(), who(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *handlers) updateCanvas(w http.ResponseWriter, r *http.Request) {
	var req canvas.UpdateCanvasRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	c, err := h.canvases.Update(r.Context(), who(r), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *handlers) deleteCanvas(w http.ResponseWriter, r *http.Request) {
	if err := h.canvases.Delete(r.Context(), who(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Canvas deleted")
}

func (h *handlers) saveStroke(w http.ResponseWriter, r *http.Request) {
	var req canvas.SaveStrokeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	st, err := h.canvases.SaveStroke(r.Context(), who(r), req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, st)
}

func (h *handlers) listStrokes(w http.ResponseWriter, r *http.Request) {
	strokes, err := h.canvases.Strokes(r.Context(), who(r), chi.URLParam(r, "canvasId"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondList(w, strokes)
}
