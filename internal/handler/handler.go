// Package handler serves built networks over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"transitnet/internal/network"
	"transitnet/internal/storage"
)

// Snapshots returns the latest network snapshot of a kind.
type Snapshots interface {
	Get(ctx context.Context, kind string) (*storage.Snapshot, error)
}

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	nets   Snapshots
	logger *slog.Logger
}

// New creates a Handler.
func New(nets Snapshots, logger *slog.Logger) *Handler {
	return &Handler{nets: nets, logger: logger}
}

type errorResponse struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) errorJSON(w http.ResponseWriter, status int, text string) {
	h.writeJSON(w, status, errorResponse{Code: status, Text: text})
}

// snapshot resolves the :kind parameter and loads its latest snapshot. It
// writes the error response itself and returns nil on failure.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) *storage.Snapshot {
	kind := httprouter.ParamsFromContext(r.Context()).ByName("kind")
	if _, err := network.ParseKind(kind); err != nil {
		h.errorJSON(w, http.StatusNotFound, err.Error())
		return nil
	}
	snap, err := h.nets.Get(r.Context(), kind)
	if errors.Is(err, storage.ErrNoBuild) {
		h.errorJSON(w, http.StatusNotFound, "no "+kind+" network has been built")
		return nil
	}
	if err != nil {
		h.logger.Error("load snapshot failed", "kind", kind, "error", err)
		h.errorJSON(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	return snap
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
