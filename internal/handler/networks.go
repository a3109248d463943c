package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"transitnet/internal/network"
	"transitnet/internal/storage"
)

// Network returns the summary of the latest build.
func (h *Handler) Network(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w, r)
	if snap == nil {
		return
	}
	h.writeJSON(w, http.StatusOK, snap.Build)
}

// NodesCSV streams the node table of the latest build.
func (h *Handler) NodesCSV(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w, r)
	if snap == nil {
		return
	}
	setCSVHeaders(w, snap, "nodes.csv")
	if err := network.WriteNodesCSV(w, snap.Nodes); err != nil {
		h.logger.Error("write nodes failed", "build", snap.Build.ID, "error", err)
	}
}

// EdgesCSV streams the edge table of the latest build.
func (h *Handler) EdgesCSV(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w, r)
	if snap == nil {
		return
	}
	mode := network.SingleEdge
	if snap.Build.Mode == network.MultiEdge.String() {
		mode = network.MultiEdge
	}
	setCSVHeaders(w, snap, "edges.csv")
	if err := network.WriteEdgesCSV(w, snap.Edges, mode); err != nil {
		h.logger.Error("write edges failed", "build", snap.Build.ID, "error", err)
	}
}

// GeoJSON renders the latest build as a feature collection.
func (h *Handler) GeoJSON(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w, r)
	if snap == nil {
		return
	}
	w.Header().Set("ETag", etag(snap))
	w.Header().Set("Content-Type", "application/geo+json")
	h.writeJSONBody(w, network.TablesGeoJSON(snap.Nodes, snap.Edges))
}

func (h *Handler) writeJSONBody(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

func setCSVHeaders(w http.ResponseWriter, snap *storage.Snapshot, name string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snap.Build.Kind+"-"+name))
	w.Header().Set("ETag", etag(snap))
}

func etag(snap *storage.Snapshot) string {
	return `"` + snap.Build.ID + `"`
}
