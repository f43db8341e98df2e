package admin

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shortlinkd/shortlinkd/internal/accumulator"
	"github.com/shortlinkd/shortlinkd/internal/store"
)

// HealthHandler serves the unauthenticated liveness/readiness endpoint.
type HealthHandler struct {
	store store.Store
	accum *accumulator.Accumulator
}

// NewHealthHandler builds a HealthHandler.
func NewHealthHandler(st store.Store, a *accumulator.Accumulator) *HealthHandler {
	return &HealthHandler{store: st, accum: a}
}

type healthResponse struct {
	Status          string `json:"status"`
	StoreReachable  bool   `json:"store_reachable"`
	BufferedClicks  uint64 `json:"buffered_clicks"`
	TotalLinks      uint64 `json:"total_links,omitempty"`
	ActiveLinks     uint64 `json:"active_links,omitempty"`
}

// ServeHTTP implements http.Handler. 200 when the Store is reachable,
// 503 otherwise; never requires the bearer token.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", StoreReachable: true}

	if err := h.store.Health(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.StoreReachable = false
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	if stats, err := h.store.GetStats(r.Context()); err == nil {
		resp.TotalLinks = stats.TotalLinks
		resp.ActiveLinks = stats.ActiveLinks
	}
	if h.accum != nil {
		resp.BufferedClicks = h.accum.Buffered()
	}

	writeJSON(w, http.StatusOK, resp)
}

// Register mounts h at prefix, unwrapped by the admin auth middleware.
func (h *HealthHandler) Register(router *mux.Router, prefix string) {
	router.Handle(prefix, h).Methods(http.MethodGet)
}
