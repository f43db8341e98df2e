package resolver

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler adapts a Resolver to net/http, issuing a 307 redirect on a hit
// and delegating to notFound on a miss so callers can serve a custom page.
type Handler struct {
	resolver *Resolver
	notFound http.HandlerFunc
	logger   *slog.Logger
}

// NewHandler builds a Handler. notFound is called as-is on any miss
// (absent, malformed, or expired code); pass nil to fall back to
// defaultNotFound, which sets the required public-cacheable headers.
func NewHandler(r *Resolver, notFound http.HandlerFunc, logger *slog.Logger) *Handler {
	if notFound == nil {
		notFound = defaultNotFound
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{resolver: r, notFound: notFound, logger: logger}
}

func defaultNotFound(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=60")
	http.NotFound(w, req)
}

// ServeHTTP implements http.Handler. It expects mux.Vars to carry "code",
// i.e. registration via Register below.
func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	code := mux.Vars(req)["code"]

	decision, err := h.resolver.Resolve(req.Context(), code, req.URL.RawQuery)
	if err != nil {
		h.logger.Error("resolve failed", "code", code, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !decision.Found {
		h.notFound(w, req)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	http.Redirect(w, req, decision.RedirectTo, http.StatusTemporaryRedirect)
}

// Register mounts h at a catch-all path on router so multi-segment codes
// (e.g. "foo/bar") reach Resolve instead of 404ing at the router.
func (h *Handler) Register(router *mux.Router) {
	router.Handle("/{code:.*}", h).Methods(http.MethodGet, http.MethodHead)
}
