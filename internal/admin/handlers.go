package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/shortlinkd/shortlinkd/internal/cache"
	"github.com/shortlinkd/shortlinkd/internal/domain"
	"github.com/shortlinkd/shortlinkd/internal/reload"
	"github.com/shortlinkd/shortlinkd/internal/runtimeconfig"
	"github.com/shortlinkd/shortlinkd/internal/store"
)

// Handlers exposes the link, config, and reload admin endpoints.
type Handlers struct {
	store     store.Store
	cache     *cache.Composite
	cfg       *runtimeconfig.Manager
	reloader  *reload.Coordinator
	reserved  []string
}

// NewHandlers builds Handlers. reservedPrefixes lists the path segments
// reserved for routing (admin_prefix, health_prefix, frontend_prefix).
func NewHandlers(st store.Store, c *cache.Composite, cfg *runtimeconfig.Manager, r *reload.Coordinator, reservedPrefixes []string) *Handlers {
	return &Handlers{store: st, cache: c, cfg: cfg, reloader: r, reserved: reservedPrefixes}
}

type linkRequest struct {
	Code      string     `json:"code"`
	Target    string     `json:"target"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Password  string     `json:"password,omitempty"`
	Overwrite bool       `json:"overwrite,omitempty"`
}

type linkResponse struct {
	Code       string     `json:"code"`
	Target     string     `json:"target"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ClickCount uint64     `json:"click_count"`
}

func toLinkResponse(l *domain.ShortLink) linkResponse {
	return linkResponse{
		Code:       l.Code,
		Target:     l.Target,
		CreatedAt:  l.CreatedAt,
		ExpiresAt:  l.ExpiresAt,
		ClickCount: l.ClickCount,
	}
}

// CreateLink handles POST {admin_prefix}/links.
func (h *Handlers) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, r, "malformed request body")
		return
	}
	if err := structValidate.Struct(createLinkBody{Code: req.Code, Target: req.Target, Overwrite: req.Overwrite}); err != nil {
		writeError(w, http.StatusBadRequest, r, err.Error())
		return
	}

	if err := domain.Validate(req.Code, req.Target, h.reserved); err != nil {
		writeError(w, http.StatusBadRequest, r, err.Error())
		return
	}

	link := &domain.ShortLink{
		Code:      req.Code,
		Target:    req.Target,
		CreatedAt: time.Now(),
		ExpiresAt: req.ExpiresAt,
		Password:  req.Password,
	}

	result, err := h.store.Upsert(r.Context(), link, req.Overwrite)
	if err != nil {
		if domain.IsConflict(err) {
			writeError(w, http.StatusConflict, r, err.Error())
			return
		}
		if domain.IsValidation(err) {
			writeError(w, http.StatusBadRequest, r, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, r, "store failure")
		return
	}

	h.cache.Observe(r.Context(), link)
	_ = h.reloader.Notify(r.Context(), reload.Data)

	status := http.StatusOK
	if result == store.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toLinkResponse(link))
}

// ListLinks handles GET {admin_prefix}/links.
func (h *Handlers) ListLinks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilter{
		Query: q.Get("q"),
	}
	if q.Get("active") == "true" {
		filter.ActiveOnly = true
	}
	if t, err := time.Parse(time.RFC3339, q.Get("created_after")); err == nil {
		filter.CreatedAfter = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("created_before")); err == nil {
		filter.CreatedBefore = &t
	}

	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	page = store.ClampPage(page)
	pageSize = store.ClampPageSize(pageSize)

	links, total, err := h.store.List(r.Context(), filter, page, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, r, "store failure")
		return
	}

	out := make([]linkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, toLinkResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"links":     out,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetLink handles GET {admin_prefix}/links/{code}.
func (h *Handlers) GetLink(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	link, err := h.store.Get(r.Context(), code)
	if err != nil {
		if domain.IsNotFound(err) {
			writeError(w, http.StatusNotFound, r, "code not found")
			return
		}
		writeError(w, http.StatusInternalServerError, r, "store failure")
		return
	}
	writeJSON(w, http.StatusOK, toLinkResponse(link))
}

// DeleteLink handles DELETE {admin_prefix}/links/{code}.
func (h *Handlers) DeleteLink(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	found, err := h.store.Delete(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, r, "store failure")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, r, "code not found")
		return
	}

	h.cache.Invalidate(r.Context(), code)
	_ = h.reloader.Notify(r.Context(), reload.Data)
	w.WriteHeader(http.StatusNoContent)
}

// GetConfig handles GET {admin_prefix}/config.
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, runtimeconfig.Export(h.cfg.Current()))
}

// SetConfig handles PUT {admin_prefix}/config/{key}.
func (h *Handlers) SetConfig(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var body struct {
		Value     string `json:"value"`
		ChangedBy string `json:"changed_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, r, "malformed request body")
		return
	}
	if body.ChangedBy == "" {
		body.ChangedBy = "admin-api"
	}

	if err := h.cfg.Set(r.Context(), key, body.Value, body.ChangedBy); err != nil {
		var validationErr *domain.ConfigValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, r, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, r, "config store failure")
		return
	}

	_ = h.reloader.Notify(r.Context(), reload.Config)

	entry, _ := h.cfg.Current().Get(key)
	writeJSON(w, http.StatusOK, runtimeconfig.ExportEntry(entry))
}

// Reload handles POST {admin_prefix}/reload/{target}.
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	target := reload.Target(mux.Vars(r)["target"])
	if target != reload.Data && target != reload.Config {
		writeError(w, http.StatusBadRequest, r, "unknown reload target")
		return
	}
	if err := h.reloader.Notify(r.Context(), target); err != nil {
		writeError(w, http.StatusInternalServerError, r, "reload failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"target": string(target), "status": "triggered"})
}

// Register mounts every admin route under prefix on router, wrapped in
// the auth+logging+recovery middleware stack.
func (h *Handlers) Register(router *mux.Router, prefix string, middleware func(http.Handler) http.Handler) {
	sub := router.PathPrefix(prefix).Subrouter()
	sub.Use(middleware)

	sub.HandleFunc("/links", h.CreateLink).Methods(http.MethodPost)
	sub.HandleFunc("/links", h.ListLinks).Methods(http.MethodGet)
	sub.HandleFunc("/links/{code}", h.GetLink).Methods(http.MethodGet)
	sub.HandleFunc("/links/{code}", h.DeleteLink).Methods(http.MethodDelete)
	sub.HandleFunc("/config", h.GetConfig).Methods(http.MethodGet)
	sub.HandleFunc("/config/{key}", h.SetConfig).Methods(http.MethodPut)
	sub.HandleFunc("/reload/{target}", h.Reload).Methods(http.MethodPost)
}
