package resolver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortlinkd/shortlinkd/internal/domain"
)

func newTestRouter(t *testing.T, st *fakeStore) *mux.Router {
	t.Helper()
	r := newTestResolver(t, st)
	router := mux.NewRouter()
	NewHandler(r, nil, nil).Register(router)
	return router
}

func TestHandler_RedirectsOnHit(t *testing.T) {
	st := newFakeStore(&domain.ShortLink{Code: "abc", Target: "https://example.com"})
	router := newTestRouter(t, st)

	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Location"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
}

func TestHandler_NotFoundFallsBackToHTTPNotFound(t *testing.T) {
	st := newFakeStore()
	router := newTestRouter(t, st)

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
}

func TestHandler_MultiSegmentCodeReachesResolve(t *testing.T) {
	st := newFakeStore(&domain.ShortLink{Code: "foo/bar", Target: "https://example.com/deep"})
	router := newTestRouter(t, st)

	req := httptest.NewRequest(http.MethodGet, "/foo/bar", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://example.com/deep", rec.Header().Get("Location"))
}

func TestHandler_HeadRequestIsAccepted(t *testing.T) {
	st := newFakeStore(&domain.ShortLink{Code: "abc", Target: "https://example.com"})
	router := newTestRouter(t, st)

	req := httptest.NewRequest(http.MethodHead, "/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
}

func TestHandler_CustomNotFoundHandler(t *testing.T) {
	st := newFakeStore()
	r := newTestResolver(t, st)
	router := mux.NewRouter()

	called := false
	NewHandler(r, func(w http.ResponseWriter, req *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}, nil).Register(router)

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
