package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortlinkd/shortlinkd/internal/domain"
	"github.com/shortlinkd/shortlinkd/internal/store"
)

// fakeStore is a minimal in-memory store.Store used to exercise the
// Composite pipeline without a real backend.
type fakeStore struct {
	store.Store // embed to satisfy the interface; only the methods below are used

	links   map[string]*domain.ShortLink
	getHits int
}

func newFakeStore(links ...*domain.ShortLink) *fakeStore {
	m := make(map[string]*domain.ShortLink, len(links))
	for _, l := range links {
		m[l.Code] = l
	}
	return &fakeStore{links: m}
}

func (f *fakeStore) Get(_ context.Context, code string) (*domain.ShortLink, error) {
	f.getHits++
	link, ok := f.links[code]
	if !ok {
		return nil, domain.NewNotFoundError(code)
	}
	return link, nil
}

func (f *fakeStore) LoadAllCodes(_ context.Context) ([]string, error) {
	codes := make([]string, 0, len(f.links))
	for code := range f.links {
		codes = append(codes, code)
	}
	return codes, nil
}

func newTestComposite(st store.Store) *Composite {
	cfg := Config{
		BloomExpectedItems: 100,
		BloomFalsePositive: 0.01,
		NegativeTTL:        time.Minute,
		ObjectCapacity:     10,
		ObjectTTL:          time.Minute,
	}
	return New(st, cfg, nil, nil)
}

func TestComposite_ResolveFallsThroughToStoreThenCaches(t *testing.T) {
	fs := newFakeStore(&domain.ShortLink{Code: "abc", Target: "https://example.com"})
	c := newTestComposite(fs)
	require.NoError(t, c.WarmFromStore(context.Background()))

	link, err := c.Resolve(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "https://example.com", link.Target)
	assert.Equal(t, 1, fs.getHits)

	// second resolve should be served from the local object tier, not the store
	link2, err := c.Resolve(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, link2)
	assert.Equal(t, 1, fs.getHits, "second resolve must be served from cache")
}

func TestComposite_ResolveUnknownCodeShortCircuitsOnBloom(t *testing.T) {
	fs := newFakeStore(&domain.ShortLink{Code: "known", Target: "https://example.com"})
	c := newTestComposite(fs)
	require.NoError(t, c.WarmFromStore(context.Background()))

	link, err := c.Resolve(context.Background(), "never-added")
	require.NoError(t, err)
	assert.Nil(t, link)
	assert.Equal(t, 0, fs.getHits, "bloom filter must short-circuit before reaching the store")
}

func TestComposite_ResolveMissPopulatesNegativeCache(t *testing.T) {
	fs := newFakeStore()
	c := newTestComposite(fs)
	c.bloom.Add("ghost") // force past the bloom filter to exercise the store miss path

	link, err := c.Resolve(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, link)
	assert.Equal(t, 1, fs.getHits)

	link2, err := c.Resolve(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, link2)
	assert.Equal(t, 1, fs.getHits, "negative cache must absorb the repeat lookup")
}

func TestComposite_ObserveSkipsStoreOnNextResolve(t *testing.T) {
	fs := newFakeStore()
	c := newTestComposite(fs)

	link := &domain.ShortLink{Code: "fresh", Target: "https://example.com/fresh"}
	c.Observe(context.Background(), link)

	got, err := c.Resolve(context.Background(), "fresh")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, fs.getHits, "observed link should be served without touching the store")
}

func TestComposite_InvalidateRemovesFromLocalTier(t *testing.T) {
	fs := newFakeStore(&domain.ShortLink{Code: "abc", Target: "https://example.com"})
	c := newTestComposite(fs)
	require.NoError(t, c.WarmFromStore(context.Background()))

	_, err := c.Resolve(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, fs.getHits)

	c.Invalidate(context.Background(), "abc")
	delete(fs.links, "abc")

	link, err := c.Resolve(context.Background(), "abc")
	require.NoError(t, err)
	assert.Nil(t, link)
	assert.Equal(t, 1, fs.getHits, "invalidate must mark the code absent so the store is not touched again")
}

func TestComposite_ReconfigureRebuildsBloomAndPurgesTiers(t *testing.T) {
	fs := newFakeStore(&domain.ShortLink{Code: "a", Target: "https://example.com/a"})
	c := newTestComposite(fs)
	require.NoError(t, c.WarmFromStore(context.Background()))

	_, err := c.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, fs.getHits)

	fs.links["b"] = &domain.ShortLink{Code: "b", Target: "https://example.com/b"}
	require.NoError(t, c.Reconfigure(context.Background()))

	assert.True(t, c.bloom.MightContain("b"))

	_, err = c.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 2, fs.getHits, "reconfigure must purge the local tier")
}
