package admin

import (
	"context"
	"strings"

	"github.com/shortlinkd/shortlinkd/internal/domain"
	"github.com/shortlinkd/shortlinkd/internal/store"
)

// fakeStore is a minimal in-memory store.Store used to exercise the admin
// handlers without a real backend.
type fakeStore struct {
	links     map[string]*domain.ShortLink
	unhealthy bool
}

func newFakeStore(links ...*domain.ShortLink) *fakeStore {
	m := make(map[string]*domain.ShortLink, len(links))
	for _, l := range links {
		m[l.Code] = l
	}
	return &fakeStore{links: m}
}

func (f *fakeStore) Get(_ context.Context, code string) (*domain.ShortLink, error) {
	link, ok := f.links[code]
	if !ok {
		return nil, domain.NewNotFoundError(code)
	}
	return link, nil
}

func (f *fakeStore) BatchGet(_ context.Context, codes []string) (map[string]*domain.ShortLink, error) {
	out := make(map[string]*domain.ShortLink, len(codes))
	for _, c := range codes {
		if l, ok := f.links[c]; ok {
			out[c] = l
		}
	}
	return out, nil
}

func (f *fakeStore) LoadAllCodes(_ context.Context) ([]string, error) {
	codes := make([]string, 0, len(f.links))
	for code := range f.links {
		codes = append(codes, code)
	}
	return codes, nil
}

func (f *fakeStore) Count(_ context.Context) (uint64, error) {
	return uint64(len(f.links)), nil
}

func (f *fakeStore) List(_ context.Context, filter store.ListFilter, page, pageSize int) ([]*domain.ShortLink, int, error) {
	var out []*domain.ShortLink
	for _, l := range f.links {
		if filter.Query != "" && !strings.Contains(l.Code, filter.Query) && !strings.Contains(l.Target, filter.Query) {
			continue
		}
		out = append(out, l)
	}
	return out, len(out), nil
}

func (f *fakeStore) Upsert(_ context.Context, link *domain.ShortLink, overwrite bool) (store.UpsertResult, error) {
	_, exists := f.links[link.Code]
	if exists && !overwrite {
		return store.Conflict, domain.NewConflictError(link.Code)
	}
	f.links[link.Code] = link
	if exists {
		return store.Updated, nil
	}
	return store.Created, nil
}

func (f *fakeStore) Delete(_ context.Context, code string) (bool, error) {
	if _, ok := f.links[code]; !ok {
		return false, nil
	}
	delete(f.links, code)
	return true, nil
}

func (f *fakeStore) ApplyClickDeltas(_ context.Context, deltas map[string]uint64) error {
	for code, n := range deltas {
		if l, ok := f.links[code]; ok {
			l.ClickCount += n
		}
	}
	return nil
}

func (f *fakeStore) GetStats(_ context.Context) (store.Stats, error) {
	var stats store.Stats
	stats.TotalLinks = uint64(len(f.links))
	stats.ActiveLinks = uint64(len(f.links))
	return stats, nil
}

func (f *fakeStore) Health(_ context.Context) error {
	if f.unhealthy {
		return domain.NewStoreTransientError("ping", nil)
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) LoadConfig(_ context.Context) ([]store.ConfigRow, error) {
	return nil, nil
}

func (f *fakeStore) SetConfig(_ context.Context, _ store.ConfigRow, _, _ string) error {
	return nil
}

func (f *fakeStore) SeedDefaults(_ context.Context, _ []store.ConfigRow) error {
	return nil
}
