package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/shortlinkd/shortlinkd/internal/domain"
)

// Object is the local, process-local tier of the composite cache: a
// size-bounded LRU with a uniform per-entry TTL.
type Object struct {
	lru *expirable.LRU[string, *domain.ShortLink]
}

// NewObject builds a local Object cache with the given entry capacity and
// TTL.
func NewObject(capacity int, ttl time.Duration) *Object {
	if capacity < 1 {
		capacity = 1
	}
	return &Object{lru: expirable.NewLRU[string, *domain.ShortLink](capacity, nil, ttl)}
}

// Get returns the cached link for code, if present and unexpired.
func (o *Object) Get(code string) (*domain.ShortLink, bool) {
	return o.lru.Get(code)
}

// Set stores link under code, evicting the least-recently-used entry if
// the cache is at capacity.
func (o *Object) Set(code string, link *domain.ShortLink) {
	o.lru.Add(code, link)
}

// Remove evicts code, e.g. after a Delete or an overwrite via Upsert.
func (o *Object) Remove(code string) {
	o.lru.Remove(code)
}

// Purge evicts every entry, used on a bulk reconfiguration.
func (o *Object) Purge() {
	o.lru.Purge()
}

// Len reports the current entry count.
func (o *Object) Len() int {
	return o.lru.Len()
}
