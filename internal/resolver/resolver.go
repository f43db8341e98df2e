// Package resolver implements the redirect hot path: validate the
// requested code, resolve it through the composite cache, apply expiry
// and UTM passthrough rules, and fire an async click increment.
package resolver

import (
	"context"
	"net/url"
	"time"

	"github.com/shortlinkd/shortlinkd/internal/accumulator"
	"github.com/shortlinkd/shortlinkd/internal/cache"
	"github.com/shortlinkd/shortlinkd/internal/domain"
	"github.com/shortlinkd/shortlinkd/internal/runtimeconfig"
)

// Decision is the outcome of resolving one request.
type Decision struct {
	RedirectTo string
	Found      bool
}

// utmKeys lists the only query parameters forwarded to the redirect target
// when UTM passthrough is enabled.
var utmKeys = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content"}

// Resolver ties the cache, accumulator, and runtime configuration together
// to answer redirect requests.
type Resolver struct {
	cache            *cache.Composite
	accum            *accumulator.Accumulator
	cfg              *runtimeconfig.Manager
	reservedPrefixes []string
}

// New builds a Resolver. reservedPrefixes are the admin/health/frontend
// prefixes that must never resolve as redirect codes, even if the resolver
// is reached for one defensively (routing should already exclude them).
func New(c *cache.Composite, a *accumulator.Accumulator, cfg *runtimeconfig.Manager, reservedPrefixes []string) *Resolver {
	return &Resolver{cache: c, accum: a, cfg: cfg, reservedPrefixes: reservedPrefixes}
}

// Resolve looks up code and, if found and unexpired, returns the target
// URL with the incoming utm_source, utm_medium, utm_campaign, utm_term and
// utm_content parameters appended (UTM passthrough) when enabled in runtime
// configuration; other incoming query parameters are dropped. When click
// tracking is enabled, a click is buffered in the accumulator on every
// successful resolution; it is not counted against the response.
func (r *Resolver) Resolve(ctx context.Context, code string, rawQuery string) (Decision, error) {
	if err := domain.ValidateCodeFormat(code); err != nil {
		return Decision{}, nil
	}
	if err := domain.ValidateReservedPrefix(code, r.reservedPrefixes); err != nil {
		return Decision{}, nil
	}

	link, err := r.cache.Resolve(ctx, code)
	if err != nil {
		return Decision{}, err
	}
	if link == nil {
		return Decision{}, nil
	}
	if link.Expired(time.Now()) {
		return Decision{}, nil
	}

	target := link.Target
	if r.cfg.Bool("utm.enable_passthrough", true) && rawQuery != "" {
		target = appendQuery(target, rawQuery)
	}

	if r.cfg.Bool("click.enable_tracking", true) && r.accum != nil {
		r.accum.Increment(code)
	}

	return Decision{RedirectTo: target, Found: true}, nil
}

func appendQuery(target, rawQuery string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	incoming, err := url.ParseQuery(rawQuery)
	if err != nil {
		return target
	}
	existing := u.Query()
	for _, k := range utmKeys {
		for _, v := range incoming[k] {
			existing.Add(k, v)
		}
	}
	u.RawQuery = existing.Encode()
	return u.String()
}
