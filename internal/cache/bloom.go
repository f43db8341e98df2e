package cache

import (
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Bloom is a fixed-size bit-array Bloom filter with Kirsch-Mitzenmacher
// double hashing: k hash positions are derived from two independent
// xxhash digests instead of k independent hash functions. It never
// produces a false negative, so the composite cache uses it only to
// short-circuit codes that are provably absent.
type Bloom struct {
	mu   sync.RWMutex
	bits []uint64
	m    uint64 // bit count
	k    uint64 // hash count
}

// NewBloom builds a Bloom filter sized for expectedItems at the given
// falsePositiveRate (0, 1). Sizing follows the standard m = -n*ln(p)/ln(2)^2,
// k = (m/n)*ln(2) formulas.
func NewBloom(expectedItems int, falsePositiveRate float64) *Bloom {
	if expectedItems < 1 {
		expectedItems = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}
	m, k := bloomParams(expectedItems, falsePositiveRate)
	return &Bloom{
		bits: make([]uint64, (m+63)/64),
		m:    m,
		k:    k,
	}
}

func bloomParams(n int, p float64) (m, k uint64) {
	const ln2Squared = math.Ln2 * math.Ln2
	mf := -float64(n) * math.Log(p) / ln2Squared
	if mf < 64 {
		mf = 64
	}
	kf := (mf / float64(n)) * math.Ln2
	if kf < 1 {
		kf = 1
	}
	if kf > 16 {
		kf = 16
	}
	return uint64(mf), uint64(kf)
}

// Add inserts key into the filter.
func (b *Bloom) Add(key string) {
	h1, h2 := bloomHashes(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := uint64(0); i < b.k; i++ {
		pos := (h1 + i*h2) % b.m
		b.bits[pos/64] |= 1 << (pos % 64)
	}
}

// MightContain reports whether key may be present. false is a proof of
// absence; true is not a proof of presence.
func (b *Bloom) MightContain(key string) bool {
	h1, h2 := bloomHashes(key)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i := uint64(0); i < b.k; i++ {
		pos := (h1 + i*h2) % b.m
		if b.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Reset clears every bit, e.g. ahead of a full rebuild from a fresh code
// list.
func (b *Bloom) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.bits {
		b.bits[i] = 0
	}
}

func bloomHashes(key string) (h1, h2 uint64) {
	h1 = xxhash.Sum64String(key)
	h2 = xxhash.Sum64String(key + "\x00salt")
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}
