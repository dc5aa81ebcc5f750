package testutil

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Slug returns a random lowercase slug of the given length.
func (r *RNG) Slug(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slug(n)
}

func (r *RNG) slug(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.rand.Intn(len(alphabet))]
	}
	return string(b)
}

// Month returns a random YYYY-MM partition between 2020-01 and 2029-12.
func (r *RNG) Month() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.month()
}

func (r *RNG) month() string {
	t := time.Date(2020+r.rand.Intn(10), time.Month(1+r.rand.Intn(12)), 1, 0, 0, 0, 0, time.UTC)
	return t.Format("2006-01")
}

// Key returns a random "<collection>/<YYYY-MM>/<slug>.json" key.
func (r *RNG) Key(collection string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("%s/%s/staff-%s.json", collection, r.month(), r.slug(6))
}

// Keys returns n distinct random keys in the given collection.
func (r *RNG) Keys(collection string, n int) []string {
	seen := make(map[string]struct{}, n)
	keys := make([]string, 0, n)
	for len(keys) < n {
		k := r.Key(collection)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// Document returns a random JSON object mixing every JSON kind.
// Numbers are integral so they survive a float64 round trip exactly.
func (r *RNG) Document() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags := make([]any, r.rand.Intn(4))
	for i := range tags {
		tags[i] = r.slug(4)
	}

	return map[string]any{
		"approved": r.rand.Intn(2) == 0,
		"count":    float64(r.rand.Intn(1000)),
		"staff":    r.slug(8),
		"tags":     tags,
		"note":     nil,
		"meta": map[string]any{
			"month": r.month(),
		},
	}
}
