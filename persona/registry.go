package persona

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/yaajosh/chat-simulator/core"
)

// maxExcludingDraws bounds the re-draws in PickRandom before it falls back
// to a deterministic choice.
const maxExcludingDraws = 16

// Registry holds the current persona set. Concurrency: protected by RWMutex;
// the random source has its own lock because it is not safe for concurrent use.
type Registry struct {
	rosters Rosters

	mu       sync.RWMutex
	locale   core.Locale
	personas []core.Persona

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Options configure a Registry.
type Options struct {
	// Rosters overrides the embedded rosters.
	Rosters Rosters
	// Rand is the source used by PickRandom. Tests inject a seeded source.
	Rand *rand.Rand
}

// NewRegistry creates a registry and generates the roster for locale.
func NewRegistry(locale core.Locale, optFns ...func(o *Options)) *Registry {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Rosters == nil {
		opts.Rosters = DefaultRosters()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	r := &Registry{rosters: opts.Rosters, rng: opts.Rand}
	r.Regenerate(locale)
	return r
}

// Regenerate replaces the persona set with the roster for locale. The result
// is deterministic for a given locale; last-interaction times start at zero.
func (r *Registry) Regenerate(locale core.Locale) {
	tmpl := r.rosters.lookup(locale)
	next := make([]core.Persona, len(tmpl))
	for i, p := range tmpl {
		next[i] = core.Persona{
			Username:    p.Username,
			ColorIndex:  core.ColorFor(i),
			Personality: p.Personality,
			Traits:      p.Traits,
		}
	}
	r.mu.Lock()
	r.locale = locale
	r.personas = next
	r.mu.Unlock()
}

// Locale returns the locale of the current set.
func (r *Registry) Locale() core.Locale {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locale
}

// Personas returns a copy of the current set in registry order.
func (r *Registry) Personas() []core.Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Persona, len(r.personas))
	copy(out, r.personas)
	return out
}

// Len returns the size of the current set.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.personas)
}

// PickRandom selects a persona uniformly at random. When excluding names a
// member and the set has more than one persona, the result is never that
// member. ok is false only for an empty set.
func (r *Registry) PickRandom(excluding string) (core.Persona, bool) {
	set := r.Personas()
	switch len(set) {
	case 0:
		return core.Persona{}, false
	case 1:
		return set[0], true
	}
	for i := 0; i < maxExcludingDraws; i++ {
		p := set[r.intN(len(set))]
		if excluding == "" || p.Username != excluding {
			return p, true
		}
	}
	start := r.intN(len(set))
	for i := range set {
		p := set[(start+i)%len(set)]
		if p.Username != excluding {
			return p, true
		}
	}
	return set[0], true
}

// Touch records a direct interaction with the named persona. Unknown names
// are ignored and reported with false.
func (r *Registry) Touch(username string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.personas {
		if r.personas[i].Username == username {
			r.personas[i].LastInteraction = at
			return true
		}
	}
	return false
}

// Lookup returns the persona with the given username.
func (r *Registry) Lookup(username string) (core.Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.personas {
		if p.Username == username {
			return p, true
		}
	}
	return core.Persona{}, false
}

func (r *Registry) intN(n int) int {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.IntN(n)
}
