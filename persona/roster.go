package persona

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/yaajosh/chat-simulator/core"
)

//go:embed rosters.yaml
var rostersYAML []byte

// Rosters maps a locale to its ordered persona templates.
type Rosters map[core.Locale][]core.Persona

// DefaultRosters returns the built-in German and English rosters.
func DefaultRosters() Rosters {
	r, err := ParseRosters(rostersYAML)
	if err != nil {
		panic(fmt.Sprintf("persona: embedded rosters: %v", err))
	}
	return r
}

// ParseRosters decodes a YAML document of the form `locale: [{name, personality, traits}]`.
// Usernames must be non-empty, unique within a locale and must not collide
// with the reserved presenter label.
func ParseRosters(data []byte) (Rosters, error) {
	var raw map[string][]core.Persona
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode rosters: %w", err)
	}
	out := make(Rosters, len(raw))
	for code, list := range raw {
		seen := make(map[string]struct{}, len(list))
		for i, p := range list {
			if p.Username == "" {
				return nil, fmt.Errorf("roster %q: entry %d has no name", code, i)
			}
			if p.Username == core.PresenterLabel {
				return nil, fmt.Errorf("roster %q: %q is reserved", code, p.Username)
			}
			if _, dup := seen[p.Username]; dup {
				return nil, fmt.Errorf("roster %q: duplicate name %q", code, p.Username)
			}
			seen[p.Username] = struct{}{}
		}
		out[core.ParseLocale(code)] = list
	}
	return out, nil
}

// Locales returns the locales with a roster, sorted.
func (r Rosters) Locales() []core.Locale {
	out := make([]core.Locale, 0, len(r))
	for l := range r {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// lookup returns the roster for locale, falling back to English.
func (r Rosters) lookup(locale core.Locale) []core.Persona {
	if list, ok := r[locale]; ok {
		return list
	}
	return r[core.LocaleEnglish]
}
