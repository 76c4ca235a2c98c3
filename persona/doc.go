// Package persona holds the fixed set of synthetic chat participants for a
// locale. Rosters are embedded YAML; the Registry turns a roster into
// personas with stable color indices and swaps the whole set atomically when
// the locale changes.
package persona
