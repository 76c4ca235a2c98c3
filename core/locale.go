package core

import "strings"

// Locale selects the persona roster and the prompt language.
type Locale string

const (
	// LocaleGerman is the German roster and prompt set.
	LocaleGerman Locale = "de"
	// LocaleEnglish is the English roster and prompt set. It is the fallback
	// for any locale without dedicated data.
	LocaleEnglish Locale = "en"
)

// DefaultLocale is used when no locale is given.
const DefaultLocale = LocaleGerman

// ParseLocale normalizes a locale code such as "de-DE" or "EN" to its
// language part. Empty input yields DefaultLocale.
func ParseLocale(code string) Locale {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultLocale
	}
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return Locale(code)
}
