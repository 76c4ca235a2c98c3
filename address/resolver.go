// Package address decides whether a presenter utterance names a specific
// persona. Matching runs a fixed cascade of rules per persona, in registry
// order, and stops at the first hit.
//
// The rules trade false positives against recall:
//
//  1. the full username as a case-insensitive substring
//  2. the username prefixed with "@"
//  3. the username split into words at camel-case boundaries ("Retro Style")
//  4. the leading word-like segment ("Tech" for "TechWizard") as a whole word,
//     only when it has at least three letters
//  5. any other camel-case or digit/underscore/hyphen token of at least four
//     characters as a substring
//
// The leading segment is never re-tried by rule 5: it only counts as a whole
// word, so "biotech" does not address "TechWizard".
package address

import (
	"regexp"
	"strings"

	"github.com/yaajosh/chat-simulator/core"
)

const (
	minLeadingLen = 3
	minTokenLen   = 4
)

var (
	lowerUpper     = regexp.MustCompile(`([a-z])([A-Z])`)
	upperRunToWord = regexp.MustCompile(`([A-Z])([A-Z][a-z])`)
	leadingCapWord = regexp.MustCompile(`^[A-Z][a-z]+`)
	separatorChars = regexp.MustCompile(`[\d_-]`)
)

// Rule identifies which step of the cascade matched.
type Rule int

// Rules in evaluation order.
const (
	RuleNone Rule = iota
	RuleFullName
	RuleMention
	RuleSpacedName
	RuleLeadingWord
	RuleToken
)

var ruleNames = [...]string{"none", "full-name", "mention", "spaced-name", "leading-word", "token"}

func (r Rule) String() string {
	if r < 0 || int(r) >= len(ruleNames) {
		return "unknown"
	}
	return ruleNames[r]
}

// Match is the outcome of Resolve.
type Match struct {
	Persona core.Persona
	Rule    Rule
}

// Resolve returns the first persona addressed by utterance, or ok=false.
func Resolve(utterance string, personas []core.Persona) (Match, bool) {
	if strings.TrimSpace(utterance) == "" {
		return Match{}, false
	}
	lower := strings.ToLower(utterance)
	for _, p := range personas {
		if rule := matchPersona(lower, p.Username); rule != RuleNone {
			return Match{Persona: p, Rule: rule}, true
		}
	}
	return Match{}, false
}

func matchPersona(lowerText, username string) Rule {
	if username == "" {
		return RuleNone
	}
	lowerName := strings.ToLower(username)

	if strings.Contains(lowerText, lowerName) {
		return RuleFullName
	}
	if strings.Contains(lowerText, "@"+lowerName) {
		return RuleMention
	}
	if spaced := strings.ToLower(SpaceCamelCase(username)); spaced != lowerName && strings.Contains(lowerText, spaced) {
		return RuleSpacedName
	}
	lead := LeadingSegment(username)
	if len(lead) >= minLeadingLen && containsWord(lowerText, strings.ToLower(lead)) {
		return RuleLeadingWord
	}
	for _, tok := range Tokens(username) {
		if tok == lead {
			continue
		}
		if len(tok) >= minTokenLen && strings.Contains(lowerText, strings.ToLower(tok)) {
			return RuleToken
		}
	}
	return RuleNone
}

// SpaceCamelCase inserts a space at lower->upper transitions and before the
// last capital of an upper-case run followed by a lower-case letter:
// "RetroStyle" -> "Retro Style", "XMLParser" -> "XML Parser".
func SpaceCamelCase(name string) string {
	s := lowerUpper.ReplaceAllString(name, "$1 $2")
	return upperRunToWord.ReplaceAllString(s, "$1 $2")
}

// LeadingSegment returns the leading capitalized word ("Max" for
// "MaxMustermann"). Names without one are cut at the first digit,
// underscore or hyphen instead.
func LeadingSegment(name string) string {
	if m := leadingCapWord.FindString(name); m != "" {
		return m
	}
	return separatorChars.Split(name, 2)[0]
}

// Tokens splits name at capital letters and, separately, at digits,
// underscores and hyphens, returning the de-duplicated non-empty parts in
// first-seen order.
func Tokens(name string) []string {
	var parts []string
	parts = append(parts, splitBeforeUpper(name)...)
	parts = append(parts, separatorChars.Split(name, -1)...)

	seen := make(map[string]struct{}, len(parts))
	out := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// splitBeforeUpper splits at every position followed by an ASCII capital,
// keeping the capital with the following part.
func splitBeforeUpper(name string) []string {
	var out []string
	start := 0
	for i := 1; i < len(name); i++ {
		if c := name[i]; c >= 'A' && c <= 'Z' {
			out = append(out, name[start:i])
			start = i
		}
	}
	return append(out, name[start:])
}

// containsWord reports whether word occurs in text with no ASCII word
// character directly before or after it, the same boundary as regexp \b.
func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for off := 0; off <= len(text)-len(word); {
		i := strings.Index(text[off:], word)
		if i < 0 {
			return false
		}
		start, end := off+i, off+i+len(word)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		off = start + 1
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
