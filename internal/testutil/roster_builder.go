package testutil

import (
	"github.com/yaajosh/chat-simulator/core"
	"github.com/yaajosh/chat-simulator/persona"
)

// RosterBuilder constructs persona rosters for tests.
// Example:
//
//	rosters := NewRosterBuilder().Locale("en", "TechWizard", "RetroStyle").Build()
type RosterBuilder struct {
	rosters persona.Rosters
}

// NewRosterBuilder creates an empty builder.
func NewRosterBuilder() *RosterBuilder {
	return &RosterBuilder{rosters: persona.Rosters{}}
}

// Locale sets the roster for a locale from usernames (chainable). Every
// persona gets personality "casual" and traits derived from its name.
func (b *RosterBuilder) Locale(code string, usernames ...string) *RosterBuilder {
	loc := core.ParseLocale(code)
	list := make([]core.Persona, 0, len(usernames))
	for _, name := range usernames {
		list = append(list, core.Persona{
			Username:    name,
			Personality: "casual",
			Traits:      "test viewer " + name,
		})
	}
	b.rosters[loc] = list
	return b
}

// Build returns the rosters.
func (b *RosterBuilder) Build() persona.Rosters { return b.rosters }
