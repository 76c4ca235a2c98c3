package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaajosh/chat-simulator/core"
	"github.com/yaajosh/chat-simulator/persona"
)

func roster(names ...string) []core.Persona {
	out := make([]core.Persona, len(names))
	for i, n := range names {
		out[i] = core.Persona{Username: n, ColorIndex: core.ColorFor(i)}
	}
	return out
}

func english() []core.Persona {
	return persona.NewRegistry(core.LocaleEnglish).Personas()
}

func german() []core.Persona {
	return persona.NewRegistry(core.LocaleGerman).Personas()
}

func TestResolve_Scenarios(t *testing.T) {
	set := roster("TechWizard", "RetroStyle")
	tests := []struct {
		name      string
		utterance string
		want      string
		rule      Rule
	}{
		{"full name lower case", "hey retrostyle what's up", "RetroStyle", RuleFullName},
		{"mention", "@TechWizard nice", "TechWizard", RuleFullName},
		{"spaced name", "Retro Style is cool", "RetroStyle", RuleSpacedName},
		{"leading word", "Tech, nice work", "TechWizard", RuleLeadingWord},
		{"leading word mid sentence", "Tech is great", "TechWizard", RuleLeadingWord},
		{"token", "the wizard knows", "TechWizard", RuleToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Resolve(tt.utterance, set)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.Persona.Username)
			assert.Equal(t, tt.rule, m.Rule)
		})
	}
}

func TestResolve_WordBoundaryRejectsEmbeddedLeadingSegment(t *testing.T) {
	_, ok := Resolve("biotech stuff", roster("TechWizard", "RetroStyle"))
	assert.False(t, ok)

	_, ok = Resolve("biotech stuff", english())
	assert.False(t, ok)
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text, word string
		want       bool
	}{
		{"tech, nice work", "tech", true},
		{"is tech great", "tech", true},
		{"tech", "tech", true},
		{"biotech stuff", "tech", false},
		{"technology", "tech", false},
		{"my_tech", "tech", false},
		{"tech2 and tech!", "tech", true},
		{"biotech then tech", "tech", true},
		{"te", "tech", false},
		{"anything", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsWord(tt.text, tt.word), "%q in %q", tt.word, tt.text)
	}
}

func TestResolve_EnglishRoster(t *testing.T) {
	tests := []struct {
		utterance string
		want      string
	}{
		{"hey retrostyle what's up", "RetroStyle"},
		{"@TechWizard nice", "TechWizard"},
		{"Retro Style is great", "RetroStyle"},
		{"Tech, nice work", "TechWizard"},
		{"thanks NightOwl!", "NightOwl"},
		{"good question, night owl", "NightOwl"},
	}
	for _, tt := range tests {
		m, ok := Resolve(tt.utterance, english())
		require.True(t, ok, tt.utterance)
		assert.Equal(t, tt.want, m.Persona.Username, tt.utterance)
	}
}

func TestResolve_RegistryOrderWins(t *testing.T) {
	// "cool" is CoolGamer123's leading word and CoolGamer123 comes first.
	m, ok := Resolve("Retro Style is cool", english())
	require.True(t, ok)
	assert.Equal(t, "CoolGamer123", m.Persona.Username)
	assert.Equal(t, RuleLeadingWord, m.Rule)
}

func TestResolve_GermanRoster(t *testing.T) {
	tests := []struct {
		utterance string
		want      string
	}{
		{"MaxMustermann, was denkst du?", "MaxMustermann"},
		{"Hey Max, gute Frage!", "MaxMustermann"},
		{"Luna Gaming hat recht", "LunaGaming"},
		{"Danke @TechNinja", "TechNinja92"},
		{"der kaffee ist leer", "KaffeeJunkie"},
	}
	for _, tt := range tests {
		m, ok := Resolve(tt.utterance, german())
		require.True(t, ok, tt.utterance)
		assert.Equal(t, tt.want, m.Persona.Username, tt.utterance)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	for _, u := range []string{"", "   ", "welcome everyone", "max"} {
		_, ok := Resolve(u, roster("TechWizard"))
		assert.False(t, ok, u)
	}
}

func TestResolve_ShortLeadingSegmentIgnored(t *testing.T) {
	// "Pro" has three letters and passes rule 4 as a word, but "pro" inside
	// "process" must not match.
	_, ok := Resolve("the process is simple", roster("ProViewer"))
	assert.False(t, ok)
	m, ok := Resolve("pro tip", roster("ProViewer"))
	require.True(t, ok)
	assert.Equal(t, RuleLeadingWord, m.Rule)

	// "Ox" is below the three letter floor.
	_, ok = Resolve("ox cart", roster("OxRider"))
	assert.False(t, ok)
}

func TestSpaceCamelCase(t *testing.T) {
	assert.Equal(t, "Retro Style", SpaceCamelCase("RetroStyle"))
	assert.Equal(t, "Max Mustermann", SpaceCamelCase("MaxMustermann"))
	assert.Equal(t, "XML Parser", SpaceCamelCase("XMLParser"))
	assert.Equal(t, "Tech Ninja92", SpaceCamelCase("TechNinja92"))
}

func TestLeadingSegment(t *testing.T) {
	assert.Equal(t, "Max", LeadingSegment("MaxMustermann"))
	assert.Equal(t, "Tech", LeadingSegment("TechNinja92"))
	assert.Equal(t, "streamfan", LeadingSegment("streamfan_de"))
	assert.Equal(t, "", LeadingSegment("42abc"))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"Stream", "Fan_", "D", "E", "StreamFan", "DE"}, Tokens("StreamFan_DE"))
	assert.Equal(t, []string{"Tech", "Ninja92", "TechNinja"}, Tokens("TechNinja92"))
	assert.Equal(t, []string{"Night", "Owl", "NightOwl"}, Tokens("NightOwl"))
}
