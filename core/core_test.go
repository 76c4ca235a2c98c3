package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocale(t *testing.T) {
	tests := []struct {
		in   string
		want Locale
	}{
		{"", DefaultLocale},
		{"  ", DefaultLocale},
		{"de", LocaleGerman},
		{"de-DE", LocaleGerman},
		{"EN_us", LocaleEnglish},
		{"fr", Locale("fr")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLocale(tt.in), tt.in)
	}
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, 1, ColorFor(0))
	assert.Equal(t, ColorSlots, ColorFor(ColorSlots-1))
	assert.Equal(t, 1, ColorFor(ColorSlots))
}

func TestSituationValid(t *testing.T) {
	for _, s := range Situations {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, SituationPresenter.Valid())
	assert.False(t, Situation("gossip").Valid())
}

func TestEntryFromPresenter(t *testing.T) {
	assert.True(t, Entry{Speaker: PresenterLabel}.FromPresenter())
	assert.False(t, Entry{Speaker: "TechWizard"}.FromPresenter())
}

func TestNewMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	p := Persona{Username: "RetroStyle", ColorIndex: 3}

	m := NewMessage(p, "love the setup", SituationReaction, at)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "RetroStyle", m.Speaker)
	assert.Equal(t, 3, m.ColorIndex)
	assert.Equal(t, time.UTC, m.Timestamp.Location())
	assert.True(t, m.Timestamp.Equal(at))
	assert.False(t, m.Presenter)

	other := NewMessage(p, "again", SituationReaction, at)
	assert.NotEqual(t, m.ID, other.ID)
}

func TestMessageJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(Message{ID: "1", Speaker: "CoolGamer", Text: "gg", ColorIndex: 4})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"id", "username", "text", "colorId", "timestamp"} {
		assert.Contains(t, raw, key)
	}
	assert.NotContains(t, raw, "presenter")
}
