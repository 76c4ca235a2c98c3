package testutil

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yaajosh/chat-simulator/core"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	assert.False(t, r.WaitMessages(1, 10*time.Millisecond))

	go r.OnMessage(core.Message{Speaker: "A", Text: "hi"})
	assert.True(t, r.WaitMessages(1, time.Second))

	r.OnError(errors.New("x"))
	assert.Len(t, r.Errors(), 1)
	assert.Equal(t, "hi", r.Messages()[0].Text)
}

func TestRosterBuilder(t *testing.T) {
	rosters := NewRosterBuilder().Locale("EN", "TechWizard", "RetroStyle").Build()
	list := rosters[core.LocaleEnglish]
	assert.Len(t, list, 2)
	assert.Equal(t, "RetroStyle", list[1].Username)
	assert.Equal(t, "casual", list[0].Personality)
}
