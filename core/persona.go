package core

import "time"

// Persona is a synthetic chat participant. Username is unique within a
// roster and stable across regenerations for the same locale.
type Persona struct {
	Username        string    `json:"username" yaml:"name"`
	ColorIndex      int       `json:"color_id" yaml:"-"`
	Personality     string    `json:"personality" yaml:"personality"`
	Traits          string    `json:"traits" yaml:"traits"`
	LastInteraction time.Time `json:"last_interaction,omitempty" yaml:"-"`
}

// ColorSlots bounds ColorIndex to 1..ColorSlots.
const ColorSlots = 10

// ColorFor returns the display color index for a roster position.
func ColorFor(position int) int { return position%ColorSlots + 1 }

// PresenterColor is the color index used for the presenter's own chat lines.
const PresenterColor = 5
