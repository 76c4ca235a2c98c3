package core

import (
	"time"

	"github.com/google/uuid"
)

// PresenterLabel is the reserved speaker label for presenter entries in the
// conversation context. No persona may use it as a username.
const PresenterLabel = "presenter"

// Entry is one line of conversation context.
type Entry struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// FromPresenter reports whether the entry was spoken by the presenter.
func (e Entry) FromPresenter() bool { return e.Speaker == PresenterLabel }

// Message is a finished chat line as delivered to the UI sink. It should be
// treated as immutable after emission.
type Message struct {
	ID         string    `json:"id"`
	Speaker    string    `json:"username"`
	Text       string    `json:"text"`
	ColorIndex int       `json:"colorId"`
	Timestamp  time.Time `json:"timestamp"`
	Situation  Situation `json:"situation,omitempty"`
	Presenter  bool      `json:"presenter,omitempty"`
}

// NewMessage creates a message authored by a persona.
func NewMessage(p Persona, text string, situation Situation, at time.Time) Message {
	return Message{
		ID:         NewID(),
		Speaker:    p.Username,
		Text:       text,
		ColorIndex: p.ColorIndex,
		Timestamp:  at.UTC(),
		Situation:  situation,
	}
}

// NewID returns a random identifier for requests and messages.
func NewID() string { return uuid.NewString() }
