package core

// Situation describes why a chat line is being generated. It selects the
// prompt template and is carried through to emitted messages for metrics.
type Situation string

const (
	// SituationSpontaneous is a remark about the stream, not triggered by input.
	SituationSpontaneous Situation = "spontaneous"
	// SituationAskPresenter is a spontaneous question aimed at the presenter.
	SituationAskPresenter Situation = "ask-presenter"
	// SituationDirectResponse answers the presenter after being addressed by name.
	SituationDirectResponse Situation = "direct-response"
	// SituationReaction reacts to a presenter utterance.
	SituationReaction Situation = "reaction-to-utterance"
	// SituationPresenter marks the presenter's own typed chat line. It never
	// reaches the completion service.
	SituationPresenter Situation = "presenter"
)

// Situations lists every situation the prompt builder must support.
var Situations = []Situation{
	SituationSpontaneous,
	SituationAskPresenter,
	SituationDirectResponse,
	SituationReaction,
}

// Valid reports whether s is one of the generated situations.
func (s Situation) Valid() bool {
	for _, v := range Situations {
		if v == s {
			return true
		}
	}
	return false
}
