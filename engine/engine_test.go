package engine

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaajosh/chat-simulator/core"
	"github.com/yaajosh/chat-simulator/internal/testutil"
	"github.com/yaajosh/chat-simulator/model"
	"github.com/yaajosh/chat-simulator/scheduler"
)

const waitFor = 2 * time.Second

type fixture struct {
	engine *Engine
	clock  *clockwork.FakeClock
	svc    *model.MockModel
	rec    *testutil.Recorder
}

func newFixture(t *testing.T, optFns ...func(o *Options)) *fixture {
	t.Helper()
	f := &fixture{
		clock: clockwork.NewFakeClock(),
		svc:   model.NewMockModel("scripted"),
		rec:   testutil.NewRecorder(),
	}
	opts := append([]func(o *Options){func(o *Options) {
		o.Config = Config{
			Token:         "test-token",
			Locale:        core.LocaleEnglish,
			ActivityLevel: 5,
			AutoResponse:  true,
		}
		o.Factory = model.MockFactory(f.svc)
		o.Clock = f.clock
		o.Rand = rand.New(rand.NewPCG(1, 2))
		o.Rosters = testutil.NewRosterBuilder().
			Locale("en", "TechWizard", "RetroStyle", "CoolGamer").
			Locale("de", "StreamFan", "MaxPower").
			Build()
	}}, optFns...)

	e, err := New(opts...)
	require.NoError(t, err)
	e.OnMessage(f.rec.OnMessage)
	e.OnError(f.rec.OnError)
	t.Cleanup(e.Close)
	f.engine = e
	return f
}

func (f *fixture) waitMessages(t *testing.T, n int) []core.Message {
	t.Helper()
	require.True(t, f.rec.WaitMessages(n, waitFor), "expected %d messages, got %d", n, len(f.rec.Messages()))
	return f.rec.Messages()
}

func TestNewDefaults(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	defer e.Close()

	cfg := e.Config()
	assert.Equal(t, core.LocaleGerman, cfg.Locale)
	assert.Equal(t, DefaultActivityLevel, cfg.ActivityLevel)
	assert.True(t, cfg.AutoResponse)
	assert.Empty(t, cfg.Token)
	assert.NotEmpty(t, e.ID())
	assert.NotEmpty(t, e.Personas())
}

func TestNewWithTokenRequiresFactory(t *testing.T) {
	_, err := New(func(o *Options) { o.Config.Token = "k" })
	assert.ErrorIs(t, err, ErrNoFactory)
}

func TestNoTokenIsInert(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Config.Token = "" })

	f.engine.Start()
	assert.False(t, f.engine.Running())

	f.engine.OnUtterance("hey TechWizard")
	f.clock.Advance(30 * time.Second)

	assert.Never(t, func() bool { return len(f.svc.Requests()) > 0 }, 50*time.Millisecond, time.Millisecond)
	assert.Equal(t, 0, f.engine.QueueLen())
	recent := f.engine.Recent(5)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].FromPresenter())
}

func TestDirectResponseEnqueuedBeforeReactions(t *testing.T) {
	f := newFixture(t)
	f.engine.Start()

	f.engine.OnUtterance("@TechWizard nice setup")
	msgs := f.waitMessages(t, 1)
	assert.Equal(t, "TechWizard", msgs[0].Speaker)
	assert.Equal(t, core.SituationDirectResponse, msgs[0].Situation)

	// one reaction, staggered by one reaction delay
	f.clock.Advance(DefaultReactionDelay)
	f.clock.BlockUntil(3)
	f.clock.Advance(4*time.Second - DefaultReactionDelay)

	msgs = f.waitMessages(t, 2)
	assert.Equal(t, core.SituationReaction, msgs[1].Situation)
	assert.NotEqual(t, "TechWizard", msgs[1].Speaker)

	reqs := f.svc.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Prompt, "You are TechWizard")
	assert.Contains(t, reqs[0].Prompt, "addressed YOU")
	assert.Contains(t, reqs[1].Prompt, "The STREAMER said")

	p, ok := find(f.engine.Personas(), "TechWizard")
	require.True(t, ok)
	assert.Equal(t, f.clock.Now().Add(-4*time.Second), p.LastInteraction)
}

func TestUnaddressedUtteranceDrawsTwoReactions(t *testing.T) {
	f := newFixture(t)
	f.engine.Start()

	f.engine.OnUtterance("welcome back everyone")
	f.waitMessages(t, 1)

	f.clock.Advance(DefaultReactionDelay)
	f.clock.BlockUntil(3)
	f.clock.Advance(4*time.Second - DefaultReactionDelay)

	msgs := f.waitMessages(t, 2)
	for _, m := range msgs {
		assert.Equal(t, core.SituationReaction, m.Situation)
	}
	assert.Len(t, f.svc.Requests(), 2)
}

func TestLowActivityDrawsOneReaction(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Config.ActivityLevel = 3 })
	f.engine.Start()
	f.engine.Pause()

	f.engine.OnUtterance("welcome back everyone")
	f.waitMessages(t, 1)
	f.clock.Advance(20 * time.Second)

	assert.Never(t, func() bool { return len(f.svc.Requests()) > 1 }, 50*time.Millisecond, time.Millisecond)
}

func TestPauseStopsTicksButNotDrain(t *testing.T) {
	f := newFixture(t)
	f.engine.Start()
	f.engine.Pause()
	assert.True(t, f.engine.Config().Paused)

	f.engine.OnUtterance("what a game")
	f.waitMessages(t, 1)
	f.clock.Advance(DefaultReactionDelay)
	f.clock.BlockUntil(3)
	f.clock.Advance(4*time.Second - DefaultReactionDelay)
	f.waitMessages(t, 2)

	// first tick at 5s and ticker at 8s are both suppressed
	f.clock.Advance(20 * time.Second)
	assert.Never(t, func() bool { return len(f.svc.Requests()) > 2 }, 50*time.Millisecond, time.Millisecond)

	f.engine.Start()
	assert.False(t, f.engine.Config().Paused)
}

func TestTickEnqueuesQuestion(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.AskPresenterWeight = 1 })
	f.engine.Start()

	f.clock.BlockUntil(2)
	f.clock.Advance(5 * time.Second)

	msgs := f.waitMessages(t, 1)
	assert.Equal(t, core.SituationAskPresenter, msgs[0].Situation)
	assert.Contains(t, f.svc.Requests()[0].Prompt, "Ask the STREAMER")
}

func TestTickEnqueuesRemark(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.AskPresenterWeight = 0 })
	f.engine.Start()

	f.clock.BlockUntil(2)
	f.clock.Advance(5 * time.Second)

	msgs := f.waitMessages(t, 1)
	assert.Equal(t, core.SituationSpontaneous, msgs[0].Situation)
	assert.NotZero(t, msgs[0].ColorIndex)
	assert.Equal(t, msgs[0].Speaker, f.engine.Recent(1)[0].Speaker)
}

func TestOnUserUtteranceEchoesPresenter(t *testing.T) {
	f := newFixture(t)
	f.engine.Start()

	f.engine.OnUserUtterance("hello chat")
	msgs := f.waitMessages(t, 1)
	assert.Equal(t, "You", msgs[0].Speaker)
	assert.Equal(t, core.PresenterColor, msgs[0].ColorIndex)
	assert.True(t, msgs[0].Presenter)
	assert.Empty(t, f.svc.Requests())

	f.clock.Advance(DefaultReactionDelay)
	msgs = f.waitMessages(t, 2)
	assert.Equal(t, core.SituationReaction, msgs[1].Situation)

	recent := f.engine.Recent(5)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].FromPresenter())
}

func TestOnUserUtteranceGermanName(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Config.Token = ""
		o.Config.Locale = core.LocaleGerman
	})

	f.engine.OnUserUtterance("hallo")
	msgs := f.waitMessages(t, 1)
	assert.Equal(t, "Du", msgs[0].Speaker)
}

func TestAutoResponseOffOnlyRecords(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Config.AutoResponse = false })
	f.engine.Start()
	f.engine.Pause()

	f.engine.OnUtterance("@TechWizard hi")
	f.clock.Advance(10 * time.Second)

	assert.Never(t, func() bool { return len(f.svc.Requests()) > 0 }, 50*time.Millisecond, time.Millisecond)
	assert.Len(t, f.engine.Recent(5), 1)
}

func TestSetLocaleRegeneratesPersonas(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, core.LocaleGerman, f.engine.SetLocale("de-AT"))
	names := usernames(f.engine.Personas())
	assert.Equal(t, []string{"StreamFan", "MaxPower"}, names)
	assert.Equal(t, core.LocaleGerman, f.engine.Config().Locale)
	assert.Equal(t, 2, f.engine.Personas()[1].ColorIndex)

	f.engine.SetLocale("fr")
	assert.Equal(t, []string{"TechWizard", "RetroStyle", "CoolGamer"}, usernames(f.engine.Personas()))
}

func TestSetActivityLevelClamps(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 1, f.engine.SetActivityLevel(0))
	assert.Equal(t, 10, f.engine.SetActivityLevel(42))
	assert.Equal(t, 10, f.engine.Config().ActivityLevel)
}

func TestSetToken(t *testing.T) {
	f := newFixture(t)
	f.engine.Start()

	require.NoError(t, f.engine.SetToken(""))
	f.engine.OnUtterance("@TechWizard hi")
	assert.Never(t, func() bool { return len(f.svc.Requests()) > 0 }, 50*time.Millisecond, time.Millisecond)

	boom := errors.New("bad key")
	e, err := New(func(o *Options) {
		o.Factory = func(string) (model.Completer, error) { return nil, boom }
	})
	require.NoError(t, err)
	defer e.Close()
	assert.ErrorIs(t, e.SetToken("k"), boom)
	assert.Empty(t, e.Config().Token)
}

func TestStopCancelsPendingReactions(t *testing.T) {
	f := newFixture(t)
	f.engine.Start()

	f.engine.OnUtterance("welcome back everyone")
	f.waitMessages(t, 1)
	f.engine.Stop()
	assert.False(t, f.engine.Running())

	f.clock.Advance(30 * time.Second)
	assert.Never(t, func() bool { return len(f.svc.Requests()) > 1 }, 50*time.Millisecond, time.Millisecond)
}

func TestDroppedRequestReachesErrorListener(t *testing.T) {
	f := newFixture(t)
	f.svc.AddReply(model.Reply{Err: &model.StatusError{Provider: "mock", Code: 500}})
	f.engine.Start()

	f.engine.OnUtterance("@RetroStyle hi")
	require.Eventually(t, func() bool { return len(f.rec.Errors()) == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 500, model.StatusCode(f.rec.Errors()[0]))
}

func TestDroppedWithoutCredentialIsSilent(t *testing.T) {
	f := newFixture(t)
	req := scheduler.Request{Persona: core.Persona{Username: "RetroStyle"}, Situation: core.SituationReaction}

	f.engine.dropped(req, scheduler.ErrNoService)
	assert.Empty(t, f.rec.Errors())

	f.engine.dropped(req, &model.StatusError{Provider: "mock", Code: 500})
	require.Len(t, f.rec.Errors(), 1)
	assert.Equal(t, 500, model.StatusCode(f.rec.Errors()[0]))
}

func TestListenerReplacesPrevious(t *testing.T) {
	f := newFixture(t)
	second := testutil.NewRecorder()
	f.engine.OnMessage(second.OnMessage)

	f.engine.OnUserUtterance("hi")
	require.True(t, second.WaitMessages(1, waitFor))
	assert.Empty(t, f.rec.Messages())
}

func TestEnginesAreIndependent(t *testing.T) {
	a := newFixture(t)
	b := newFixture(t)

	a.engine.SetLocale("de")
	a.engine.OnUtterance("only on a")

	assert.Equal(t, core.LocaleEnglish, b.engine.Config().Locale)
	assert.Empty(t, b.engine.Recent(5))
}

func find(ps []core.Persona, name string) (core.Persona, bool) {
	for _, p := range ps {
		if p.Username == name {
			return p, true
		}
	}
	return core.Persona{}, false
}

func usernames(ps []core.Persona) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Username
	}
	return out
}
