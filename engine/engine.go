package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yaajosh/chat-simulator/address"
	"github.com/yaajosh/chat-simulator/core"
	"github.com/yaajosh/chat-simulator/logging"
	"github.com/yaajosh/chat-simulator/memory"
	"github.com/yaajosh/chat-simulator/model"
	"github.com/yaajosh/chat-simulator/persona"
	"github.com/yaajosh/chat-simulator/prompt"
	"github.com/yaajosh/chat-simulator/scheduler"
	"github.com/yaajosh/chat-simulator/simclock"
	"github.com/yaajosh/chat-simulator/telemetry"
)

// Defaults used by New.
const (
	DefaultActivityLevel      = 5
	DefaultReactionDelay      = 1500 * time.Millisecond
	DefaultAskPresenterWeight = 0.7
	DefaultContextWindow      = 5
)

// ErrNoFactory is returned when a token is set but no model factory exists.
var ErrNoFactory = errors.New("engine: no completion factory configured")

// Config is the runtime configuration surface. All fields can change while
// the engine runs.
type Config struct {
	// Token is the completion service credential. Empty means inert.
	Token string `json:"-"`
	// Locale selects roster and prompt language.
	Locale core.Locale `json:"locale"`
	// ActivityLevel in [1,10]; higher means more spontaneous lines.
	ActivityLevel int `json:"activityLevel"`
	// AutoResponse enables reactions to presenter utterances.
	AutoResponse bool `json:"autoResponse"`
	// Paused suppresses spontaneous lines. Queued requests still drain.
	Paused bool `json:"paused"`
}

// DefaultConfig is an inert German configuration at medium activity.
func DefaultConfig() Config {
	return Config{
		Locale:        core.DefaultLocale,
		ActivityLevel: DefaultActivityLevel,
		AutoResponse:  true,
	}
}

// Options configures an Engine.
type Options struct {
	Config Config

	// Factory builds a completer from Config.Token.
	Factory model.Factory

	// Clock drives the scheduler, the simulation clock and reaction delays.
	Clock clockwork.Clock

	Logger  logging.Logger
	Metrics *telemetry.Metrics

	// Rand seeds every random choice the engine makes.
	Rand *rand.Rand

	Rosters persona.Rosters
	Prompts *prompt.Builder

	BufferCapacity int
	// ContextWindow is how many recent entries each prompt sees.
	ContextWindow int

	MinInterval time.Duration
	BaseBackoff time.Duration
	MaxRetries  int
	FirstDelay  time.Duration

	ReactionDelay      time.Duration
	AskPresenterWeight float64

	Temperature     float64
	MaxOutputTokens int64
	TopP            float64
}

// Engine is one simulated chat. Create with New; safe for concurrent use.
type Engine struct {
	id   string
	opts Options
	log  logging.Logger

	registry *persona.Registry
	buffer   *memory.Buffer
	prompts  *prompt.Builder
	sched    *scheduler.Scheduler
	ticker   *simclock.Clock
	events   listeners

	mu        sync.Mutex
	cfg       Config
	running   bool
	timers    map[uint64]clockwork.Timer
	nextTimer uint64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New builds an engine. It does not start generating until Start.
func New(optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Config:             DefaultConfig(),
		Clock:              clockwork.NewRealClock(),
		BufferCapacity:     memory.DefaultCapacity,
		ContextWindow:      DefaultContextWindow,
		MinInterval:        scheduler.DefaultMinInterval,
		BaseBackoff:        scheduler.DefaultBaseBackoff,
		MaxRetries:         scheduler.DefaultMaxRetries,
		FirstDelay:         simclock.DefaultFirstDelay,
		ReactionDelay:      DefaultReactionDelay,
		AskPresenterWeight: DefaultAskPresenterWeight,
		Temperature:        model.DefaultTemperature,
		MaxOutputTokens:    model.DefaultMaxOutputTokens,
		TopP:               model.DefaultTopP,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Prompts == nil {
		b, err := prompt.New()
		if err != nil {
			return nil, err
		}
		opts.Prompts = b
	}

	cfg := opts.Config
	cfg.Locale = core.ParseLocale(string(cfg.Locale))
	cfg.ActivityLevel = simclock.ClampActivity(cfg.ActivityLevel)

	e := &Engine{
		id:      core.NewID(),
		opts:    opts,
		prompts: opts.Prompts,
		cfg:     cfg,
		timers:  make(map[uint64]clockwork.Timer),
		rng:     opts.Rand,
	}
	e.log = logging.OrNoOp(opts.Logger)

	e.registry = persona.NewRegistry(cfg.Locale, func(o *persona.Options) {
		o.Rosters = opts.Rosters
		o.Rand = rand.New(rand.NewPCG(opts.Rand.Uint64(), opts.Rand.Uint64()))
	})
	e.buffer = memory.NewBuffer(opts.BufferCapacity).WithClock(opts.Clock.Now)

	e.sched = scheduler.New(e.emit, func(o *scheduler.Options) {
		o.Clock = opts.Clock
		o.MinInterval = opts.MinInterval
		o.BaseBackoff = opts.BaseBackoff
		o.MaxRetries = opts.MaxRetries
		o.Temperature = opts.Temperature
		o.MaxOutputTokens = opts.MaxOutputTokens
		o.TopP = opts.TopP
		o.Logger = e.log
		o.Metrics = opts.Metrics
		o.OnError = e.dropped
	})
	// Nothing is accepted until Start.
	e.sched.Stop()

	e.ticker = simclock.New(e.tick, func(o *simclock.Options) {
		o.Clock = opts.Clock
		o.FirstDelay = opts.FirstDelay
		o.Activity = cfg.ActivityLevel
	})

	if cfg.Token != "" {
		svc, err := e.completer(cfg.Token)
		if err != nil {
			return nil, err
		}
		e.sched.SetService(svc)
	}
	return e, nil
}

// ID identifies the engine in logs.
func (e *Engine) ID() string { return e.id }

func (e *Engine) completer(token string) (model.Completer, error) {
	if e.opts.Factory == nil {
		return nil, ErrNoFactory
	}
	svc, err := e.opts.Factory(token)
	if err != nil {
		return nil, fmt.Errorf("engine: build completer: %w", err)
	}
	return svc, nil
}

// Start begins spontaneous generation. Without a token it does nothing.
// Start clears the pause flag.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.Token == "" {
		e.log.Warn("start ignored: no credential", "engine_id", e.id)
		return
	}
	e.cfg.Paused = false
	e.ticker.Resume()
	if e.running {
		return
	}
	e.running = true
	e.sched.Start()
	e.ticker.Start()
	e.opts.Metrics.EngineStarted()
	e.log.Info("engine started",
		"engine_id", e.id,
		"locale", string(e.cfg.Locale),
		"activity", e.cfg.ActivityLevel)
}

// Stop halts the clock, cancels pending reactions and clears the queue. A
// completion already in flight finishes but is not shown.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ticker.Stop()
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	e.sched.Stop()
	if e.running {
		e.running = false
		e.opts.Metrics.EngineStopped()
		e.log.Info("engine stopped", "engine_id", e.id)
	}
}

// Close stops the engine and waits for background work to end.
func (e *Engine) Close() {
	e.Stop()
	e.sched.Close()
}

// Running reports whether Start succeeded and Stop has not been called since.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Pause suppresses spontaneous lines. Reactions and the queue are unaffected.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Paused = true
	e.ticker.Pause()
}

// Resume lifts Pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Paused = false
	e.ticker.Resume()
}

// Config returns a snapshot of the runtime configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetToken replaces the credential. An empty token makes the engine inert
// without stopping it. On error the previous token stays in effect.
func (e *Engine) SetToken(token string) error {
	token = strings.TrimSpace(token)
	var svc model.Completer
	if token != "" {
		var err error
		if svc, err = e.completer(token); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Token = token
	e.sched.SetService(svc)
	return nil
}

// SetLocale switches language and regenerates the personas immediately.
func (e *Engine) SetLocale(code string) core.Locale {
	loc := core.ParseLocale(code)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Locale = loc
	e.registry.Regenerate(loc)
	return loc
}

// SetActivityLevel clamps level to [1,10] and reschedules the clock.
func (e *Engine) SetActivityLevel(level int) int {
	level = simclock.ClampActivity(level)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.ActivityLevel = level
	e.ticker.Reschedule(level)
	return level
}

// SetAutoResponse toggles reactions to presenter input.
func (e *Engine) SetAutoResponse(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.AutoResponse = on
}

// OnMessage registers the UI sink, replacing any previous one.
func (e *Engine) OnMessage(fn MessageListener) { e.events.setMessage(fn) }

// OnError registers the error listener, replacing any previous one.
func (e *Engine) OnError(fn ErrorListener) { e.events.setError(fn) }

// Personas returns the current persona set.
func (e *Engine) Personas() []core.Persona { return e.registry.Personas() }

// Recent returns up to n recent context entries, oldest first.
func (e *Engine) Recent(n int) []core.Entry { return e.buffer.RecentWindow(n) }

// QueueLen is the number of requests waiting for the completion service.
func (e *Engine) QueueLen() int { return e.sched.Len() }

// OnUtterance handles a finalized presenter utterance.
func (e *Engine) OnUtterance(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	e.buffer.Record(core.PresenterLabel, text)

	cfg, ok := e.active()
	if !ok || !cfg.AutoResponse {
		return
	}

	match, addressed := address.Resolve(text, e.registry.Personas())
	excluding, offset := "", 0
	if addressed {
		e.log.Debug("utterance addresses persona",
			"engine_id", e.id, "persona", match.Persona.Username, "rule", match.Rule.String())
		e.registry.Touch(match.Persona.Username, e.opts.Clock.Now())
		e.enqueue(cfg.Locale, core.SituationDirectResponse, match.Persona, text)
		excluding, offset = match.Persona.Username, 1
	}

	n := min(cfg.ActivityLevel/5+1, 2-offset)
	for i := range n {
		p, ok := e.registry.PickRandom(excluding)
		if !ok || p.Username == excluding {
			break
		}
		body, err := e.build(cfg.Locale, core.SituationReaction, p, text)
		if err != nil {
			e.fail(err)
			continue
		}
		e.after(time.Duration(i+offset)*e.opts.ReactionDelay, func() {
			e.submit(body, p, core.SituationReaction)
		})
	}
}

// OnUserUtterance shows a line the presenter typed into chat, records it and
// may draw one reaction.
func (e *Engine) OnUserUtterance(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	e.mu.Lock()
	loc := e.cfg.Locale
	e.mu.Unlock()

	entry := e.buffer.Record(core.PresenterLabel, text)
	msg := core.Message{
		ID:         core.NewID(),
		Speaker:    e.prompts.PresenterName(loc),
		Text:       text,
		ColorIndex: core.PresenterColor,
		Timestamp:  entry.At.UTC(),
		Situation:  core.SituationPresenter,
		Presenter:  true,
	}
	e.opts.Metrics.IncMessage(string(core.SituationPresenter))
	e.events.message(msg)

	cfg, ok := e.active()
	if !ok || !cfg.AutoResponse {
		return
	}
	p, ok := e.registry.PickRandom("")
	if !ok {
		return
	}
	body, err := e.build(cfg.Locale, core.SituationReaction, p, text)
	if err != nil {
		e.fail(err)
		return
	}
	e.after(e.opts.ReactionDelay, func() {
		e.submit(body, p, core.SituationReaction)
	})
}

// active returns the config if the engine is running with a credential.
func (e *Engine) active() (Config, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg, e.running && e.cfg.Token != ""
}

// tick is called by the simulation clock.
func (e *Engine) tick() {
	cfg, ok := e.active()
	if !ok || cfg.Paused {
		return
	}
	situation := core.SituationSpontaneous
	if e.float64() < e.opts.AskPresenterWeight {
		situation = core.SituationAskPresenter
	}
	p, ok := e.registry.PickRandom("")
	if !ok {
		return
	}
	e.enqueue(cfg.Locale, situation, p, "")
}

func (e *Engine) float64() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64()
}

func (e *Engine) build(loc core.Locale, situation core.Situation, p core.Persona, utterance string) (string, error) {
	return e.prompts.Build(loc, situation, prompt.Input{
		Persona:   p,
		Utterance: utterance,
		Context:   e.buffer.RecentWindow(e.opts.ContextWindow),
	})
}

func (e *Engine) enqueue(loc core.Locale, situation core.Situation, p core.Persona, utterance string) {
	text, err := e.build(loc, situation, p, utterance)
	if err != nil {
		e.fail(err)
		return
	}
	e.submit(text, p, situation)
}

func (e *Engine) submit(text string, p core.Persona, situation core.Situation) {
	if _, err := e.sched.Enqueue(text, p, situation); err != nil {
		e.log.Debug("enqueue rejected", "engine_id", e.id, "situation", string(situation), "error", err)
	}
}

// after runs fn once d has elapsed on the engine clock. A non-positive d runs
// fn before returning. Stop cancels pending calls.
func (e *Engine) after(d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextTimer
	e.nextTimer++
	e.timers[id] = e.opts.Clock.AfterFunc(d, func() {
		e.mu.Lock()
		_, pending := e.timers[id]
		delete(e.timers, id)
		e.mu.Unlock()
		if pending {
			fn()
		}
	})
}

// emit is the scheduler sink.
func (e *Engine) emit(r scheduler.Result) {
	e.buffer.Record(r.Persona.Username, r.Text)
	msg := core.NewMessage(r.Persona, r.Text, r.Situation, r.CompletedAt)
	e.opts.Metrics.IncMessage(string(r.Situation))
	e.events.message(msg)
}

func (e *Engine) dropped(req scheduler.Request, err error) {
	if errors.Is(err, scheduler.ErrNoService) {
		// Lines queued before the credential was cleared fall away silently.
		e.log.Debug("line dropped without credential", "engine_id", e.id, "situation", string(req.Situation))
		return
	}
	e.events.error(fmt.Errorf("engine: %s line for %s dropped: %w", req.Situation, req.Persona.Username, err))
}

func (e *Engine) fail(err error) {
	e.log.Error("engine failure", "engine_id", e.id, "error", err)
	e.events.error(err)
}
