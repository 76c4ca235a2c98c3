package scheduler

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yaajosh/chat-simulator/core"
	"github.com/yaajosh/chat-simulator/logging"
	"github.com/yaajosh/chat-simulator/model"
	"github.com/yaajosh/chat-simulator/telemetry"
)

// Defaults taken by New.
const (
	DefaultMinInterval = 4 * time.Second
	DefaultBaseBackoff = 5 * time.Second
	DefaultMaxRetries  = 3
)

var (
	// ErrStopped is returned by Enqueue between Stop and Start.
	ErrStopped = errors.New("scheduler: stopped")
	// ErrNoService marks a request dropped because no completer was set.
	ErrNoService = errors.New("scheduler: no completion service")
	// ErrRetriesExhausted marks a request still rate limited after MaxRetries.
	ErrRetriesExhausted = errors.New("scheduler: rate limit retries exhausted")
)

// State of the drain loop.
type State int

const (
	StateIdle State = iota
	StateDraining
)

func (s State) String() string {
	if s == StateDraining {
		return "draining"
	}
	return "idle"
}

// Request is one queued completion.
type Request struct {
	ID         string
	Prompt     string
	Persona    core.Persona
	Situation  core.Situation
	EnqueuedAt time.Time
}

// Result is a successful, non-empty completion.
type Result struct {
	Request
	Text        string
	CompletedAt time.Time
	Attempts    int
}

// Sink receives results in service order, from the drain goroutine.
type Sink func(Result)

// ErrorHandler receives dropped requests.
type ErrorHandler func(Request, error)

// Options configures a Scheduler.
type Options struct {
	Clock       clockwork.Clock
	MinInterval time.Duration
	BaseBackoff time.Duration
	MaxRetries  int

	Temperature     float64
	MaxOutputTokens int64
	TopP            float64

	Logger  logging.Logger
	Metrics *telemetry.Metrics
	OnError ErrorHandler
}

// Scheduler is the throttled completion queue. The zero value is not usable;
// call New.
type Scheduler struct {
	opts Options
	sink Sink

	mu       sync.Mutex
	queue    []Request
	state    State
	stopped  bool
	epoch    uint64
	stopCh   chan struct{}
	lastDone time.Time
	hasLast  bool
	service  model.Completer

	// callMu is held by a drain loop from its interval wait through the
	// completion call, so calls never overlap across Stop and Start.
	callMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns an idle scheduler delivering results to sink.
func New(sink Sink, optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		Clock:           clockwork.NewRealClock(),
		MinInterval:     DefaultMinInterval,
		BaseBackoff:     DefaultBaseBackoff,
		MaxRetries:      DefaultMaxRetries,
		Temperature:     model.DefaultTemperature,
		MaxOutputTokens: model.DefaultMaxOutputTokens,
		TopP:            model.DefaultTopP,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if sink == nil {
		sink = func(Result) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		opts:   opts,
		sink:   sink,
		stopCh: make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetService swaps the completion service. Nil makes dequeued requests drop.
func (s *Scheduler) SetService(c model.Completer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.service = c
}

// Enqueue appends a request and starts a drain cycle when idle.
func (s *Scheduler) Enqueue(prompt string, persona core.Persona, situation core.Situation) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return Request{}, ErrStopped
	}
	req := Request{
		ID:         core.NewID(),
		Prompt:     prompt,
		Persona:    persona,
		Situation:  situation,
		EnqueuedAt: s.opts.Clock.Now(),
	}
	s.queue = append(s.queue, req)
	s.opts.Metrics.QueueAdd(1)

	if s.state == StateIdle {
		s.state = StateDraining
		s.wg.Add(1)
		go s.drain(s.epoch, s.stopCh)
	}
	return req, nil
}

// Stop discards the queue and ends the current drain cycle. A call already
// in flight completes but its result is discarded. Enqueue fails until Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.epoch++
	close(s.stopCh)
	s.stopCh = make(chan struct{})
	s.opts.Metrics.QueueAdd(-len(s.queue))
	s.queue = nil
	s.state = StateIdle
}

// Start accepts requests again after Stop. It is a no-op otherwise.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
}

// Close stops the scheduler, cancels an in-flight call and waits for drain
// goroutines to exit.
func (s *Scheduler) Close() {
	s.Stop()
	s.cancel()
	s.wg.Wait()
}

// State reports whether a drain cycle is running.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Len is the number of queued requests.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stopped reports whether Stop was called without a later Start.
func (s *Scheduler) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Scheduler) drain(epoch uint64, stopCh <-chan struct{}) {
	defer s.wg.Done()
	for s.step(epoch, stopCh) {
	}
}

// step serves one request. It returns false when the cycle is over.
func (s *Scheduler) step(epoch uint64, stopCh <-chan struct{}) bool {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	if len(s.queue) == 0 {
		s.state = StateIdle
		s.mu.Unlock()
		return false
	}
	var wait time.Duration
	if s.hasLast {
		wait = s.opts.MinInterval - s.opts.Clock.Since(s.lastDone)
	}
	s.mu.Unlock()

	if wait > 0 {
		select {
		case <-s.opts.Clock.After(wait):
		case <-stopCh:
			return false
		}
	}

	s.mu.Lock()
	if s.epoch != epoch || len(s.queue) == 0 {
		if s.epoch == epoch {
			s.state = StateIdle
		}
		s.mu.Unlock()
		return false
	}
	req := s.queue[0]
	s.queue[0] = Request{}
	s.queue = s.queue[1:]
	svc := s.service
	s.mu.Unlock()
	s.opts.Metrics.QueueAdd(-1)

	text, attempts, err := s.serve(req, svc, stopCh)

	s.mu.Lock()
	if svc != nil {
		s.lastDone = s.opts.Clock.Now()
		s.hasLast = true
	}
	current := s.epoch == epoch
	s.mu.Unlock()

	provider := providerOf(svc)
	switch {
	case !current:
		s.opts.Metrics.ObserveCompletion(provider, telemetry.OutcomeDiscarded)
		return false
	case err != nil:
		s.drop(req, provider, err)
	case text == "":
		s.opts.Metrics.ObserveCompletion(provider, telemetry.OutcomeEmpty)
	default:
		s.opts.Metrics.ObserveCompletion(provider, telemetry.OutcomeSuccess)
		s.sink(Result{
			Request:     req,
			Text:        text,
			CompletedAt: s.opts.Clock.Now(),
			Attempts:    attempts,
		})
	}
	return true
}

// serve runs one request including rate-limit retries.
func (s *Scheduler) serve(req Request, svc model.Completer, stopCh <-chan struct{}) (string, int, error) {
	if svc == nil {
		return "", 0, ErrNoService
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.BaseBackoff
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = backoffCeiling(s.opts.BaseBackoff, s.opts.MaxRetries)
	bo.Reset()

	mreq := model.Request{
		Prompt:          req.Prompt,
		Temperature:     s.opts.Temperature,
		MaxOutputTokens: s.opts.MaxOutputTokens,
		TopP:            s.opts.TopP,
	}

	for attempt := 1; ; attempt++ {
		text, err := s.call(svc, req, mreq, attempt)
		if err == nil {
			return text, attempt, nil
		}
		if !model.IsRateLimited(err) {
			return "", attempt, err
		}
		if attempt > s.opts.MaxRetries {
			return "", attempt, errors.Join(ErrRetriesExhausted, err)
		}

		// The failed attempt counts as a call: a retry is spaced like any other.
		delay := max(bo.NextBackOff(), s.opts.MinInterval)
		s.opts.Metrics.IncRetry(providerOf(svc))
		s.opts.Logger.Warn("completion rate limited, backing off",
			"request_id", req.ID, "attempt", attempt, "delay", delay)
		select {
		case <-s.opts.Clock.After(delay):
		case <-stopCh:
			return "", attempt, ErrStopped
		}
	}
}

// backoffCeiling is base doubled retries times, saturating at the largest
// Duration instead of overflowing.
func backoffCeiling(base time.Duration, retries int) time.Duration {
	ceiling := base
	for range retries {
		if ceiling > math.MaxInt64/2 {
			return math.MaxInt64
		}
		ceiling *= 2
	}
	return ceiling
}

func (s *Scheduler) call(svc model.Completer, req Request, mreq model.Request, attempt int) (string, error) {
	provider := providerOf(svc)
	ctx, span := telemetry.StartSpan(s.ctx, "chatsim.completion",
		attribute.String("chatsim.provider", provider),
		attribute.String("chatsim.persona", req.Persona.Username),
		attribute.String("chatsim.situation", string(req.Situation)),
		attribute.Int("chatsim.attempt", attempt),
	)
	defer span.End()

	start := s.opts.Clock.Now()
	text, err := svc.Complete(ctx, mreq)
	s.opts.Metrics.ObserveCall(provider, s.opts.Clock.Since(start))
	telemetry.RecordError(span, err)
	return text, err
}

func (s *Scheduler) drop(req Request, provider string, err error) {
	switch {
	case errors.Is(err, ErrStopped):
		s.opts.Metrics.ObserveCompletion(provider, telemetry.OutcomeDiscarded)
		return
	case errors.Is(err, ErrNoService):
		s.opts.Metrics.ObserveCompletion(provider, telemetry.OutcomeNoService)
	case model.IsRateLimited(err):
		s.opts.Metrics.ObserveCompletion(provider, telemetry.OutcomeRateLimited)
	default:
		s.opts.Metrics.ObserveCompletion(provider, telemetry.OutcomeFailed)
	}
	s.opts.Logger.Warn("completion request dropped",
		"request_id", req.ID,
		"persona", req.Persona.Username,
		"situation", string(req.Situation),
		"status", model.StatusCode(err),
		"error", err)
	if s.opts.OnError != nil {
		s.opts.OnError(req, err)
	}
}

func providerOf(c model.Completer) string {
	if c == nil {
		return "none"
	}
	return c.Info().Provider
}
