// Package simclock drives spontaneous chat activity: a periodic tick whose
// interval follows the activity level, a one-shot first tick shortly after
// start, and a pause flag that suppresses both.
package simclock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// MinActivity and MaxActivity bound the activity level.
	MinActivity = 1
	MaxActivity = 10

	// DefaultFirstDelay is when the first tick fires after Start.
	DefaultFirstDelay = 5 * time.Second

	minInterval  = 8 * time.Second
	activityBase = 25 * time.Second
)

// ClampActivity limits level to [MinActivity, MaxActivity].
func ClampActivity(level int) int {
	return min(max(level, MinActivity), MaxActivity)
}

// Interval is the tick period for an activity level: 25s/level, but never
// shorter than 8s.
func Interval(level int) time.Duration {
	d := activityBase / time.Duration(ClampActivity(level))
	return max(d, minInterval)
}

// Options configures a Clock.
type Options struct {
	Clock      clockwork.Clock
	FirstDelay time.Duration
	Activity   int
}

// Clock calls a tick function on the activity schedule until stopped.
type Clock struct {
	clock      clockwork.Clock
	firstDelay time.Duration
	onTick     func()

	mu       sync.Mutex
	running  bool
	paused   bool
	activity int
	ticker   clockwork.Ticker
	first    clockwork.Timer
	stop     chan struct{}
}

// New returns a stopped Clock that will call onTick.
func New(onTick func(), optFns ...func(o *Options)) *Clock {
	opts := Options{
		Clock:      clockwork.NewRealClock(),
		FirstDelay: DefaultFirstDelay,
		Activity:   5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Clock{
		clock:      opts.Clock,
		firstDelay: opts.FirstDelay,
		onTick:     onTick,
		activity:   ClampActivity(opts.Activity),
	}
}

// Start begins ticking. It is a no-op while running.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.first = c.clock.AfterFunc(c.firstDelay, c.fire)
	c.startTickerLocked()
}

func (c *Clock) startTickerLocked() {
	c.ticker = c.clock.NewTicker(Interval(c.activity))
	c.stop = make(chan struct{})
	go c.run(c.ticker, c.stop)
}

func (c *Clock) stopTickerLocked() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.stop)
	c.ticker = nil
	c.stop = nil
}

func (c *Clock) run(t clockwork.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-t.Chan():
			c.fire()
		case <-stop:
			return
		}
	}
}

func (c *Clock) fire() {
	c.mu.Lock()
	skip := !c.running || c.paused
	c.mu.Unlock()
	if skip || c.onTick == nil {
		return
	}
	c.onTick()
}

// Stop halts the ticker and the pending first tick.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	if c.first != nil {
		c.first.Stop()
		c.first = nil
	}
	c.stopTickerLocked()
}

// Reschedule changes the activity level. A running ticker restarts at the new
// interval; the pending first tick is left alone.
func (c *Clock) Reschedule(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activity = ClampActivity(level)
	if !c.running {
		return
	}
	c.stopTickerLocked()
	c.startTickerLocked()
}

// Pause suppresses ticks without stopping the schedule.
func (c *Clock) Pause() { c.setPaused(true) }

// Resume lets ticks through again.
func (c *Clock) Resume() { c.setPaused(false) }

func (c *Clock) setPaused(p bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = p
}

// Paused reports whether ticks are currently suppressed.
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Running reports whether Start was called without a later Stop.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Activity is the current, clamped level.
func (c *Clock) Activity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activity
}
