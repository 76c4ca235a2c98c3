package testutil

import (
	"sync"
	"time"

	"github.com/yaajosh/chat-simulator/core"
)

// Recorder collects messages and errors delivered to engine listeners.
type Recorder struct {
	mu       sync.Mutex
	messages []core.Message
	errs     []error
	notify   chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// OnMessage is a MessageListener.
func (r *Recorder) OnMessage(m core.Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
	r.poke()
}

// OnError is an ErrorListener.
func (r *Recorder) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.poke()
}

func (r *Recorder) poke() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []core.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Message(nil), r.messages...)
}

// Errors returns a copy of the recorded errors.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// WaitMessages blocks until at least n messages arrived or timeout elapsed,
// and reports whether they did.
func (r *Recorder) WaitMessages(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		r.mu.Lock()
		got := len(r.messages)
		r.mu.Unlock()
		if got >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline:
			return false
		}
	}
}
