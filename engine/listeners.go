package engine

import (
	"sync"

	"github.com/yaajosh/chat-simulator/core"
)

// MessageListener receives every emitted chat line in emission order.
type MessageListener func(core.Message)

// ErrorListener receives dropped requests and other non-fatal failures.
type ErrorListener func(error)

// listeners holds at most one listener per kind.
type listeners struct {
	mu        sync.RWMutex
	onMessage MessageListener
	onError   ErrorListener
}

func (l *listeners) setMessage(fn MessageListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onMessage = fn
}

func (l *listeners) setError(fn ErrorListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onError = fn
}

func (l *listeners) message(m core.Message) {
	l.mu.RLock()
	fn := l.onMessage
	l.mu.RUnlock()
	if fn != nil {
		fn(m)
	}
}

func (l *listeners) error(err error) {
	l.mu.RLock()
	fn := l.onError
	l.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}
