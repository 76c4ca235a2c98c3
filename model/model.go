package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Default completion parameters.
const (
	DefaultTemperature     = 0.7
	DefaultMaxOutputTokens = 60
	DefaultTopP            = 0.8
)

var (
	// ErrRateLimited marks a failure the service reported as HTTP 429.
	ErrRateLimited = errors.New("model: rate limited")
	// ErrNoCredential is returned by a Factory given an empty token.
	ErrNoCredential = errors.New("model: no credential")
)

// Request is a single completion call.
type Request struct {
	Prompt          string
	Temperature     float64
	MaxOutputTokens int64
	TopP            float64
}

// NewRequest returns a Request for prompt with the default parameters.
func NewRequest(prompt string) Request {
	return Request{
		Prompt:          prompt,
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
		TopP:            DefaultTopP,
	}
}

// Info contains metadata about a completer implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Completer produces one completion for one prompt. Implementations must be
// safe for concurrent use, although the scheduler never overlaps calls.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)

	// Info returns information about the completer implementation.
	Info() Info
}

// Factory builds a Completer from a credential.
type Factory func(token string) (Completer, error)

// StatusError is a failure with the HTTP status the service returned.
type StatusError struct {
	Provider string
	Code     int
	Message  string
	Err      error
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, msg)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRateLimited) match a 429.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.Code == http.StatusTooManyRequests
}

// IsRateLimited reports whether err is, or wraps, a rate limit failure.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Clean trims whitespace and surrounding quotes from a completion.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	if len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			text = strings.TrimSpace(text[1 : len(text)-1])
		}
	}
	return text
}

// MockModel is a scripted in-memory Completer for tests and demos.
// Scripted replies are consumed in order; once exhausted it echoes
// a canned line.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	replies  []Reply
	requests []Request
}

// Reply is one scripted outcome.
type Reply struct {
	Text string
	Err  error
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string, replies ...Reply) *MockModel {
	return &MockModel{
		info:    Info{Name: name, Provider: "mock"},
		replies: replies,
	}
}

// AddReply appends a scripted reply.
func (m *MockModel) AddReply(r Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, r)
}

// Complete implements Completer.
func (m *MockModel) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.replies) == 0 {
		return "Nice stream!", nil
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r.Text, r.Err
}

// Requests returns every request seen so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Info implements Completer.
func (m *MockModel) Info() Info { return m.info }

// MockFactory returns a Factory that hands out m for any non-empty token.
func MockFactory(m *MockModel) Factory {
	return func(token string) (Completer, error) {
		if token == "" {
			return nil, ErrNoCredential
		}
		return m, nil
	}
}
