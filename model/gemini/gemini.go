// Package gemini provides a model.Completer over the Google Generative
// Language API (generateContent).
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/yaajosh/chat-simulator/model"
)

const providerName = "gemini"

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// Options configures the Gemini completer.
type Options struct {
	Model string
	// Endpoint overrides the service base URL.
	Endpoint      string
	ClientOptions []option.ClientOption
}

// Model wraps the generateContent call behind model.Completer.
type Model struct {
	svc  *generativelanguage.Service
	opts Options
}

// NewModel creates a completer authenticated with an API key.
func NewModel(ctx context.Context, apiKey string, optFns ...func(o *Options)) (*Model, error) {
	if apiKey == "" {
		return nil, model.ErrNoCredential
	}
	opts := Options{Model: DefaultModel}
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	svc, err := generativelanguage.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: new service: %w", providerName, err)
	}
	return &Model{svc: svc, opts: opts}, nil
}

// Factory returns a model.Factory building Gemini completers.
func Factory(optFns ...func(o *Options)) model.Factory {
	return func(token string) (model.Completer, error) {
		return NewModel(context.Background(), token, optFns...)
	}
}

func (m *Model) modelPath() string {
	if strings.HasPrefix(m.opts.Model, "models/") {
		return m.opts.Model
	}
	return "models/" + m.opts.Model
}

// Complete implements model.Completer.
func (m *Model) Complete(ctx context.Context, req model.Request) (string, error) {
	body := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: req.Prompt}},
		}},
		GenerationConfig: &generativelanguage.GenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
			TopP:            req.TopP,
		},
	}

	resp, err := m.svc.Models.GenerateContent(m.modelPath(), body).Context(ctx).Do()
	if err != nil {
		return "", classify(err)
	}
	return model.Clean(firstText(resp)), nil
}

// firstText returns the text of the first candidate, or "" if the response
// carries none.
func firstText(resp *generativelanguage.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &model.StatusError{
			Provider: providerName,
			Code:     gerr.Code,
			Message:  gerr.Message,
			Err:      err,
		}
	}
	return fmt.Errorf("%s: %w", providerName, err)
}

// Info implements model.Completer.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: providerName}
}
