// Package anthropic provides a model.Completer over the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/yaajosh/chat-simulator/model"
)

const providerName = "anthropic"

// Options configures the Anthropic completer.
type Options struct {
	Model   anthropic.Model
	BaseURL string
	// ClientOptions are appended after the credential and base URL.
	ClientOptions []option.RequestOption
}

// Model wraps the Anthropic Messages API behind model.Completer.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a completer authenticated with apiKey. SDK retries are
// disabled so rate limits reach the scheduler.
func NewModel(apiKey string, optFns ...func(o *Options)) (*Model, error) {
	if apiKey == "" {
		return nil, model.ErrNoCredential
	}
	opts := Options{Model: anthropic.ModelClaude3_5Sonnet20241022}
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}, nil
}

// Factory returns a model.Factory building Anthropic completers.
func Factory(optFns ...func(o *Options)) model.Factory {
	return func(token string) (model.Completer, error) {
		return NewModel(token, optFns...)
	}
}

// Complete implements model.Completer.
func (m *Model) Complete(ctx context.Context, req model.Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		MaxTokens:   req.MaxOutputTokens,
		Temperature: anthropic.Float(req.Temperature),
		TopP:        anthropic.Float(req.TopP),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return model.Clean(sb.String()), nil
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &model.StatusError{
			Provider: providerName,
			Code:     apiErr.StatusCode,
			Err:      err,
		}
	}
	return fmt.Errorf("%s: %w", providerName, err)
}

// Info implements model.Completer.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: providerName}
}
