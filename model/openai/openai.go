// Package openai provides a model.Completer over the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/yaajosh/chat-simulator/model"
)

const providerName = "openai"

// Options configure the OpenAI completer.
type Options struct {
	Model   string
	BaseURL string
	// ClientOptions are appended after the credential and base URL.
	ClientOptions []option.RequestOption
}

// Model wraps the OpenAI Chat Completions API behind model.Completer.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a completer authenticated with apiKey. The SDK's own
// retries are disabled; the scheduler decides when to retry.
func NewModel(apiKey string, optFns ...func(o *Options)) (*Model, error) {
	if apiKey == "" {
		return nil, model.ErrNoCredential
	}
	opts := Options{Model: openai.ChatModelGPT4oMini}
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

	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}, nil
}

// Factory returns a model.Factory building OpenAI completers.
func Factory(optFns ...func(o *Options)) model.Factory {
	return func(token string) (model.Completer, error) {
		return NewModel(token, optFns...)
	}
}

// Complete implements model.Completer.
func (m *Model) Complete(ctx context.Context, req model.Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: m.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Temperature:         openai.Float(req.Temperature),
		MaxCompletionTokens: openai.Int(req.MaxOutputTokens),
		TopP:                openai.Float(req.TopP),
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return model.Clean(resp.Choices[0].Message.Content), nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &model.StatusError{
			Provider: providerName,
			Code:     apiErr.StatusCode,
			Message:  apiErr.Message,
			Err:      err,
		}
	}
	return fmt.Errorf("%s: %w", providerName, err)
}

// Info implements model.Completer.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: providerName}
}
