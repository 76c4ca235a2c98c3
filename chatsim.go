// Package chatsim wires a simulated live-stream chat from a loaded
// configuration. Most applications:
//  1. Load a config.Config (config.Load)
//  2. Build an engine with New, optionally overriding logger, metrics or clock
//  3. Register an OnMessage listener, call Start, and feed presenter speech
//     to OnUtterance
//
// The engine package can be used directly when finer control is needed.
package chatsim

import (
	"fmt"
	"math/rand/v2"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/jonboulle/clockwork"

	"github.com/yaajosh/chat-simulator/config"
	"github.com/yaajosh/chat-simulator/core"
	"github.com/yaajosh/chat-simulator/engine"
	"github.com/yaajosh/chat-simulator/logging"
	"github.com/yaajosh/chat-simulator/model"
	anthropicmodel "github.com/yaajosh/chat-simulator/model/anthropic"
	"github.com/yaajosh/chat-simulator/model/gemini"
	openaimodel "github.com/yaajosh/chat-simulator/model/openai"
	"github.com/yaajosh/chat-simulator/prompt"
	"github.com/yaajosh/chat-simulator/telemetry"
)

// Options overrides what New derives from the configuration.
type Options struct {
	// Factory replaces the provider selected by Config.Provider.
	Factory model.Factory
	Logger  logging.Logger
	// Metrics defaults to telemetry.DefaultMetrics.
	Metrics *telemetry.Metrics
	Clock   clockwork.Clock
	Rand    *rand.Rand
}

// NewFactory returns the completer factory for cfg.Provider. The mock provider
// answers every prompt with a fixed line and is meant for demos without a key.
func NewFactory(cfg *config.Config) (model.Factory, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return gemini.Factory(func(o *gemini.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Endpoint = cfg.BaseURL
		}), nil
	case config.ProviderOpenAI:
		return openaimodel.Factory(func(o *openaimodel.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.BaseURL = cfg.BaseURL
		}), nil
	case config.ProviderAnthropic:
		return anthropicmodel.Factory(func(o *anthropicmodel.Options) {
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
			o.BaseURL = cfg.BaseURL
		}), nil
	case config.ProviderMock:
		return model.MockFactory(model.NewMockModel("mock")), nil
	default:
		return nil, fmt.Errorf("chatsim: unknown provider %q", cfg.Provider)
	}
}

// New builds an engine configured from cfg. The engine is idle until Start.
func New(cfg *config.Config, optFns ...func(o *Options)) (*engine.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("chatsim: nil config")
	}
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Factory == nil {
		f, err := NewFactory(cfg)
		if err != nil {
			return nil, err
		}
		opts.Factory = f
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.DefaultMetrics()
	}

	prompts, err := prompt.New(func(o *prompt.Options) { o.MaxChars = cfg.Completion.MaxChars })
	if err != nil {
		return nil, fmt.Errorf("chatsim: prompts: %w", err)
	}

	return engine.New(func(o *engine.Options) {
		o.Config = engine.Config{
			Token:         cfg.Token,
			Locale:        core.ParseLocale(cfg.Locale),
			ActivityLevel: cfg.Activity,
			AutoResponse:  cfg.AutoResponse,
		}
		o.Factory = opts.Factory
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		if opts.Clock != nil {
			o.Clock = opts.Clock
		}
		o.Rand = opts.Rand
		o.Prompts = prompts

		if cfg.Context.Capacity > 0 {
			o.BufferCapacity = cfg.Context.Capacity
		}
		if cfg.Context.Window > 0 {
			o.ContextWindow = cfg.Context.Window
		}
		o.MinInterval = cfg.Scheduler.MinInterval
		o.BaseBackoff = cfg.Scheduler.BaseBackoff
		o.MaxRetries = cfg.Scheduler.MaxRetries
		o.FirstDelay = cfg.Scheduler.FirstDelay
		o.ReactionDelay = cfg.Scheduler.ReactionDelay

		o.Temperature = cfg.Completion.Temperature
		o.MaxOutputTokens = cfg.Completion.MaxOutputTokens
		o.TopP = cfg.Completion.TopP
	})
}

// NewLogger builds the component logger described by cfg.Log.
func NewLogger(cfg config.LogConfig) *logging.ChatLogger {
	lc := logging.DefaultLoggerConfig()
	if lvl, ok := logging.ParseLevel(cfg.Level); ok {
		lc.Level = lvl
	}
	if cfg.Format != "" {
		lc.Format = cfg.Format
	}
	return logging.NewLogger(lc)
}
