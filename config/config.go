// Package config loads chat simulator settings from defaults, an optional
// YAML file, CHATSIM_* environment variables and bound command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yaajosh/chat-simulator/logging"
)

// EnvPrefix prefixes every environment override, e.g. CHATSIM_ACTIVITY.
const EnvPrefix = "CHATSIM"

// MaxRetriesLimit bounds scheduler.max_retries.
const MaxRetriesLimit = 10

// Providers accepted in Config.Provider.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// providerEnv names the conventional credential variable per provider,
// consulted when no token is configured.
var providerEnv = map[string]string{
	ProviderGemini:    "GEMINI_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// Config is the complete runtime configuration.
type Config struct {
	Provider     string `mapstructure:"provider"`
	Token        string `mapstructure:"token"`
	Model        string `mapstructure:"model"`
	BaseURL      string `mapstructure:"base_url"`
	Locale       string `mapstructure:"locale"`
	Activity     int    `mapstructure:"activity"`
	AutoResponse bool   `mapstructure:"auto_response"`

	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Completion CompletionConfig `mapstructure:"completion"`
	Context    ContextConfig    `mapstructure:"context"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

type SchedulerConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxRetries  int           `mapstructure:"max_retries"`
	FirstDelay  time.Duration `mapstructure:"first_delay"`
	// ReactionDelay staggers reactions to one utterance.
	ReactionDelay time.Duration `mapstructure:"reaction_delay"`
}

type CompletionConfig struct {
	Temperature     float64 `mapstructure:"temperature"`
	MaxOutputTokens int64   `mapstructure:"max_output_tokens"`
	TopP            float64 `mapstructure:"top_p"`
	MaxChars        int     `mapstructure:"max_chars"`
}

type ContextConfig struct {
	Capacity int `mapstructure:"capacity"`
	Window   int `mapstructure:"window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("token", "")
	v.SetDefault("model", "")
	v.SetDefault("base_url", "")
	v.SetDefault("locale", "de")
	v.SetDefault("activity", 5)
	v.SetDefault("auto_response", true)

	v.SetDefault("scheduler.min_interval", 4*time.Second)
	v.SetDefault("scheduler.base_backoff", 5*time.Second)
	v.SetDefault("scheduler.max_retries", 3)
	v.SetDefault("scheduler.first_delay", 5*time.Second)
	v.SetDefault("scheduler.reaction_delay", 1500*time.Millisecond)

	v.SetDefault("completion.temperature", 0.7)
	v.SetDefault("completion.max_output_tokens", 60)
	v.SetDefault("completion.top_p", 0.8)
	v.SetDefault("completion.max_chars", 40)

	v.SetDefault("context.capacity", 20)
	v.SetDefault("context.window", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if non-empty) into v and decodes the result. Pass a nil v
// to use NewViper.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Token == "" {
		if name, ok := providerEnv[cfg.Provider]; ok {
			cfg.Token = os.Getenv(name)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations. All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if c.Activity < 1 || c.Activity > 10 {
		errs = append(errs, fmt.Errorf("activity %d outside 1-10", c.Activity))
	}
	if strings.TrimSpace(c.Locale) == "" {
		errs = append(errs, errors.New("locale is empty"))
	}
	if c.Scheduler.MinInterval < 0 || c.Scheduler.BaseBackoff < 0 || c.Scheduler.ReactionDelay < 0 || c.Scheduler.FirstDelay < 0 {
		errs = append(errs, errors.New("scheduler durations must not be negative"))
	}
	if c.Scheduler.MaxRetries < 0 || c.Scheduler.MaxRetries > MaxRetriesLimit {
		errs = append(errs, fmt.Errorf("max_retries %d outside 0-%d", c.Scheduler.MaxRetries, MaxRetriesLimit))
	}
	if c.Completion.MaxOutputTokens < 1 {
		errs = append(errs, errors.New("completion.max_output_tokens must be positive"))
	}
	if c.Completion.TopP < 0 || c.Completion.TopP > 1 {
		errs = append(errs, fmt.Errorf("completion.top_p %.2f outside 0-1", c.Completion.TopP))
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio %.2f outside 0-1", c.Tracing.SampleRatio))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}
