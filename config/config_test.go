package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "de", cfg.Locale)
	assert.Equal(t, 5, cfg.Activity)
	assert.True(t, cfg.AutoResponse)
	assert.Equal(t, 4*time.Second, cfg.Scheduler.MinInterval)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.BaseBackoff)
	assert.Equal(t, 3, cfg.Scheduler.MaxRetries)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scheduler.ReactionDelay)
	assert.InDelta(t, 0.7, cfg.Completion.Temperature, 1e-9)
	assert.EqualValues(t, 60, cfg.Completion.MaxOutputTokens)
	assert.Equal(t, 40, cfg.Completion.MaxChars)
	assert.Equal(t, 20, cfg.Context.Capacity)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Token)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CHATSIM_ACTIVITY", "9")
	t.Setenv("CHATSIM_LOCALE", "en")
	t.Setenv("CHATSIM_SCHEDULER_MIN_INTERVAL", "2s")
	t.Setenv("CHATSIM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Activity)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.MinInterval)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "sk-test", cfg.Token)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: mock
token: file-token
activity: 2
auto_response: false
log:
  level: debug
  format: json
scheduler:
  max_retries: 1
`), 0o600))

	cfg, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, ProviderMock, cfg.Provider)
	assert.Equal(t, "file-token", cfg.Token)
	assert.Equal(t, 2, cfg.Activity)
	assert.False(t, cfg.AutoResponse)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 1, cfg.Scheduler.MaxRetries)
	assert.Equal(t, 4*time.Second, cfg.Scheduler.MinInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(nil, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)

	bad := *cfg
	bad.Provider = "llama"
	bad.Activity = 11
	bad.Log.Level = "loud"
	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "llama"`)
	assert.Contains(t, err.Error(), "activity 11 outside 1-10")
	assert.Contains(t, err.Error(), `unknown log level "loud"`)

	bad = *cfg
	bad.Activity = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Scheduler.MinInterval = -time.Second
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Scheduler.MaxRetries = MaxRetriesLimit + 1
	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retries 11 outside 0-10")

	bad = *cfg
	bad.Completion.TopP = 1.5
	assert.Error(t, bad.Validate())
}
