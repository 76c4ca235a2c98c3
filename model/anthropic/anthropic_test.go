package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaajosh/chat-simulator/model"
)

func newTestModel(t *testing.T, h http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	m, err := NewModel("test-key", func(o *Options) { o.BaseURL = srv.URL + "/" })
	require.NoError(t, err)
	return m
}

func TestComplete(t *testing.T) {
	var body map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-20241022",
			"content":[{"type":"text","text":"Haha, stimmt!"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":3,"output_tokens":4}}`))
	})

	text, err := m.Complete(context.Background(), model.NewRequest("hallo"))
	require.NoError(t, err)
	assert.Equal(t, "Haha, stimmt!", text)
	assert.EqualValues(t, 60, body["max_tokens"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-9)
}

func TestCompleteClassifiesStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadRequest} {
		m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
		})

		_, err := m.Complete(context.Background(), model.NewRequest("hallo"))
		require.Error(t, err)
		assert.Equal(t, status, model.StatusCode(err))
		assert.Equal(t, status == http.StatusTooManyRequests, model.IsRateLimited(err))
	}
}

func TestFactoryRequiresToken(t *testing.T) {
	_, err := Factory()("")
	assert.ErrorIs(t, err, model.ErrNoCredential)
}
