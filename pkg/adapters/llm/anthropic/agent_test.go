package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aescanero/dagrun/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAgent(t *testing.T, handler http.HandlerFunc) *Agent {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	agent, err := NewAgent(Options{APIKey: "test-key", Model: "claude-test", BaseURL: srv.URL}, nil, zap.NewNop())
	require.NoError(t, err)
	return agent
}

func TestAgent_Execute(t *testing.T) {
	var request map[string]interface{}
	agent := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &request))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Hello there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`))
	})

	out, err := agent.Execute(context.Background(), ports.Invocation{
		Inputs: map[string]interface{}{"prompt": "Say hello"},
		Params: map[string]interface{}{"max_tokens": 64.0, "system": "Be brief"},
	})
	require.NoError(t, err)

	result := out.(map[string]interface{})
	assert.Equal(t, "Hello there", result["text"])
	assert.Equal(t, "end_turn", result["stop_reason"])
	assert.Equal(t, int64(12), result["usage"].(map[string]interface{})["input_tokens"])

	assert.Equal(t, "claude-test", request["model"])
	assert.Equal(t, 64.0, request["max_tokens"])
	assert.NotEmpty(t, request["system"])
}

func TestAgent_RequiresPrompt(t *testing.T) {
	agent := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := agent.Execute(context.Background(), ports.Invocation{Inputs: map[string]interface{}{}})
	assert.ErrorIs(t, err, ErrNoPrompt)
}

func TestAgent_APIError(t *testing.T) {
	agent := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"overloaded"}}`))
	})

	_, err := agent.Execute(context.Background(), ports.Invocation{Inputs: map[string]interface{}{"prompt": "hi"}})
	assert.Error(t, err)
}

func TestNewAgent_RequiresAPIKey(t *testing.T) {
	_, err := NewAgent(Options{}, nil, zap.NewNop())
	assert.Error(t, err)
}
