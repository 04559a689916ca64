package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/logger"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, n int32)) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		handler(w, r, calls.Add(1))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		APIKey:        "sk-ant-test",
		BaseURL:       srv.URL,
		Timeout:       time.Second,
		ModerateRetry: retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}, srv.Client(), logger.Discard(), nil)
	return client, &calls
}

func writeMessage(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"id":          "msg_1",
		"type":        "message",
		"role":        "assistant",
		"model":       DefaultModel,
		"stop_reason": "end_turn",
		"content": []interface{}{
			map[string]string{"type": "text", "text": text},
		},
		"usage": map[string]int{"input_tokens": 10, "output_tokens": 5},
	})
}

func TestClient_Moderate_Success(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultModel, body["model"])
		assert.NotNil(t, body["system"])

		writeMessage(w, "```json\n{\"status\":\"approved\",\"tags\":[],\"issues\":[],\"confidence\":0.95}\n```")
	})

	result, err := client.Moderate(context.Background(), "great movie")

	require.NoError(t, err)
	assert.Equal(t, moderation.StatusApproved, result.Status)
	assert.Equal(t, 0.95, result.Confidence)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Moderate_RetriesServerErrors(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, n int32) {
		if n == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`))
			return
		}
		writeMessage(w, `{"status":"rejected","tags":"spam","issues":[],"confidence":0.8}`)
	})

	result, err := client.Moderate(context.Background(), "buy now")

	require.NoError(t, err)
	assert.Equal(t, moderation.StatusRejected, result.Status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Moderate_ClientErrorIsNotRetried(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	})

	_, err := client.Moderate(context.Background(), "text")

	assert.True(t, moderation.IsServiceUnavailable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Authenticate_MissingKey(t *testing.T) {
	client := NewClient(Config{}, nil, logger.Discard(), nil)

	_, err := client.Moderate(context.Background(), "text")
	var se *moderation.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ai.OpAuthenticate, se.Op)
}

func TestRetryable(t *testing.T) {
	assert.False(t, retryable(context.Canceled))
	assert.True(t, retryable(errors.New("connection reset")))
}
