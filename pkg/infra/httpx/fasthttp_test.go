package httpx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastHTTPClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/reviews/r1/status", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "review-guard", r.Header.Get("User-Agent"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"status":"approved"}`, string(body))

		w.Header().Set("X-Request-Id", "abc")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewFastHTTPClient(WithUserAgent("review-guard"), WithTimeout(time.Second))
	req, err := NewJSONRequest(context.Background(), http.MethodPost, server.URL+"/api/v1/reviews/r1/status", map[string]string{"status": "approved"})
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "abc", resp.Header.Get("X-Request-Id"))
	body, err := ReadResponse(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestFastHTTPClient_InsecureSkipVerify(t *testing.T) {
	assert.False(t, NewFastHTTPClient().InsecureSkipVerify())
	assert.False(t, NewFastHTTPClient(WithInsecureSkipVerify(false)).InsecureSkipVerify())
	assert.True(t, NewFastHTTPClient(WithInsecureSkipVerify(true)).InsecureSkipVerify())
}

func TestFastHTTPClient_DecodesGzip(t *testing.T) {
	payload := `{"access_token":"tok"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(gzipBytes([]byte(payload)))
	}))
	defer server.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := NewFastHTTPClient().Do(req)
	require.NoError(t, err)

	body, err := ReadResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}

func TestFastHTTPClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1", nil)
	require.NoError(t, err)

	_, err = NewFastHTTPClient().Do(req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFastHTTPClient_Deadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = NewFastHTTPClient().Do(req)
	assert.Error(t, err)
}

func TestReadResponse_StatusError(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Body:       io.NopCloser(strings.NewReader("down")),
	}

	_, err := ReadResponse(resp)

	se, ok := IsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "down", se.Body)
	assert.True(t, se.Temporary())
	assert.Equal(t, "unexpected status 503: down", err.Error())
}

func TestStatusError_Temporary(t *testing.T) {
	assert.True(t, (&StatusError{StatusCode: http.StatusTooManyRequests}).Temporary())
	assert.True(t, (&StatusError{StatusCode: http.StatusBadGateway}).Temporary())
	assert.False(t, (&StatusError{StatusCode: http.StatusBadRequest}).Temporary())
	assert.False(t, (&StatusError{StatusCode: http.StatusUnauthorized}).Temporary())
}

func TestNewJSONRequest_NoPayload(t *testing.T) {
	req, err := NewJSONRequest(context.Background(), http.MethodDelete, "http://example.com/api/v1/reviews/1", nil)
	require.NoError(t, err)

	assert.Nil(t, req.Body)
	assert.Empty(t, req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
}
