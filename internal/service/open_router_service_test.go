package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fadilmartias/resume-insight/internal/config"
	"github.com/fadilmartias/resume-insight/internal/dispatcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const okCompletion = `{"model":"test/model","choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`

func newTestOpenRouter(t *testing.T, baseURL string, maxRetries int) (*OpenRouterService, *dispatcher.Dispatcher) {
	t.Helper()
	d := newTestDispatcher(t)
	cfg := &config.OpenRouterConfig{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "test/model",
		VisionModel: "test/vision",
		Timeout:     5 * time.Second,
	}
	return NewOpenRouterService(cfg, d, fastPolicy(maxRetries), zaptest.NewLogger(t)), d
}

func TestOpenRouter_Complete(t *testing.T) {
	type captured struct {
		path, auth string
		body       map[string]any
	}
	reqs := make(chan captured, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		reqs <- captured{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okCompletion))
	}))
	defer srv.Close()

	s, _ := newTestOpenRouter(t, srv.URL, 0)
	out, err := s.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a recruiter."},
			{Role: RoleUser, Content: "Parse this", Images: []ImagePart{{MIMEType: "image/png", Data: []byte{1, 2, 3}}}},
		},
		Temperature: 0.2,
		MaxTokens:   256,
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out.Text)
	assert.Equal(t, 12, out.Usage.TotalTokens)

	got := <-reqs
	assert.Equal(t, "/chat/completions", got.path)
	assert.Equal(t, "Bearer test-key", got.auth)
	assert.Equal(t, "test/vision", got.body["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got.body["response_format"])
	assert.EqualValues(t, 256, got.body["max_tokens"])

	messages := got.body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "You are a recruiter.", messages[0].(map[string]any)["content"])

	parts := messages[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]any)["type"])
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/png;base64,AQID", image["url"])
}

func TestOpenRouter_MissingAPIKey(t *testing.T) {
	s, _ := newTestOpenRouter(t, "http://127.0.0.1:0", 0)
	s.cfg.APIKey = ""

	_, err := s.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestOpenRouter_RetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		_, _ = w.Write([]byte(okCompletion))
	}))
	defer srv.Close()

	s, _ := newTestOpenRouter(t, srv.URL, 2)
	out, err := s.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out.Text)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestOpenRouter_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"unknown model"}}`))
	}))
	defer srv.Close()

	s, _ := newTestOpenRouter(t, srv.URL, 3)
	_, err := s.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})

	var se *dispatcher.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, se.Body, "unknown model")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestOpenRouter_ErrorObjectIn200IsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"provider overloaded"}}`))
	}))
	defer srv.Close()

	s, _ := newTestOpenRouter(t, srv.URL, 2)
	_, err := s.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})

	var exhausted *dispatcher.RetriesExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestOpenRouter_UpdatesQuotaFromHeaders(t *testing.T) {
	reset := time.Now().Add(time.Minute).Truncate(time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "7")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.UnixMilli(), 10))
		_, _ = w.Write([]byte(okCompletion))
	}))
	defer srv.Close()

	s, d := newTestOpenRouter(t, srv.URL, 0)
	_, err := s.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)

	q := d.Quota("test/model")
	assert.Equal(t, 7, q.Remaining)
	assert.True(t, q.ResetAt.Equal(reset), "reset %v, want %v", q.ResetAt, reset)
}

func TestOpenRouter_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  "}}]}`))
	}))
	defer srv.Close()

	s, _ := newTestOpenRouter(t, srv.URL, 2)
	_, err := s.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}
