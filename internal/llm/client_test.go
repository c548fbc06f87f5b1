package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIHandler(t *testing.T, reply string, failures *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if failures != nil && atomic.AddInt32(failures, -1) >= 0 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req OpenAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)

		fmt.Fprintf(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, reply)
	}
}

func newTestClient(url string) *OpenAIClient {
	return NewOpenAIClientWithConfig(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(openAIHandler(t, "  a thoughtful answer \n", nil))
	defer srv.Close()

	client := newTestClient(srv.URL)
	out, err := client.Complete(context.Background(), "what is a parti?")
	require.NoError(t, err)
	assert.Equal(t, "a thoughtful answer", out, "responses are trimmed")
}

func TestOpenAIRetriesTransientErrors(t *testing.T) {
	failures := int32(1)
	srv := httptest.NewServer(openAIHandler(t, "recovered", &failures))
	defer srv.Close()

	client := newTestClient(srv.URL)
	out, err := client.CompleteWithSystem(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
}

func TestOpenAIMissingKey(t *testing.T) {
	client := NewOpenAIClient("")
	_, err := client.Complete(context.Background(), "anything")
	assert.Error(t, err)
}

func TestOpenAIRespectsCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := newTestClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, "slow")
	assert.Error(t, err)
}

func TestLimitedClientBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		openAIHandler(t, "ok", nil)(w, r)
	}))
	defer srv.Close()

	limited := NewLimitedClient(newTestClient(srv.URL), 2)

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = limited.Complete(context.Background(), "go")
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}
