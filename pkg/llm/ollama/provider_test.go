package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"research-assistant-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatStreamDeliversTokensInOrder(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		for _, tok := range []string{"Hel", "lo", " world"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", tok)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", "30m", time.Second)

	var tokens []string
	err := p.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	}, llm.WithTemperature(0.2))

	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo", " world"}, tokens)
	assert.True(t, got.Stream)
	assert.Equal(t, "30m", got.KeepAlive)
	assert.Equal(t, "llama3", got.Model)
	assert.InDelta(t, 0.2, got.Options.Temperature, 1e-9)
}

func TestChatStreamHandlerErrorStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 5; i++ {
			fmt.Fprintln(w, `{"message":{"content":"x"},"done":false}`)
		}
		fmt.Fprintln(w, `{"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", "", time.Second)
	stop := errors.New("client gone")
	calls := 0
	err := p.ChatStream(context.Background(), nil, func(string) error {
		calls++
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestChatStreamUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "missing", "", time.Second)
	err := p.ChatStream(context.Background(), nil, func(string) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestChatStreamTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"partial"},"done":false}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", "", time.Second)
	err := p.ChatStream(context.Background(), nil, func(string) error { return nil })

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "before done"))
}

func TestChatNonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "assistant", req.Messages[1].Role)
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"pong"},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", "", time.Second)
	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: "user", Content: "ping"},
		{Role: "model", Content: "..."},
	})

	require.NoError(t, err)
	assert.Equal(t, "pong", out)
}
