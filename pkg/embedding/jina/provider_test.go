package jina

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"research-assistant-be/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSendsTaskAndNormalizes(t *testing.T) {
	var got embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"data":[{"index":0,"embedding":[3,4]}]}`))
	}))
	defer srv.Close()

	p := NewJinaProvider("secret", time.Second, WithBaseURL(srv.URL))
	res, err := p.Generate(context.Background(), "attention", embedding.TaskRetrievalQuery)
	require.NoError(t, err)

	assert.Equal(t, "retrieval.query", got.Task)
	assert.Equal(t, defaultModel, got.Model)
	assert.Equal(t, []string{"attention"}, got.Input)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, res.Embedding.Values, 1e-6)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api detail", http.StatusUnauthorized, `{"detail":"invalid key"}`, "invalid key"},
		{"raw body", http.StatusBadGateway, `upstream gone`, "upstream gone"},
		{"empty data", http.StatusOK, `{"data":[]}`, "empty embedding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewJinaProvider("k", time.Second, WithBaseURL(srv.URL))
			_, err := p.Generate(context.Background(), "x", embedding.TaskRetrievalDocument)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTaskMapping(t *testing.T) {
	assert.Equal(t, "retrieval.passage", task(embedding.TaskRetrievalDocument))
	assert.Equal(t, "", task("OTHER"))
}
