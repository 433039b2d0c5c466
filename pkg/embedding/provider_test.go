package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	out := normalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, out[0], 1e-6)
	assert.InDelta(t, 0.8, out[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, normalizeVector(zero))
}

func TestOllamaProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "5m", req.KeepAlive)
		assert.Equal(t, []string{"search_document: hello"}, req.Input)
		fmt.Fprint(w, `{"embeddings":[[1,2,2]]}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "", "5m", time.Second)
	res, err := p.Generate(context.Background(), "hello", TaskRetrievalDocument)
	require.NoError(t, err)

	var norm float64
	for _, v := range res.Embedding.Values {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
	assert.Len(t, res.Embedding.Values, 3)
}

func TestOllamaTaskPrefixOnlyForNomic(t *testing.T) {
	nomic := &OllamaProvider{Model: "nomic-embed-text"}
	assert.Equal(t, "search_query: ", nomic.taskPrefix(TaskRetrievalQuery))
	assert.Equal(t, "", nomic.taskPrefix("CLUSTERING"))

	other := &OllamaProvider{Model: "mxbai-embed-large"}
	assert.Equal(t, "", other.taskPrefix(TaskRetrievalQuery))
}

func TestOllamaProviderReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model \"m\" not found"}`)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "m", "", time.Second).Generate(context.Background(), "x", TaskRetrievalQuery)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestOllamaProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "m", "", time.Second)
	_, err := p.Generate(context.Background(), "x", TaskRetrievalQuery)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Generate(ctx, "x", TaskRetrievalQuery)
	assert.ErrorIs(t, err, context.Canceled)
}
