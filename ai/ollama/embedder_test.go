package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-ai/quarry/ai"
)

func TestExtractVector(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []float32
		wantErr error
	}{
		{"direct array", `[0.1, 0.2, 0.3]`, []float32{0.1, 0.2, 0.3}, nil},
		{"embedding field", `{"embedding": [1, 2]}`, []float32{1, 2}, nil},
		{"embeddings field", `{"embeddings": [3, 4]}`, []float32{3, 4}, nil},
		{"nested singleton embeddings", `{"embeddings": [[5, 6]]}`, []float32{5, 6}, nil},
		{"nested singleton data", `{"data": [[7, 8]]}`, []float32{7, 8}, nil},
		{"unknown object", `{"vectors": [1, 2]}`, nil, ai.ErrUnrecognizedShape},
		{"non-numeric array", `["a", "b"]`, nil, ai.ErrUnrecognizedShape},
		{"multi-element batch rejected", `{"embeddings": [[1], [2]]}`, nil, ai.ErrUnrecognizedShape},
		{"not json", `nonsense`, nil, ai.ErrUnrecognizedShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractVector([]byte(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-6)
		})
	}
}

func TestExtractVector_FieldOrder(t *testing.T) {
	// "embedding" wins over "embeddings" when both are present.
	got, err := ExtractVector([]byte(`{"embedding": [1], "embeddings": [2]}`))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1}, got, 1e-6)
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Embedder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	e, err := NewEmbedder(ai.NewConfig(ai.WithHost(srv.URL), ai.WithModel("test-model")))
	require.NoError(t, err)
	return srv, e
}

func TestEmbedText(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		_, e := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/embeddings", r.URL.Path)

			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-model", req.Model)
			assert.Equal(t, "hello", req.Prompt)

			json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.5, 0.25}})
		})

		vec, err := e.EmbedText(context.Background(), "hello")
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{0.5, 0.25}, vec, 1e-6)
	})

	t.Run("service error status", func(t *testing.T) {
		_, e := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		})

		_, err := e.EmbedText(context.Background(), "hello")
		require.Error(t, err)
	})

	t.Run("unrecognized shape", func(t *testing.T) {
		_, e := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"result": "fine"})
		})

		_, err := e.EmbedText(context.Background(), "hello")
		assert.ErrorIs(t, err, ai.ErrUnrecognizedShape)
	})
}

func TestEmbedTexts(t *testing.T) {
	calls := 0
	_, e := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{float32(calls)}})
	})

	vecs, err := e.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, 3, calls)
	assert.InDeltaSlice(t, []float32{1}, vecs[0], 1e-6)
	assert.InDeltaSlice(t, []float32{3}, vecs[2], 1e-6)
}

func TestProbeDimensions(t *testing.T) {
	t.Run("learns dimensionality", func(t *testing.T) {
		_, e := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"embedding": make([]float32, 768)})
		})

		dims, err := ai.ProbeDimensions(context.Background(), e)
		require.NoError(t, err)
		assert.Equal(t, 768, dims)
	})

	t.Run("unreachable service is fatal", func(t *testing.T) {
		srv, e := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
		srv.Close()

		_, err := ai.ProbeDimensions(context.Background(), e)
		assert.ErrorIs(t, err, ai.ErrProbeFailed)
	})
}
