// Package ollama implements ai.Embedder against an Ollama embeddings
// endpoint. The service's response schema is not standardized across
// versions, so the vector is recovered by an explicit ordered list of
// extraction strategies rather than a fixed struct decode.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quarry-ai/quarry/ai"
)

// Embedder implements ai.Embedder using the Ollama /api/embeddings endpoint.
type Embedder struct {
	host   string
	model  string
	client *http.Client
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder creates an embedder using the provided configuration.
func NewEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Embedder{
		host:   strings.TrimRight(config.Host, "/"),
		model:  config.Model,
		client: &http.Client{Timeout: config.Timeout},
		logger: slog.Default().With("component", "ollama-embedder"),
	}, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("embedding request failed", "err", err)
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		e.logger.Error("embedding service error", "status", resp.StatusCode)
		return nil, fmt.Errorf("embedding service returned status %d", resp.StatusCode)
	}

	vec, err := ExtractVector(raw)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ai.ErrEmptyEmbedding
	}
	return vec, nil
}

// EmbedTexts generates vector embeddings for multiple text strings.
// The endpoint accepts one prompt per call, so texts are embedded serially.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d of %d: %w", i+1, len(texts), err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// extractStrategy attempts to recover a vector from a decoded response.
// A nil result means the strategy does not apply; strategies are tried in
// order and the first non-nil result wins.
type extractStrategy func(decoded any) []float32

var extractStrategies = []extractStrategy{
	directArray,
	namedField("embedding"),
	namedField("embeddings"),
	nestedSingleton("embeddings"),
	nestedSingleton("data"),
}

// ExtractVector normalizes a raw embedding-service response into a flat
// float vector. Accepted shapes, in order: a bare JSON array of numbers,
// an object with an "embedding" or "embeddings" array field, and an object
// whose "embeddings"/"data" field holds a single-element array of arrays.
// Exhaustion of all strategies is ai.ErrUnrecognizedShape.
func ExtractVector(raw []byte) ([]float32, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrUnrecognizedShape, err)
	}

	for _, strategy := range extractStrategies {
		if vec := strategy(decoded); vec != nil {
			return vec, nil
		}
	}
	return nil, ai.ErrUnrecognizedShape
}

func directArray(decoded any) []float32 {
	arr, ok := decoded.([]any)
	if !ok {
		return nil
	}
	return toFloat32(arr)
}

func namedField(field string) extractStrategy {
	return func(decoded any) []float32 {
		obj, ok := decoded.(map[string]any)
		if !ok {
			return nil
		}
		arr, ok := obj[field].([]any)
		if !ok {
			return nil
		}
		return toFloat32(arr)
	}
}

// nestedSingleton handles batch-shaped responses that carry exactly one
// vector, e.g. {"embeddings": [[...]]}.
func nestedSingleton(field string) extractStrategy {
	return func(decoded any) []float32 {
		obj, ok := decoded.(map[string]any)
		if !ok {
			return nil
		}
		outer, ok := obj[field].([]any)
		if !ok || len(outer) != 1 {
			return nil
		}
		inner, ok := outer[0].([]any)
		if !ok {
			return nil
		}
		return toFloat32(inner)
	}
}

// toFloat32 converts a decoded JSON array to a vector. Returns nil when
// any element is not numeric, so the strategy falls through.
func toFloat32(arr []any) []float32 {
	if len(arr) == 0 {
		return nil
	}
	vec := make([]float32, len(arr))
	for i, v := range arr {
		f, ok := v.(float64)
		if !ok {
			return nil
		}
		vec[i] = float32(f)
	}
	return vec
}
