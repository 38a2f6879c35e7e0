// Copyright 2026 Quarry Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vector talks to Qdrant over its REST API and fans each
// document's chunk vectors out to the two OpenWebUI collections.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// Client is a thin Qdrant REST client. Only the handful of endpoints the
// ingestion path needs are implemented.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the api-key header on every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Qdrant client for baseURL (e.g. http://localhost:6333).
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     slog.Default().With("component", "qdrant"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Point is one vector plus payload destined for a collection.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %d: %s",
			ErrRequestFailed, method, path, resp.StatusCode, truncate(string(raw), 200))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Collections lists the names of all collections.
func (c *Client) Collections(ctx context.Context) ([]string, error) {
	var out struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Result.Collections))
	for _, col := range out.Result.Collections {
		names = append(names, col.Name)
	}
	return names, nil
}

// CollectionSize returns the configured vector size of a collection.
func (c *Client) CollectionSize(ctx context.Context, name string) (int, error) {
	var out struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections/"+name, nil, &out); err != nil {
		return 0, err
	}
	return out.Result.Config.Params.Vectors.Size, nil
}

// CreateCollection creates a cosine-distance collection with the given
// vector size.
func (c *Client) CreateCollection(ctx context.Context, name string, size int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     size,
			"distance": "Cosine",
		},
	}
	return c.do(ctx, http.MethodPut, "/collections/"+name, body, nil)
}

// EnsureCollection creates the collection when absent. An existing
// collection with a different vector size is left alone with a warning;
// upserts into it will fail loudly rather than silently corrupt it.
func (c *Client) EnsureCollection(ctx context.Context, name string, size int) error {
	names, err := c.Collections(ctx)
	if err != nil {
		return err
	}
	for _, existing := range names {
		if existing != name {
			continue
		}
		current, err := c.CollectionSize(ctx, name)
		if err != nil {
			return err
		}
		if current != size {
			c.logger.Warn("collection exists with different vector size",
				"collection", name, "have", current, "want", size)
		}
		return nil
	}

	c.logger.Info("creating collection", "collection", name, "size", size)
	return c.CreateCollection(ctx, name, size)
}

// Upsert writes points into a collection, waiting for the write to be
// applied before returning.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	return c.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil)
}

// Count returns the exact number of points in a collection.
func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	var out struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	body := map[string]any{"exact": true}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/count", body, &out); err != nil {
		return 0, err
	}
	return out.Result.Count, nil
}
