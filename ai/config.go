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


package ai

import (
	"strings"
	"time"
)

// Config holds configuration for embedding service clients.
type Config struct {
	// Host is the base URL for the embedding service API.
	// Example: "http://localhost:11434" for a local Ollama server,
	// "http://localhost:11434/v1" for its OpenAI-compatible surface.
	Host string

	// Model is the model identifier to use for text embeddings.
	// Example: "nomic-embed-text:v1.5", "text-embedding-3-small"
	Model string

	// Timeout bounds each embedding request. Default: 60s.
	Timeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the embedding service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the embedding model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// DefaultConfig returns a Config with defaults for a local Ollama service.
func DefaultConfig() *Config {
	return &Config{
		Host:    "http://localhost:11434",
		Model:   "nomic-embed-text:v1.5",
		Timeout: 60 * time.Second,
	}
}

// NewConfig creates a Config with default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrEmbeddingHostRequired
	}
	if strings.TrimSpace(c.Model) == "" {
		return ErrEmbeddingModelRequired
	}
	return nil
}
