package ai

import "errors"

var (
	// ErrEmbeddingHostRequired is returned when no embedding host is configured.
	ErrEmbeddingHostRequired = errors.New("embedding host required")

	// ErrEmbeddingModelRequired is returned when no embedding model is configured.
	ErrEmbeddingModelRequired = errors.New("embedding model required")

	// ErrUnrecognizedShape is returned when an embedding service response
	// cannot be interpreted as a vector by any known extraction strategy.
	ErrUnrecognizedShape = errors.New("unrecognized embedding response shape")

	// ErrEmptyEmbedding is returned when the service answers with a vector
	// of zero length.
	ErrEmptyEmbedding = errors.New("service returned an empty embedding")

	// ErrProbeFailed is returned when the startup dimensionality probe
	// cannot obtain a vector from the service. This is fatal for a run.
	ErrProbeFailed = errors.New("embedding service probe failed")
)
