package embcache

import "errors"

var (
	// ErrModelRequired indicates a cache was opened without a model name.
	ErrModelRequired = errors.New("embedding model name is required")

	// ErrPathRequired indicates a persistent cache was opened without a path.
	ErrPathRequired = errors.New("embedding cache path is required")

	// ErrMalformedVector indicates a stored vector was not a whole number
	// of float32 frames.
	ErrMalformedVector = errors.New("malformed cached vector")
)
