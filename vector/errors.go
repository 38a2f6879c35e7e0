package vector

import "errors"

var (
	// ErrBaseURLRequired indicates a Client was constructed without a URL.
	ErrBaseURLRequired = errors.New("qdrant base URL is required")

	// ErrRequestFailed indicates Qdrant returned a non-success status.
	ErrRequestFailed = errors.New("qdrant request failed")

	// ErrVectorCountMismatch indicates a document arrived with a different
	// number of vectors than chunks.
	ErrVectorCountMismatch = errors.New("vector count does not match chunk count")
)
