package ingest

import "errors"

var (
	// ErrSourceRequired indicates a pipeline was built without a space source.
	ErrSourceRequired = errors.New("space source is required")

	// ErrEmbedderRequired indicates a pipeline was built without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrUpserterRequired indicates a pipeline was built without an upserter.
	ErrUpserterRequired = errors.New("upserter is required")

	// ErrRegistrarRequired indicates a pipeline was built without a registrar.
	ErrRegistrarRequired = errors.New("registrar is required")

	// ErrCheckpointsRequired indicates a pipeline was built without a
	// checkpoint store.
	ErrCheckpointsRequired = errors.New("checkpoint store is required")
)
