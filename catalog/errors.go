package catalog

import "errors"

var (
	// ErrDSNRequired indicates a registrar was constructed without a DSN.
	ErrDSNRequired = errors.New("catalog database DSN is required")

	// ErrKnowledgeIDRequired indicates a registrar was constructed without
	// a target knowledge base id.
	ErrKnowledgeIDRequired = errors.New("knowledge base id is required")

	// ErrKnowledgeNotFound indicates the target knowledge base row is
	// missing from the catalog.
	ErrKnowledgeNotFound = errors.New("knowledge base not found")
)
