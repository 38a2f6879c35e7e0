// Package ai defines the embedding abstraction used by the ingestion
// pipeline and the startup dimensionality probe. Concrete clients live in
// the ollama and openai subpackages; mock provides a deterministic test
// double.
package ai
