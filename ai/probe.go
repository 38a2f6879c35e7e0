package ai

import (
	"context"
	"fmt"
	"log/slog"
)

// probeSentinel is the throwaway text embedded once at startup to confirm
// the service is reachable and to learn its output dimensionality.
const probeSentinel = "test"

// ProbeDimensions embeds a sentinel string and returns the vector size the
// service actually produces. The result is authoritative for the run and
// overrides any configured size, guaranteeing collection creation and
// embedding calls stay dimensionally consistent. A probe failure means the
// service is unusable and the run must not start.
func ProbeDimensions(ctx context.Context, embedder Embedder) (int, error) {
	vec, err := embedder.EmbedText(ctx, probeSentinel)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: %w", ErrProbeFailed, ErrEmptyEmbedding)
	}

	slog.Info("embedding service probe succeeded", "dimensions", len(vec))
	return len(vec), nil
}
