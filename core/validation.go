package core

import "fmt"

// ValidateSpace validates a Space according to domain rules.
//
// Validation rules:
//   - Key must not be empty
//
// NOT validated:
//   - Pages may be empty (a space with no sampled pages is legal)
//   - TotalPages may exceed len(Pages) (sampling is partial by design)
func ValidateSpace(space *Space) error {
	if space == nil {
		return fmt.Errorf("%w: space is nil", ErrInvalidSpace)
	}
	if space.Key == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSpace, ErrEmptySpaceKey)
	}
	return nil
}

// ValidatePage validates a Page according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//
// NOT validated:
//   - Body may be empty; empty bodies are skipped at ingest time, not
//     rejected here
func ValidatePage(page *Page) error {
	if page == nil {
		return fmt.Errorf("%w: page is nil", ErrInvalidPage)
	}
	if page.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPage, ErrEmptyPageID)
	}
	return nil
}

// ValidateChunking validates sliding-window parameters. An overlap greater
// than or equal to the window size would never advance and must be rejected
// at startup.
func ValidateChunking(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size %d", ErrInvalidChunking, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunking, size, overlap)
	}
	return nil
}
