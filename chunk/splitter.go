// Package chunk provides fixed-size sliding-window text chunking for
// embedding. Windows are purely positional; sentence and paragraph
// boundaries are not respected.
package chunk

import (
	"github.com/quarry-ai/quarry/core"
)

// DefaultSize is the default number of characters per chunk.
const DefaultSize = 500

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 50

// Splitter splits document text into overlapping fixed-size chunks.
type Splitter struct {
	size    int
	overlap int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSize sets the chunk size in characters.
func WithSize(size int) Option {
	return func(s *Splitter) {
		s.size = size
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		s.overlap = overlap
	}
}

// New creates a Splitter. Returns core.ErrInvalidChunking when the
// parameters could never advance the window.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := core.ValidateChunking(s.size, s.overlap); err != nil {
		return nil, err
	}
	return s, nil
}

// Size returns the configured window size.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the configured window overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split chunks text for the given document id. Window i starts at
// i*(size-overlap) and covers [start, start+size) clamped to the text
// length. Empty text yields no chunks. Offsets are rune-based so multi-byte
// content never splits mid-character.
func (s *Splitter) Split(documentID, text string) []core.Chunk {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := s.size - s.overlap
	chunks := make([]core.Chunk, 0, len(runes)/step+1)

	for start, idx := 0, 0; start < len(runes); start, idx = start+step, idx+1 {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		body := string(runes[start:end])
		chunks = append(chunks, core.Chunk{
			DocumentID: documentID,
			Index:      idx,
			Start:      start,
			Text:       body,
			Hash:       core.HashContent(body),
		})
	}

	return chunks
}
