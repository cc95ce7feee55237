// Package chunker splits raw document text into overlapping semantic chunks.
// It walks a hierarchy of separators from coarse to fine (paragraph break,
// line break, sentence terminator, whitespace) and uses the coarsest one that
// splits the text, so chunk boundaries land on semantic seams whenever
// possible. Splitting is a pure function of the input and parameters, which
// keeps reprocessing idempotent.
package chunker

import "strings"

// DefaultTargetSize is the default chunk size in characters (~300 words).
const DefaultTargetSize = 1500

// DefaultOverlap is the default number of characters carried over from the
// tail of the previous chunk to preserve cross-boundary context.
const DefaultOverlap = 200

// separators is the fallback hierarchy, coarse to fine.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter chunks text with a target size and overlap.
type Splitter struct {
	targetSize int
	overlap    int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithTargetSize sets the target chunk size in characters.
func WithTargetSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.targetSize = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		targetSize: DefaultTargetSize,
		overlap:    DefaultOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Overlap beyond half the target would make chunks mostly repetition.
	if s.overlap > s.targetSize/2 {
		s.overlap = s.targetSize / 2
	}

	return s
}

// TargetSize returns the configured chunk size.
func (s *Splitter) TargetSize() int { return s.targetSize }

// Overlap returns the effective overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split chunks text into an ordered sequence of chunk strings.
// Empty or whitespace-only input yields zero chunks. A unit longer than the
// target size with no separator left to split on is emitted whole rather
// than cut mid-token.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if len(text) <= s.targetSize {
		return []string{text}
	}

	for _, sep := range separators {
		parts := strings.Split(text, sep)
		if len(parts) > 1 {
			return s.assemble(parts, sep)
		}
	}

	// No separator found at any level: unsplittable unit, emit whole.
	return []string{text}
}

// assemble greedily packs parts into chunks up to the target size, carrying
// the previous chunk's tail forward as overlap. Oversized parts are re-split
// recursively with the next finer separators.
func (s *Splitter) assemble(parts []string, sep string) []string {
	var chunks []string
	var current string
	var prevEnd string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if len(part) > s.targetSize {
			if current != "" {
				chunks = append(chunks, current)
				prevEnd = s.tail(current)
				current = ""
			}

			seed := part
			if prevEnd != "" {
				seed = prevEnd + sep + part
			}
			sub := s.Split(seed)
			chunks = append(chunks, sub...)
			if len(sub) > 0 {
				prevEnd = s.tail(sub[len(sub)-1])
			}
			continue
		}

		potential := part
		if current != "" {
			potential = current + sep + part
		}

		if len(potential) > s.targetSize {
			if current != "" {
				chunks = append(chunks, current)
				prevEnd = s.tail(current)
			}
			if prevEnd != "" {
				current = prevEnd + sep + part
			} else {
				current = part
			}
		} else {
			current = potential
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks
}

// tail returns the last overlap characters of chunk, or "" when the chunk is
// too short to donate a full overlap.
func (s *Splitter) tail(chunk string) string {
	if len(chunk) > s.overlap {
		return chunk[len(chunk)-s.overlap:]
	}
	return ""
}
