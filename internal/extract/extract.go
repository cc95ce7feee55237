// Package extract validates raw text handed over by the upload layer before
// it enters the indexing pipeline. Extraction itself (PDF, DOCX parsing)
// happens outside the core; this package catches the cases where extraction
// technically succeeded but produced nothing usable.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

// MinChunkLength is the minimum trimmed length for a chunk to be worth
// embedding. Shorter fragments carry no retrievable signal.
const MinChunkLength = 5

// Validate returns the trimmed text or an extraction failure when the text
// is empty or whitespace-only (typically a scanned, image-only PDF).
func Validate(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%w: document appears to be an image-only PDF or contains no extractable text",
			domain.ErrExtractionFailed)
	}
	return trimmed, nil
}

// ContentHash returns the hex SHA-256 of the raw text, used as the
// duplicate-upload detection key.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// FilterChunks drops chunks below MinChunkLength after trimming.
// The surviving chunks keep their relative order.
func FilterChunks(chunks []string) []string {
	filtered := make([]string, 0, len(chunks))
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if len(c) >= MinChunkLength {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
