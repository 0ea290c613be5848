// Package chunk splits source text into overlapping, size-bounded
// segments with identifiers that are stable across re-runs.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/clipperhouse/uax29/v2/words"
)

// ErrBadConfig is returned by NewSplitter for invalid chunking parameters.
// Overlap must stay strictly below the target size or chunking cannot
// make progress.
var ErrBadConfig = errors.New("chunk: overlap must be smaller than target size")

// Chunk is a contiguous span of a source's text. Text carries an overlap
// prefix shared with the previous chunk; OverlapBytes is the byte length
// of that prefix so the original body can be recovered.
type Chunk struct {
	ID           string
	SourceURL    string
	Ordinal      int
	Text         string
	OverlapBytes int
	Tokens       int
}

// Body returns the chunk text without the overlap prefix.
func (c Chunk) Body() string {
	return c.Text[c.OverlapBytes:]
}

// Splitter produces chunks of roughly TargetSize tokens with an Overlap
// token prefix shared between neighbors. A Splitter is immutable and safe
// for concurrent use.
type Splitter struct {
	targetSize int
	overlap    int
}

// separators, coarsest first: paragraph break, line break, word boundary.
// Finer separators are only consulted for pieces still above target size.
// Text no separator can break is cut at token boundaries as a last
// resort.
var separators = []string{"\n\n", "\n", " "}

// NewSplitter validates the chunking parameters. Invalid parameters are a
// configuration error, not a per-request failure.
func NewSplitter(targetSize, overlap int) (*Splitter, error) {
	if targetSize <= 0 || overlap < 0 || overlap >= targetSize {
		return nil, fmt.Errorf("%w (target=%d overlap=%d)", ErrBadConfig, targetSize, overlap)
	}
	return &Splitter{targetSize: targetSize, overlap: overlap}, nil
}

// Split chunks text for the given source URL. It is a pure function of
// its inputs: identical text and parameters yield byte-identical chunks
// and IDs, so re-ingesting a source overwrites rather than duplicates.
// Empty or whitespace-only text yields no chunks.
func (s *Splitter) Split(sourceURL, text string) []Chunk {
	if TokenCount(text) == 0 {
		return nil
	}

	// The overlap prefix counts against the target, so bodies are sized
	// to targetSize-overlap and the full chunk text stays within
	// targetSize tokens.
	bodyTarget := s.targetSize - s.overlap
	bodies := merge(splitRecursive(text, separators, bodyTarget), bodyTarget)

	chunks := make([]Chunk, 0, len(bodies))
	for i, body := range bodies {
		prefix := ""
		if i > 0 && s.overlap > 0 {
			prefix = lastTokens(bodies[i-1], s.overlap)
		}
		chunks = append(chunks, Chunk{
			ID:           ChunkID(sourceURL, i),
			SourceURL:    sourceURL,
			Ordinal:      i,
			Text:         prefix + body,
			OverlapBytes: len(prefix),
			Tokens:       TokenCount(prefix + body),
		})
	}
	return chunks
}

// ChunkID derives the stable identifier for the ordinal-th chunk of a
// source. The URL is hashed so IDs stay short and key-safe for any index
// backend.
func ChunkID(sourceURL string, ordinal int) string {
	return fmt.Sprintf("%s-%d", SourceKey(sourceURL), ordinal)
}

// SourceKey returns a short deterministic key for a source URL.
func SourceKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])[:12]
}

// TokenCount measures text in Unicode word segments, skipping
// whitespace-only segments. The unit is consistent across calls, which is
// all chunk sizing requires.
func TokenCount(text string) int {
	n := 0
	tokens := words.FromString(text)
	for tokens.Next() {
		if strings.TrimSpace(tokens.Value()) != "" {
			n++
		}
	}
	return n
}

// splitRecursive breaks text into pieces of at most target tokens using
// the coarsest separator that helps. Separators stay attached to the
// preceding piece so concatenating all pieces reproduces text exactly.
func splitRecursive(text string, seps []string, target int) []string {
	if TokenCount(text) <= target {
		return []string{text}
	}
	if len(seps) == 0 {
		return splitTokens(text, target)
	}

	parts := strings.SplitAfter(text, seps[0])
	if len(parts) == 1 {
		return splitRecursive(text, seps[1:], target)
	}

	var pieces []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if TokenCount(part) > target {
			pieces = append(pieces, splitRecursive(part, seps[1:], target)...)
		} else {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

// splitTokens cuts text at word-segment boundaries every target tokens.
// Handles dense text without whitespace separators, such as comma-joined
// data or minified content, that would otherwise stay one oversized
// piece.
func splitTokens(text string, target int) []string {
	var (
		pieces []string
		start  int
		offset int
		count  int
	)
	tokens := words.FromString(text)
	for tokens.Next() {
		v := tokens.Value()
		if strings.TrimSpace(v) != "" {
			if count == target {
				pieces = append(pieces, text[start:offset])
				start = offset
				count = 0
			}
			count++
		}
		offset += len(v)
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}

// merge greedily joins adjacent pieces while the combined size stays
// within target, so splits respect the coarsest boundary possible without
// producing a run of tiny chunks.
func merge(pieces []string, target int) []string {
	var (
		out     []string
		current strings.Builder
		tokens  int
	)
	for _, piece := range pieces {
		n := TokenCount(piece)
		if current.Len() > 0 && tokens+n > target {
			out = append(out, current.String())
			current.Reset()
			tokens = 0
		}
		current.WriteString(piece)
		tokens += n
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// lastTokens returns the suffix of text starting at the nth-from-last
// token boundary. Trailing separator bytes stay with the suffix.
func lastTokens(text string, n int) string {
	var starts []int
	offset := 0
	tokens := words.FromString(text)
	for tokens.Next() {
		v := tokens.Value()
		if strings.TrimSpace(v) != "" {
			starts = append(starts, offset)
		}
		offset += len(v)
	}
	if len(starts) <= n {
		return text
	}
	return text[starts[len(starts)-n]:]
}
