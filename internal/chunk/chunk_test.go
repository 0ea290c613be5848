package chunk

import (
	"strings"
	"testing"
)

func TestNewSplitter_Validation(t *testing.T) {
	tests := []struct {
		name    string
		target  int
		overlap int
		wantErr bool
	}{
		{name: "valid", target: 100, overlap: 20},
		{name: "zero overlap", target: 100, overlap: 0},
		{name: "overlap equals target", target: 100, overlap: 100, wantErr: true},
		{name: "overlap above target", target: 50, overlap: 80, wantErr: true},
		{name: "zero target", target: 0, overlap: 0, wantErr: true},
		{name: "negative overlap", target: 100, overlap: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSplitter(tt.target, tt.overlap)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSplitter(%d, %d) error = %v, wantErr %v", tt.target, tt.overlap, err, tt.wantErr)
			}
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	s, err := NewSplitter(100, 20)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}

	for _, text := range []string{"", "   \n\n\t  "} {
		if chunks := s.Split("https://example.com/a", text); chunks != nil {
			t.Errorf("Split(%q) = %d chunks, want none", text, len(chunks))
		}
	}
}

func TestSplit_ShortText(t *testing.T) {
	s, _ := NewSplitter(100, 20)
	text := "A short page that fits in a single chunk."

	chunks := s.Split("https://example.com/a", text)
	if len(chunks) != 1 {
		t.Fatalf("Split() = %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text = %q, want %q", chunks[0].Text, text)
	}
	if chunks[0].OverlapBytes != 0 {
		t.Errorf("chunk overlap = %d bytes, want 0", chunks[0].OverlapBytes)
	}
	if chunks[0].ID != ChunkID("https://example.com/a", 0) {
		t.Errorf("chunk id = %q, want %q", chunks[0].ID, ChunkID("https://example.com/a", 0))
	}
}

// 200 words at target 100 with overlap 20 should land in 2-3 chunks, each
// within the target, with neighbors sharing the overlap.
func TestSplit_LongText(t *testing.T) {
	wordCount := 200
	parts := make([]string, wordCount)
	for i := range parts {
		parts[i] = "word"
	}
	text := strings.Join(parts, " ")

	s, _ := NewSplitter(100, 20)
	chunks := s.Split("https://example.com/a", text)

	if len(chunks) < 2 || len(chunks) > 3 {
		t.Fatalf("Split() = %d chunks, want 2-3", len(chunks))
	}
	for i, c := range chunks {
		if c.Ordinal != i {
			t.Errorf("chunk[%d].Ordinal = %d, want %d", i, c.Ordinal, i)
		}
		if got := TokenCount(c.Text); got > 100 {
			t.Errorf("chunk[%d] has %d tokens including overlap, want <= 100", i, got)
		}
	}
	for i := 1; i < len(chunks); i++ {
		prefix := chunks[i].Text[:chunks[i].OverlapBytes]
		if !strings.HasSuffix(chunks[i-1].Text, prefix) {
			t.Errorf("chunk[%d] overlap prefix is not a suffix of chunk[%d]", i, i-1)
		}
		if got := TokenCount(prefix); got != 20 {
			t.Errorf("chunk[%d] overlap = %d tokens, want 20", i, got)
		}
	}
}

// The full chunk text, overlap prefix included, must stay within the
// target size. Sizing only the body would push indexed chunks to
// target+overlap tokens.
func TestSplit_TargetIncludesOverlap(t *testing.T) {
	text := strings.Repeat("word ", 500)
	s, _ := NewSplitter(100, 20)

	chunks := s.Split("https://example.com/a", text)
	if len(chunks) < 2 {
		t.Fatalf("Split() = %d chunks, want >= 2", len(chunks))
	}
	for i, c := range chunks {
		if got := TokenCount(c.Text); got > 100 {
			t.Errorf("chunk[%d] = %d tokens, want <= 100", i, got)
		}
		if c.Tokens != TokenCount(c.Text) {
			t.Errorf("chunk[%d].Tokens = %d, want %d", i, c.Tokens, TokenCount(c.Text))
		}
	}
}

// Text without any whitespace separator must still be cut at token
// boundaries rather than passed through as one oversized chunk.
func TestSplit_NoWhitespaceText(t *testing.T) {
	text := strings.Repeat("v,", 500)
	s, _ := NewSplitter(100, 20)

	chunks := s.Split("https://example.com/dense", text)
	if len(chunks) < 2 {
		t.Fatalf("Split() = %d chunks, want >= 2", len(chunks))
	}
	var rebuilt strings.Builder
	for i, c := range chunks {
		if got := TokenCount(c.Text); got > 100 {
			t.Errorf("chunk[%d] = %d tokens, want <= 100", i, got)
		}
		rebuilt.WriteString(c.Body())
		if c.Ordinal != i {
			t.Errorf("chunk[%d].Ordinal = %d, want %d", i, c.Ordinal, i)
		}
	}
	if rebuilt.String() != text {
		t.Errorf("rebuilt text differs from source (len %d vs %d)", rebuilt.Len(), len(text))
	}
}

func TestSplit_Idempotent(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	s, _ := NewSplitter(50, 10)

	first := s.Split("https://example.com/b", text)
	second := s.Split("https://example.com/b", text)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("chunk[%d] id differs: %q vs %q", i, first[i].ID, second[i].ID)
		}
		if first[i].Text != second[i].Text {
			t.Errorf("chunk[%d] text differs", i)
		}
	}
}

// Concatenating chunk bodies (overlap stripped) must reproduce the source
// text exactly.
func TestSplit_Coverage(t *testing.T) {
	texts := []string{
		strings.Repeat("alpha beta gamma delta. ", 30),
		strings.Repeat("one para\n\nanother para with more text here\n", 20),
		"short",
		strings.Repeat("line\n", 100),
	}

	s, _ := NewSplitter(40, 8)
	for _, text := range texts {
		chunks := s.Split("https://example.com/c", text)
		var rebuilt strings.Builder
		for _, c := range chunks {
			rebuilt.WriteString(c.Body())
		}
		if rebuilt.String() != text {
			t.Errorf("rebuilt text differs from source (len %d vs %d)", rebuilt.Len(), len(text))
		}
	}
}

func TestSplit_ParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("alpha ", 30)
	para2 := strings.Repeat("beta ", 30)
	text := para1 + "\n\n" + para2

	s, _ := NewSplitter(40, 5)
	chunks := s.Split("https://example.com/d", text)
	if len(chunks) < 2 {
		t.Fatalf("Split() = %d chunks, want >= 2", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "alpha") {
		t.Errorf("chunk[0] should contain first paragraph, got %q", chunks[0].Text[:40])
	}
}

func TestChunkID_Deterministic(t *testing.T) {
	a := ChunkID("https://example.com/a", 3)
	b := ChunkID("https://example.com/a", 3)
	other := ChunkID("https://example.com/b", 3)

	if a != b {
		t.Errorf("same inputs produced different ids: %q vs %q", a, b)
	}
	if a == other {
		t.Errorf("different URLs produced the same id: %q", a)
	}
}

func TestTokenCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one two three four five", 5},
		{"line\nbreaks\ncount\ntoo", 4},
	}
	for _, tt := range tests {
		if got := TokenCount(tt.text); got != tt.want {
			t.Errorf("TokenCount(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
