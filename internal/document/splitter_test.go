package document

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domenicocinque/web-rag/internal/domain"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestNewSplitter_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SplitterConfig
		wantErr bool
	}{
		{"defaults unit to word", SplitterConfig{Length: 10}, false},
		{"zero length", SplitterConfig{By: SplitByWord, Length: 0}, true},
		{"overlap equals length", SplitterConfig{By: SplitByWord, Length: 5, Overlap: 5}, true},
		{"negative overlap", SplitterConfig{By: SplitByWord, Length: 5, Overlap: -1}, true},
		{"unknown unit", SplitterConfig{By: "page", Length: 5}, true},
		{"sentence", SplitterConfig{By: SplitBySentence, Length: 3, Overlap: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSplitter(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWindows_ChunkCount(t *testing.T) {
	tests := []struct {
		units, length, overlap int
		expected               int
	}{
		{0, 100, 0, 0},
		{1, 100, 0, 1},
		{100, 100, 0, 1},
		{250, 100, 0, 3},
		{100, 100, 20, 1},
		{180, 100, 20, 2},
		{181, 100, 20, 3},
		{10, 3, 2, 8},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d/%d", tt.units, tt.length, tt.overlap), func(t *testing.T) {
			s, err := NewSplitter(SplitterConfig{By: SplitByWord, Length: tt.length, Overlap: tt.overlap})
			require.NoError(t, err)

			text := ""
			if tt.units > 0 {
				text = words(tt.units)
			}

			assert.Len(t, s.Windows(text), tt.expected)
			assert.Equal(t, tt.expected, ExpectedChunks(tt.units, tt.length, tt.overlap))
		})
	}
}

func TestWindows_ReconstructsText(t *testing.T) {
	text := "  Paris is  the capital\nof France. It is on the Seine.\n"

	s, err := NewSplitter(SplitterConfig{By: SplitByWord, Length: 3})
	require.NoError(t, err)

	assert.Equal(t, text, strings.Join(s.Windows(text), ""))
}

func TestWindows_Overlap(t *testing.T) {
	s, err := NewSplitter(SplitterConfig{By: SplitByWord, Length: 4, Overlap: 2})
	require.NoError(t, err)

	windows := s.Windows("a b c d e f")

	assert.Equal(t, []string{"a b c d ", "c d e f"}, windows)
}

func TestWindows_Sentences(t *testing.T) {
	s, err := NewSplitter(SplitterConfig{By: SplitBySentence, Length: 2})
	require.NoError(t, err)

	text := "Paris is the capital. Is it big? Yes!  It is v1.2 sized. Tail without stop"
	windows := s.Windows(text)

	assert.Equal(t, []string{
		"Paris is the capital. Is it big? ",
		"Yes!  It is v1.2 sized. ",
		"Tail without stop",
	}, windows)
	assert.Equal(t, text, strings.Join(windows, ""))
}

func TestWindows_Passages(t *testing.T) {
	s, err := NewSplitter(SplitterConfig{By: SplitByPassage, Length: 1})
	require.NoError(t, err)

	windows := s.Windows("first line\nsecond line\nthird")

	assert.Equal(t, []string{"first line\n", "second line\n", "third"}, windows)
}

func TestWindows_WhitespaceOnly(t *testing.T) {
	for _, by := range []string{SplitByWord, SplitBySentence, SplitByPassage} {
		s, err := NewSplitter(SplitterConfig{By: by, Length: 5})
		require.NoError(t, err)
		assert.Empty(t, s.Windows(" \n\t "), by)
	}
}

func TestSplitDocuments(t *testing.T) {
	s, err := NewSplitter(SplitterConfig{By: SplitByWord, Length: 2})
	require.NoError(t, err)

	chunks := s.SplitDocuments([]domain.Document{
		{URL: "https://a.example", Content: "one two three"},
		{URL: "https://b.example", Content: "four"},
	})

	require.Len(t, chunks, 3)
	assert.Equal(t, "https://a.example", chunks[0].SourceURL)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "one two ", chunks[0].Content)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, "three", chunks[1].Content)
	assert.Equal(t, "https://b.example", chunks[2].SourceURL)
	assert.Equal(t, 0, chunks[2].Index)

	ids := map[string]bool{}
	for _, c := range chunks {
		assert.NotEmpty(t, c.ID)
		assert.False(t, c.HasEmbedding())
		ids[c.ID] = true
	}
	assert.Len(t, ids, 3)
}
