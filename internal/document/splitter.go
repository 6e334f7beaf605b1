package document

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/domenicocinque/web-rag/internal/domain"
)

// Split units
const (
	SplitByWord     = "word"
	SplitBySentence = "sentence"
	SplitByPassage  = "passage"
)

const (
	DefaultSplitLength  = 100
	DefaultSplitOverlap = 0
)

var wordPattern = regexp.MustCompile(`\S+\s*`)

type SplitterConfig struct {
	By      string
	Length  int
	Overlap int
}

// Splitter cuts text into windows of Length units, each sharing Overlap
// units with the previous window. Units keep their trailing whitespace, so
// chunks concatenated without the overlap reproduce the input exactly.
type Splitter struct {
	cfg   SplitterConfig
	newID func() string
}

func NewSplitter(cfg SplitterConfig) (*Splitter, error) {
	if cfg.By == "" {
		cfg.By = SplitByWord
	}
	switch cfg.By {
	case SplitByWord, SplitBySentence, SplitByPassage:
	default:
		return nil, fmt.Errorf("unknown split unit %q", cfg.By)
	}
	if cfg.Length <= 0 {
		return nil, fmt.Errorf("split length must be positive, got %d", cfg.Length)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Length {
		return nil, fmt.Errorf("split overlap must be in [0, %d), got %d", cfg.Length, cfg.Overlap)
	}
	return &Splitter{cfg: cfg, newID: uuid.NewString}, nil
}

// Split returns the chunks of one document in order.
func (s *Splitter) Split(doc domain.Document) []domain.Chunk {
	windows := s.Windows(doc.Content)
	chunks := make([]domain.Chunk, 0, len(windows))
	for i, content := range windows {
		chunks = append(chunks, domain.Chunk{
			ID:        s.newID(),
			Content:   content,
			SourceURL: doc.URL,
			Index:     i,
		})
	}
	return chunks
}

// SplitDocuments splits each document, keeping document order.
func (s *Splitter) SplitDocuments(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, s.Split(doc)...)
	}
	return chunks
}

// Windows returns the text of each chunk for text.
func (s *Splitter) Windows(text string) []string {
	units := splitUnits(text, s.cfg.By)
	if len(units) == 0 {
		return nil
	}

	step := s.cfg.Length - s.cfg.Overlap
	windows := make([]string, 0, ExpectedChunks(len(units), s.cfg.Length, s.cfg.Overlap))
	for start := 0; ; start += step {
		end := min(start+s.cfg.Length, len(units))
		windows = append(windows, strings.Join(units[start:end], ""))
		if end == len(units) {
			break
		}
	}
	return windows
}

// ExpectedChunks is the number of windows produced for units units:
// 0 when there are none, otherwise ceil((units - overlap) / (length - overlap)).
func ExpectedChunks(units, length, overlap int) int {
	if units <= 0 {
		return 0
	}
	if units <= length {
		return 1
	}
	step := length - overlap
	return (units - overlap + step - 1) / step
}

func splitUnits(text, by string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	switch by {
	case SplitBySentence:
		return splitAfter(text, sentenceEnd)
	case SplitByPassage:
		return splitAfter(text, passageEnd)
	default:
		return wordUnits(text)
	}
}

func wordUnits(text string) []string {
	locs := wordPattern.FindAllStringIndex(text, -1)
	units := make([]string, len(locs))
	for i, loc := range locs {
		start := loc[0]
		if i == 0 {
			start = 0
		}
		units[i] = text[start:loc[1]]
	}
	return units
}

// splitAfter cuts text after every position where end reports a unit
// boundary; the whitespace following the boundary stays with the unit.
func splitAfter(text string, end func(text string, i int) (int, bool)) []string {
	var units []string
	start := 0
	for i := 0; i < len(text); {
		next, ok := end(text, i)
		if !ok {
			i = next
			continue
		}
		for next < len(text) && isSpace(text[next]) {
			next++
		}
		units = append(units, text[start:next])
		start, i = next, next
	}
	if start < len(text) {
		if strings.TrimSpace(text[start:]) == "" && len(units) > 0 {
			units[len(units)-1] += text[start:]
		} else {
			units = append(units, text[start:])
		}
	}
	return units
}

// sentenceEnd matches a run of terminal punctuation followed by whitespace or end of text.
func sentenceEnd(text string, i int) (int, bool) {
	if !isTerminal(text[i]) {
		return i + 1, false
	}
	j := i
	for j < len(text) && isTerminal(text[j]) {
		j++
	}
	return j, j == len(text) || isSpace(text[j])
}

// passageEnd matches a line break.
func passageEnd(text string, i int) (int, bool) {
	return i + 1, text[i] == '\n'
}

func isTerminal(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r' || b == '\f' || b == '\v'
}
