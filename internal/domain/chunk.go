package domain

// RawContent is the result of fetching one candidate URL.
// OK is false when the fetch failed; Err then holds the reason.
type RawContent struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
	OK          bool
	Err         error
}

// Document is normalized plain text extracted from a fetched page.
type Document struct {
	URL     string
	Title   string
	Content string
}

// Chunk is a contiguous window of a document's text.
type Chunk struct {
	ID        string
	Content   string
	SourceURL string
	Index     int
	Embedding []float32
}

// HasEmbedding reports whether a vector has been attached.
func (c Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// ScoredChunk is a retrieved chunk with its cosine similarity to the query.
type ScoredChunk struct {
	Chunk
	Score float64
}
