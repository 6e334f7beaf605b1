package service

import (
	"time"

	"github.com/domenicocinque/web-rag/internal/domain"
)

// StageReport records what one stage produced and how long it took.
type StageReport struct {
	Stage      domain.Stage `json:"stage"`
	Count      int          `json:"count"`
	DurationMS int64        `json:"duration_ms"`
}

// SourceReport is one retrieved chunk that went into the answer prompt.
type SourceReport struct {
	URL        string  `json:"url"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID          string         `json:"run_id"`
	Query          string         `json:"query"`
	RewrittenQuery string         `json:"rewritten_query"`
	URLs           []string       `json:"urls"`
	Fetched        int            `json:"fetched"`
	Documents      int            `json:"documents"`
	Chunks         int            `json:"chunks"`
	Stages         []StageReport  `json:"stages"`
	Sources        []SourceReport `json:"sources"`
	Answer         string         `json:"answer"`
	StartedAt      time.Time      `json:"started_at"`
	DurationMS     int64          `json:"duration_ms"`
}

func newRunReport(runID, query string, startedAt time.Time) *RunReport {
	return &RunReport{
		RunID:     runID,
		Query:     query,
		URLs:      []string{},
		Stages:    make([]StageReport, 0, len(domain.Stages)),
		Sources:   []SourceReport{},
		StartedAt: startedAt,
	}
}

func sourcesOf(chunks []domain.ScoredChunk) []SourceReport {
	sources := make([]SourceReport, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, SourceReport{URL: c.SourceURL, ChunkIndex: c.Index, Score: c.Score})
	}
	return sources
}

// dedupeURLs keeps the first occurrence of each URL.
func dedupeURLs(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
