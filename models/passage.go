package models

import "strings"

// Passage is a chunk of the reference corpus and where it came from.
type Passage struct {
	Content  string `json:"content"`
	SourceID string `json:"source_id"`
}

// RetrievalResult holds the ranked passages found for one query.
type RetrievalResult struct {
	Passages []Passage `json:"passages"`
}

// Context joins the passage contents with blank lines, in rank order.
func (r RetrievalResult) Context() string {
	parts := make([]string, 0, len(r.Passages))
	for _, p := range r.Passages {
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Sources lists distinct source identifiers in first-seen order.
func (r RetrievalResult) Sources() []string {
	seen := make(map[string]bool, len(r.Passages))
	sources := make([]string, 0, len(r.Passages))
	for _, p := range r.Passages {
		if seen[p.SourceID] {
			continue
		}
		seen[p.SourceID] = true
		sources = append(sources, p.SourceID)
	}
	return sources
}
