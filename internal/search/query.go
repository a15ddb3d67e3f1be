package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a library search.
type Params struct {
	Query  string // User's search query
	Format string // Filter by document format (empty = all)

	Limit  int
	Offset int
}

// DefaultParams returns sensible defaults.
func DefaultParams() Params {
	return Params{Limit: 20}
}

// Result is a page of library search results.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is a single matched book.
type Hit struct {
	BookID     int64             `json:"book_id"`
	Score      float64           `json:"score"`
	Title      string            `json:"title"`
	Filename   string            `json:"filename"`
	Format     string            `json:"format"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Search runs a query against the library index. An empty query matches
// every book, ordered by import recency.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultParams().Limit
	}

	searchQuery := buildSearchQuery(params)
	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)

	if params.Query == "" {
		searchRequest.SortBy([]string{"-created_at"})
	} else {
		searchRequest.SortBy([]string{"-_score"})
	}

	searchRequest.Highlight = bleve.NewHighlight()
	searchRequest.Highlight.AddField("title")

	searchRequest.Fields = []string{"title", "filename", "format"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		bookID, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			// Should never happen: every doc ID is written by us.
			continue
		}
		h := Hit{
			BookID: bookID,
			Score:  hit.Score,
		}
		if t, ok := hit.Fields["title"].(string); ok {
			h.Title = t
		}
		if f, ok := hit.Fields["filename"].(string); ok {
			h.Filename = f
		}
		if f, ok := hit.Fields["format"].(string); ok {
			h.Format = f
		}
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params Params) query.Query {
	var queries []query.Query

	if params.Query != "" {
		textQueries := []query.Query{}

		// Title match with highest boost
		titleMatch := bleve.NewMatchQuery(params.Query)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)
		textQueries = append(textQueries, titleMatch)

		// Filename match for people who search the way they downloaded
		filenameMatch := bleve.NewMatchQuery(params.Query)
		filenameMatch.SetField("filename")
		textQueries = append(textQueries, filenameMatch)

		// Fuzzy matching for typo tolerance on the title
		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("title")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for incremental typing (minimum 2 chars)
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("title")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.Format != "" {
		formatQuery := bleve.NewTermQuery(params.Format)
		formatQuery.SetField("format")
		queries = append(queries, formatQuery)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}
