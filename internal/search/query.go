package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/quillpress/quill-server/internal/content"
)

// Result is one page of matching article ids, best match first.
type Result struct {
	IDs   []string
	Total int
}

// Search runs a free-text query over title, content, and tags.
// Ties in relevance are broken by newest first.
func (s *Index) Search(ctx context.Context, q string, limit, offset int) (*Result, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return &Result{IDs: []string{}}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQuery(q), limit, offset, false)
	req.SortBy([]string{"-_score", "-created_at"})

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return &Result{IDs: ids, Total: int(res.Total)}, nil
}

// buildQuery combines stemmed, fuzzy, and substring queries with OR.
func buildQuery(q string) query.Query {
	lower := strings.ToLower(q)
	var queries []query.Query

	titleMatch := bleve.NewMatchQuery(q)
	titleMatch.SetField("title")
	titleMatch.SetBoost(3.0)
	titleMatch.SetOperator(query.MatchQueryOperatorAnd)
	queries = append(queries, titleMatch)

	contentMatch := bleve.NewMatchQuery(q)
	contentMatch.SetField("content")
	contentMatch.SetOperator(query.MatchQueryOperatorAnd)
	queries = append(queries, contentMatch)

	if tag := content.NormalizeTag(q); tag != "" {
		tagTerm := bleve.NewTermQuery(tag)
		tagTerm.SetField("tags")
		tagTerm.SetBoost(2.0)
		queries = append(queries, tagTerm)
	}

	sub := escapeWildcard(lower)
	if sub == "" {
		return bleve.NewDisjunctionQuery(queries...)
	}

	titleSubstring := bleve.NewWildcardQuery("*" + sub + "*")
	titleSubstring.SetField("title_lc")
	titleSubstring.SetBoost(1.5)
	queries = append(queries, titleSubstring)

	// Single words also match inside longer content words and tolerate one typo.
	if !strings.ContainsAny(sub, " \t") && len(sub) >= 3 {
		wordSubstring := bleve.NewWildcardQuery("*" + sub + "*")
		wordSubstring.SetField("words")
		wordSubstring.SetBoost(0.5)
		queries = append(queries, wordSubstring)

		fuzzy := bleve.NewFuzzyQuery(sub)
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)
		queries = append(queries, fuzzy)
	}

	return bleve.NewDisjunctionQuery(queries...)
}

// escapeWildcard drops wildcard metacharacters from user input.
// Bleve quotes every other regexp character itself.
func escapeWildcard(s string) string {
	return wildcardStripper.Replace(s)
}

var wildcardStripper = strings.NewReplacer("*", "", "?", "")
