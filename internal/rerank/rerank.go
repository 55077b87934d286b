// Package rerank orders retrieval candidates with a cross scorer.
package rerank

import (
	"context"
	"fmt"
	"sort"

	"ragcore/internal/domain"
)

// Rank scores every hit against query and returns the hits in descending
// rerank score. Hits with equal scores keep their input order. A nil
// reranker keeps the retrieval score and order.
func Rank(ctx context.Context, r domain.Reranker, query string, hits []domain.SearchHit) ([]domain.RankedHit, error) {
	ranked := make([]domain.RankedHit, len(hits))
	for i, h := range hits {
		ranked[i] = domain.RankedHit{SearchHit: h, RerankScore: h.Score}
	}
	if r == nil || len(hits) == 0 {
		return ranked, nil
	}
	passages := make([]string, len(hits))
	for i, h := range hits {
		passages[i] = h.Point.Payload.Text
	}
	scores, err := r.Score(ctx, query, passages)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(hits) {
		return nil, fmt.Errorf("%w: reranker %s returned %d scores for %d passages",
			domain.ErrModelUnavailable, r.Name(), len(scores), len(hits))
	}
	for i := range ranked {
		ranked[i].RerankScore = scores[i]
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].RerankScore > ranked[j].RerankScore })
	return ranked, nil
}
