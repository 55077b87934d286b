// Package fusion merges retrieval results and keeps one hit per document.
package fusion

import "ragcore/internal/domain"

// DedupByDocument walks ranked in order and keeps the first hit of each
// doc_id, stopping once topK documents are kept. topK <= 0 keeps all.
func DedupByDocument(ranked []domain.RankedHit, topK int) []domain.RankedHit {
	seen := make(map[string]struct{})
	var out []domain.RankedHit
	for _, h := range ranked {
		if topK > 0 && len(out) >= topK {
			break
		}
		id := h.Point.Payload.DocID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, h)
	}
	return out
}

// FuseIDs concatenates vector then keyword ids, dropping later duplicates.
func FuseIDs(vector, keyword []string) []string {
	seen := make(map[string]struct{}, len(vector)+len(keyword))
	out := make([]string, 0, len(vector)+len(keyword))
	for _, list := range [][]string{vector, keyword} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// FuseHits is the hit-level form of FuseIDs: vector hits keep their order,
// keyword hits follow, and each doc_id appears once. At most topK hits are
// returned when topK > 0.
func FuseHits(vector []domain.SearchHit, keyword []domain.RankedHit, topK int) []domain.RankedHit {
	all := make([]domain.RankedHit, 0, len(vector)+len(keyword))
	for _, h := range vector {
		all = append(all, domain.RankedHit{SearchHit: h, RerankScore: h.Score})
	}
	all = append(all, keyword...)
	return DedupByDocument(all, topK)
}
