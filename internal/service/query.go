// Package service wires the pipeline stages into ingestion and query flows.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ragcore/internal/assemble"
	"ragcore/internal/domain"
	"ragcore/internal/fusion"
	"ragcore/internal/keyword"
	"ragcore/internal/logger"
	"ragcore/internal/rerank"
)

const (
	DefaultTopK           = 5
	DefaultScoreThreshold = 0.2
	DefaultOverfetch      = 2
	defaultSnippetWidth   = 500
)

// PipelineOptions tunes a Pipeline.
type PipelineOptions struct {
	// Overfetch multiplies top_k to size the candidate pool handed to the
	// reranker.
	Overfetch int
	// KeywordSearch enables literal search over the document store.
	KeywordSearch bool
	// IncludeKeywordHits puts keyword matches into the rerank pool instead
	// of appending them after the reranked vector hits.
	IncludeKeywordHits bool
	StageTimeout       time.Duration
	SnippetWidth       int
}

// QueryOptions are per-query parameters.
type QueryOptions struct {
	TopK           int
	ScoreThreshold float64
}

func DefaultQueryOptions() QueryOptions {
	return QueryOptions{TopK: DefaultTopK, ScoreThreshold: DefaultScoreThreshold}
}

// Pipeline answers queries. It never writes to the index. Reranker,
// Generator and DocumentStore may be nil.
type Pipeline struct {
	embedder  domain.Embedder
	index     domain.VectorIndex
	reranker  domain.Reranker
	generator domain.Generator
	docs      domain.DocumentStore
	opts      PipelineOptions
}

func NewPipeline(emb domain.Embedder, idx domain.VectorIndex, rr domain.Reranker, gen domain.Generator, docs domain.DocumentStore, opts PipelineOptions) *Pipeline {
	if opts.Overfetch <= 0 {
		opts.Overfetch = DefaultOverfetch
	}
	if opts.SnippetWidth <= 0 {
		opts.SnippetWidth = defaultSnippetWidth
	}
	return &Pipeline{embedder: emb, index: idx, reranker: rr, generator: gen, docs: docs, opts: opts}
}

func (p *Pipeline) stage(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.StageTimeout > 0 {
		return context.WithTimeout(ctx, p.opts.StageTimeout)
	}
	return context.WithCancel(ctx)
}

// degradable reports vector-stage failures that keyword search can stand in
// for.
func degradable(err error) bool {
	return errors.Is(err, domain.ErrModelUnavailable) ||
		errors.Is(err, domain.ErrIndexUnavailable) ||
		errors.Is(err, domain.ErrEmbeddingFailed) ||
		errors.Is(err, domain.ErrCollectionMissing)
}

// Query retrieves, reranks and assembles context for query and, when a
// generator is configured, generates an answer. An empty retrieval is the
// StatusNoResults outcome, not an error. If generation fails the answer is
// returned with its context blocks together with ErrGenerationUnavailable.
func (p *Pipeline) Query(ctx context.Context, query string, opts QueryOptions) (*domain.Answer, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	logger.Section("query")
	logger.Debug("query=%q top_k=%d threshold=%.2f", q, opts.TopK, opts.ScoreThreshold)
	answer := &domain.Answer{Query: q}

	vectorHits, err := p.vectorSearch(ctx, q, opts)
	if err != nil {
		if !p.opts.KeywordSearch || p.docs == nil || !degradable(err) {
			return nil, err
		}
		logger.Warn("vector search unavailable, using keyword search only: %v", err)
		answer.Fallback = err
	}
	logger.Debug("vector hits: %d", len(vectorHits))

	keywordHits, tables, err := p.keywordSearch(ctx, q)
	if err != nil {
		if answer.Fallback != nil {
			return nil, fmt.Errorf("keyword search after vector failure: %w", err)
		}
		logger.Warn("keyword search failed: %v", err)
	}
	answer.Tables = tables
	logger.Debug("keyword hits: %d, tables: %d", len(keywordHits), len(tables))

	if err := ctx.Err(); err != nil {
		return nil, domain.FromContext(err)
	}
	ranked, err := p.rank(ctx, q, vectorHits, keywordHits)
	if err != nil {
		return nil, err
	}
	final := fusion.DedupByDocument(ranked, opts.TopK)
	answer.Blocks = assemble.Assemble(final)
	for _, h := range final {
		logger.Debug("  %.3f %s", h.RerankScore, h.Point.Payload.Name)
	}

	if len(answer.Blocks) == 0 && len(answer.Tables) == 0 {
		answer.Status = domain.StatusNoResults
		return answer, nil
	}
	answer.Status = domain.StatusAnswered
	if p.generator == nil || len(answer.Blocks) == 0 {
		return answer, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.FromContext(err)
	}
	prompt := assemble.BuildPrompt(q, answer.Blocks)
	gctx, cancel := p.stage(ctx)
	text, err := p.generator.Generate(gctx, prompt)
	cancel()
	if err != nil {
		err = domain.FromContext(err)
		if !errors.Is(err, domain.ErrGenerationUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
		}
		return answer, err
	}
	answer.Text = text
	return answer, nil
}

func (p *Pipeline) vectorSearch(ctx context.Context, q string, opts QueryOptions) ([]domain.SearchHit, error) {
	sctx, cancel := p.stage(ctx)
	defer cancel()
	vec, err := domain.EmbedOne(sctx, p.embedder, q)
	if err != nil {
		return nil, domain.FromContext(err)
	}
	hits, err := p.index.Search(sctx, vec, domain.SearchOptions{
		TopK:     opts.TopK * p.opts.Overfetch,
		MinScore: domain.Threshold(opts.ScoreThreshold),
	})
	if err != nil {
		return nil, domain.FromContext(err)
	}
	return hits, nil
}

// keywordSearch returns one hit per matching document, ordered by doc_id,
// with a snippet around the match as its text.
func (p *Pipeline) keywordSearch(ctx context.Context, q string) ([]domain.RankedHit, []domain.TableMatch, error) {
	if !p.opts.KeywordSearch || p.docs == nil {
		return nil, nil, nil
	}
	sctx, cancel := p.stage(ctx)
	defer cancel()
	docs, err := p.docs.All(sctx)
	if err != nil {
		return nil, nil, domain.FromContext(err)
	}
	texts := keyword.TextsByID(docs)
	names := make(map[string]string, len(docs))
	for _, d := range docs {
		if _, ok := names[d.ID]; !ok {
			names[d.ID] = d.Name
		}
	}
	ids := keyword.SearchKeywords(q, texts)
	hits := make([]domain.RankedHit, len(ids))
	for i, id := range ids {
		hits[i] = domain.RankedHit{SearchHit: domain.SearchHit{Point: domain.IndexedPoint{
			ID: "keyword:" + id,
			Payload: domain.Payload{
				Text:  keyword.Snippet(texts[id], q, p.opts.SnippetWidth),
				DocID: id,
				Name:  names[id],
			},
		}}}
	}
	return hits, keyword.SearchTables(q, docs), nil
}

// rank orders the candidates. Without a reranker, vector hits come first in
// similarity order followed by keyword hits.
func (p *Pipeline) rank(ctx context.Context, q string, vector []domain.SearchHit, kw []domain.RankedHit) ([]domain.RankedHit, error) {
	if p.reranker == nil {
		return fusion.FuseHits(vector, kw, 0), nil
	}
	pool := vector
	if p.opts.IncludeKeywordHits {
		pool = append(append([]domain.SearchHit(nil), vector...), searchHits(kw)...)
	}
	rctx, cancel := p.stage(ctx)
	defer cancel()
	ranked, err := rerank.Rank(rctx, p.reranker, q, pool)
	if err != nil {
		return nil, domain.FromContext(err)
	}
	if !p.opts.IncludeKeywordHits {
		ranked = append(ranked, kw...)
	}
	return ranked, nil
}

func searchHits(hits []domain.RankedHit) []domain.SearchHit {
	out := make([]domain.SearchHit, len(hits))
	for i, h := range hits {
		out[i] = h.SearchHit
	}
	return out
}
