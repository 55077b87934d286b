package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"ragcore/internal/chunker"
	"ragcore/internal/config"
	docmemory "ragcore/internal/docstore/memory"
	"ragcore/internal/domain"
	"ragcore/internal/embedding"
	"ragcore/internal/embedding/hashing"
	ollamaemb "ragcore/internal/embedding/ollama"
	openaiemb "ragcore/internal/embedding/openai"
	"ragcore/internal/generation/extractive"
	"ragcore/internal/logger"
	ollamagen "ragcore/internal/generation/ollama"
	openaigen "ragcore/internal/generation/openai"
	"ragcore/internal/rerank/lexical"
	"ragcore/internal/rerank/tei"
	"ragcore/internal/service"
	"ragcore/internal/storage/sqlite"
	vmemory "ragcore/internal/vectorstore/memory"
	"ragcore/internal/vectorstore/pgvector"
	"ragcore/internal/vectorstore/qdrant"
)

const pingTimeout = 5 * time.Second

// components are the pipeline stages selected by the config.
type components struct {
	cfg       *config.AppConfig
	embedder  domain.Embedder
	chunker   domain.Chunker
	index     domain.VectorIndex
	docs      domain.DocumentStore
	reranker  domain.Reranker
	generator domain.Generator
	closers   []func() error
}

func buildComponents(ctx context.Context, cfg *config.AppConfig) (*components, error) {
	c := &components{cfg: cfg}
	var err error
	if c.embedder, err = newEmbedder(cfg); err != nil {
		return nil, err
	}
	if c.chunker, err = newChunker(cfg); err != nil {
		return nil, err
	}
	if err = c.openStores(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	if c.reranker, err = newReranker(cfg); err != nil {
		_ = c.Close()
		return nil, err
	}
	if c.generator, err = newGenerator(cfg); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

func (c *components) ingester() *service.Ingester {
	return service.NewIngester(c.chunker, c.embedder, c.index, c.docs, service.IngestOptions{
		Workers:      c.cfg.Ingest.Workers,
		Extensions:   c.cfg.Ingest.Extensions,
		Source:       c.cfg.Ingest.Source,
		StageTimeout: c.cfg.StageTimeout(),
	})
}

func (c *components) pipeline() *service.Pipeline {
	return service.NewPipeline(c.embedder, c.index, c.reranker, c.generator, c.docs, service.PipelineOptions{
		Overfetch:          c.cfg.Reranker.Overfetch,
		KeywordSearch:      c.cfg.Retrieval.KeywordSearch,
		IncludeKeywordHits: c.cfg.Reranker.IncludeKeywordHits,
		StageTimeout:       c.cfg.StageTimeout(),
	})
}

// ensureCollection creates the collection for the configured dimension or
// checks that an existing one matches it.
func (c *components) ensureCollection(ctx context.Context) error {
	return c.index.EnsureCollection(ctx, c.embedder.Dimension())
}

func newEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	dim := cfg.Embedder.Dimension
	switch cfg.Embedder.Type {
	case "hashing":
		return hashing.New(dim), nil
	case "ollama":
		o := cfg.Embedder.Ollama
		return embedding.NewLazy("ollama:"+o.Model, dim, func() (domain.Embedder, error) {
			e, err := ollamaemb.New(ollamaemb.Config{
				Host:              o.Host,
				Model:             o.Model,
				Dimension:         dim,
				BatchSize:         o.BatchSize,
				MaxRetries:        o.MaxRetries,
				Timeout:           config.Seconds(o.TimeoutSecs),
				RequestsPerSecond: o.RequestsPerSecond,
			})
			if err != nil {
				return nil, err
			}
			ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			defer cancel()
			if err := e.Ping(ctx); err != nil {
				return nil, err
			}
			return e, nil
		}), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		return embedding.NewLazy("openai:"+o.Model, dim, func() (domain.Embedder, error) {
			return openaiemb.NewClient(openaiemb.Config{
				BaseURL:        o.BaseURL,
				APIKeyEnv:      o.APIKeyEnv,
				Model:          o.Model,
				Dimension:      dim,
				SendDimensions: o.SendDimensions,
				Timeout:        config.Seconds(o.TimeoutSecs),
				MaxRetries:     o.MaxRetries,
			})
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidInput, cfg.Embedder.Type)
	}
}

func newChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	switch cfg.Chunker.Type {
	case "window":
		return chunker.NewWindowChunker(
			chunker.WithSize(cfg.Chunker.WindowSize),
			chunker.WithOverlap(cfg.Chunker.Overlap),
		), nil
	case "sentence":
		var splitter chunker.SentenceSplitter = chunker.NewRegexSplitter()
		if cfg.Chunker.Splitter == "punkt" {
			p, err := chunker.NewPunktSplitter()
			if err != nil {
				return nil, err
			}
			splitter = p
		}
		return chunker.NewSentenceChunker(cfg.Chunker.MaxChunkSize, splitter), nil
	default:
		return nil, fmt.Errorf("%w: unknown chunker %q", domain.ErrInvalidInput, cfg.Chunker.Type)
	}
}

func (c *components) openStores(ctx context.Context) error {
	vs := c.cfg.VectorStore
	switch vs.Type {
	case "memory":
		c.index = vmemory.NewStorage()
	case "qdrant":
		q := vs.Qdrant
		c.index = qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: vs.Collection,
			Timeout:    config.Seconds(q.TimeoutSecs),
			MaxRetries: q.MaxRetries,
		})
	case "pgvector":
		p := vs.PGVector
		dsn := p.DSN
		if dsn == "" {
			dsn = os.Getenv(p.DSNEnv)
		}
		st, err := pgvector.NewStorage(ctx, pgvector.Config{
			DSN:        dsn,
			Collection: vs.Collection,
			Timeout:    config.Seconds(p.TimeoutSecs),
		})
		if err != nil {
			return err
		}
		c.index = st
	case "sqlite":
		st, err := c.openSQLite(vs.SQLite.Path)
		if err != nil {
			return err
		}
		c.index = st.VectorIndex()
		if c.cfg.DocStore.Type == "sqlite" && c.cfg.DocStore.Path == st.Path() {
			c.docs = st.DocumentStore()
		}
	default:
		return fmt.Errorf("%w: unknown vector store %q", domain.ErrInvalidInput, vs.Type)
	}
	c.closers = append(c.closers, c.index.Close)
	if c.docs != nil {
		return nil
	}
	switch c.cfg.DocStore.Type {
	case "sqlite":
		st, err := c.openSQLite(c.cfg.DocStore.Path)
		if err != nil {
			return err
		}
		c.docs = st.DocumentStore()
	default:
		c.docs = docmemory.New()
	}
	return nil
}

func (c *components) openSQLite(path string) (*sqlite.Store, error) {
	st, err := sqlite.Open(path, c.cfg.VectorStore.Collection)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened sqlite database %s", st.Path())
	c.closers = append(c.closers, st.Close)
	return st, nil
}

// clearDocuments empties a document store kept apart from the index.
func (c *components) clearDocuments(ctx context.Context) error {
	if cl, ok := c.docs.(interface{ Clear(context.Context) error }); ok {
		return cl.Clear(ctx)
	}
	return nil
}

func newReranker(cfg *config.AppConfig) (domain.Reranker, error) {
	switch cfg.Reranker.Type {
	case "none":
		return nil, nil
	case "lexical":
		return lexical.New(), nil
	case "tei":
		t := cfg.Reranker.TEI
		return tei.New(tei.Config{
			URL:        t.URL,
			Model:      t.Model,
			BatchSize:  t.BatchSize,
			Timeout:    config.Seconds(t.TimeoutSecs),
			MaxRetries: t.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("%w: unknown reranker %q", domain.ErrInvalidInput, cfg.Reranker.Type)
	}
}

func newGenerator(cfg *config.AppConfig) (domain.Generator, error) {
	g := cfg.Generator
	switch g.Type {
	case "none":
		return nil, nil
	case "extractive":
		return extractive.New(g.MaxSentences), nil
	case "ollama":
		return ollamagen.New(ollamagen.Config{
			Host:        g.Ollama.Host,
			Model:       g.Ollama.Model,
			Temperature: g.Ollama.Temperature,
			MaxTokens:   g.Ollama.MaxTokens,
		})
	case "openai":
		return openaigen.New(openaigen.Config{
			BaseURL:     g.OpenAI.BaseURL,
			APIKeyEnv:   g.OpenAI.APIKeyEnv,
			Model:       g.OpenAI.Model,
			Temperature: g.OpenAI.Temperature,
			MaxTokens:   g.OpenAI.MaxTokens,
			Timeout:     config.Seconds(g.OpenAI.TimeoutSecs),
		})
	default:
		return nil, fmt.Errorf("%w: unknown generator %q", domain.ErrInvalidInput, g.Type)
	}
}
