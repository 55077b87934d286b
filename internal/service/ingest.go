package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ragcore/internal/domain"
	"ragcore/internal/extract"
	"ragcore/internal/logger"
)

// DefaultSource is stored in every point payload unless overridden.
const DefaultSource = "Batch Upload"

// IngestOptions tunes an Ingester.
type IngestOptions struct {
	Workers int
	// Extensions filters files found while walking directories. Files named
	// directly are always attempted.
	Extensions   []string
	Source       string
	StageTimeout time.Duration
}

// IngestRequest names what to ingest. Paths may be files or directories.
// A non-empty DocID is shared by every file of the batch; otherwise each
// file gets its own id, derived from its absolute path when StableIDs is
// set and random otherwise.
type IngestRequest struct {
	Paths     []string
	DocID     string
	StableIDs bool
}

// Ingester extracts, chunks, embeds and indexes documents.
type Ingester struct {
	chunker  domain.Chunker
	embedder domain.Embedder
	index    domain.VectorIndex
	docs     domain.DocumentStore
	opts     IngestOptions
	exts     map[string]struct{}
}

func NewIngester(ch domain.Chunker, emb domain.Embedder, idx domain.VectorIndex, docs domain.DocumentStore, opts IngestOptions) *Ingester {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = extract.SupportedExtensions
	}
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &Ingester{chunker: ch, embedder: emb, index: idx, docs: docs, opts: opts, exts: exts}
}

// isFatal reports errors that invalidate the whole batch.
func isFatal(err error) bool {
	return errors.Is(err, domain.ErrDimensionMismatch) || errors.Is(err, domain.ErrCollectionMissing)
}

// Ingest processes every file concurrently and reports each exactly once.
// A failing file never stops the others, except for a dimension mismatch
// or a missing collection, which abort the batch and are returned as the
// error alongside the partial summary.
func (in *Ingester) Ingest(ctx context.Context, req IngestRequest) (domain.IngestSummary, error) {
	logger.Section("ingest")
	files, results := in.expand(req.Paths)
	start := len(results)
	results = append(results, make([]domain.IngestResult, len(files))...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.opts.Workers)
	for i, path := range files {
		res := &results[start+i]
		res.Path = path
		res.DocID = in.docID(req, path)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				res.Status, res.Err = domain.Failed, domain.FromContext(err)
				return nil
			}
			n, err := in.ingestFile(gctx, path, res.DocID)
			res.Chunks = n
			switch {
			case err == nil && n == 0:
				res.Status = domain.Skipped
				logger.Info("skipped %s: nothing to index", path)
			case err == nil:
				res.Status = domain.Succeeded
				logger.Info("ingested %s: %d chunks", path, n)
			default:
				res.Status, res.Err = domain.Failed, err
				logger.Warn("failed %s: %v", path, err)
				if isFatal(err) {
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		logger.Error("ingest aborted: %v", err)
	}
	summary := domain.IngestSummary{Results: results}
	logger.Info("ingest: %d succeeded, %d failed, %d skipped", summary.Succeeded(), summary.Failed(), summary.Skipped())
	return summary, err
}

// expand resolves paths into files. Paths that cannot be read are returned
// as failed results.
func (in *Ingester) expand(paths []string) ([]string, []domain.IngestResult) {
	var (
		files  []string
		failed []domain.IngestResult
		seen   = make(map[string]struct{})
	)
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			failed = append(failed, domain.IngestResult{
				Path: p, Status: domain.Failed,
				Err: fmt.Errorf("%w: %w", domain.ErrInvalidInput, err),
			})
			continue
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := in.exts[strings.ToLower(filepath.Ext(path))]; ok {
				add(path)
			}
			return nil
		})
		if err != nil {
			failed = append(failed, domain.IngestResult{
				Path: p, Status: domain.Failed,
				Err: fmt.Errorf("%w: walking %s: %w", domain.ErrInvalidInput, p, err),
			})
		}
	}
	return files, failed
}

func (in *Ingester) docID(req IngestRequest, path string) string {
	if req.DocID != "" {
		return req.DocID
	}
	if req.StableIDs {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String()
	}
	return uuid.NewString()
}

func (in *Ingester) stage(ctx context.Context) (context.Context, context.CancelFunc) {
	if in.opts.StageTimeout > 0 {
		return context.WithTimeout(ctx, in.opts.StageTimeout)
	}
	return context.WithCancel(ctx)
}

// ingestFile returns the number of chunks written. Chunks that embed to the
// zero vector are dropped. Zero chunks with a nil error means the file had
// nothing to index.
func (in *Ingester) ingestFile(ctx context.Context, path, docID string) (int, error) {
	doc, err := extract.Extract(path)
	if err != nil {
		return 0, err
	}
	doc.ID = docID
	chunks := domain.NewChunks(doc, in.chunker.Chunk(doc.Text))
	if len(chunks) == 0 {
		return 0, nil
	}
	logger.Debug("%s: %d chunks", doc.Name, len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	ectx, cancel := in.stage(ctx)
	vecs, err := in.embedder.Embed(ectx, texts)
	cancel()
	if err != nil {
		return 0, domain.FromContext(err)
	}
	if len(vecs) != len(chunks) {
		return 0, fmt.Errorf("%w: %d vectors for %d chunks", domain.ErrEmbeddingFailed, len(vecs), len(chunks))
	}
	points := make([]domain.IndexedPoint, 0, len(chunks))
	for i, c := range chunks {
		if vecs[i].IsZero() {
			logger.Debug("%s: chunk %d has no searchable terms", doc.Name, c.Index)
			continue
		}
		points = append(points, domain.NewPoint(c, vecs[i], in.opts.Source))
	}
	if len(points) == 0 {
		return 0, nil
	}

	uctx, cancel := in.stage(ctx)
	err = in.index.Upsert(uctx, points)
	cancel()
	if err != nil {
		return 0, domain.FromContext(err)
	}
	if in.docs != nil {
		if err := in.docs.Put(ctx, doc); err != nil {
			return len(points), fmt.Errorf("storing document text: %w", err)
		}
	}
	return len(points), nil
}
