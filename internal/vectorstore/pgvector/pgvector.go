// Package pgvector stores points in a PostgreSQL table with a pgvector
// column. The collection name is the table name.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"ragcore/internal/domain"
	"ragcore/internal/logger"
	"ragcore/internal/vectorstore"
)

const undefinedTable = "42P01"

type Config struct {
	DSN        string
	Collection string
	Timeout    time.Duration
}

type Storage struct {
	pool  *pgxpool.Pool
	table string
	name  string
}

var _ domain.VectorIndex = (*Storage)(nil)

// NewStorage connects to PostgreSQL, installs the vector extension and
// registers its types on every pooled connection.
func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: pgvector needs a dsn", domain.ErrInvalidInput)
	}
	if cfg.Collection == "" {
		cfg.Collection = vectorstore.DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", domain.ErrIndexUnavailable, err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	_ = conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create extension: %w", domain.ErrIndexUnavailable, err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: dsn: %v", domain.ErrInvalidInput, err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: pool: %w", domain.ErrIndexUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", domain.ErrIndexUnavailable, err)
	}
	return &Storage{
		pool:  pool,
		table: pgx.Identifier{cfg.Collection}.Sanitize(),
		name:  cfg.Collection,
	}, nil
}

func (s *Storage) wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FromContext(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %s", domain.ErrCollectionMissing, s.name)
	}
	return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
}

// dimension returns the declared size of the embedding column, or
// ErrCollectionMissing.
func (s *Storage) dimension(ctx context.Context) (int, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", s.table).Scan(&exists); err != nil {
		return 0, s.wrap(err)
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s", domain.ErrCollectionMissing, s.name)
	}
	var dim int
	err := s.pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = to_regclass($1) AND attname = 'embedding'`,
		s.table).Scan(&dim)
	if err != nil {
		return 0, s.wrap(err)
	}
	return dim, nil
}

func (s *Storage) createSQL(dim int) []string {
	index := pgx.Identifier{s.name + "_embedding_idx"}.Sanitize()
	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.table, dim),
		fmt.Sprintf(`CREATE INDEX %s ON %s USING hnsw (embedding vector_cosine_ops)`, index, s.table),
	}
}

func (s *Storage) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", domain.ErrInvalidInput, dim)
	}
	have, err := s.dimension(ctx)
	switch {
	case err == nil:
		return domain.CheckDimension(have, dim)
	case !errors.Is(err, domain.ErrCollectionMissing):
		return err
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range s.createSQL(dim) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		logger.Debug("pgvector: created table %s (dim=%d)", s.name, dim)
		return nil
	})
}

func (s *Storage) ResetCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", domain.ErrInvalidInput, dim)
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+s.table); err != nil {
			return err
		}
		for _, stmt := range s.createSQL(dim) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return s.wrap(pgx.BeginFunc(ctx, s.pool, fn))
}

func (s *Storage) Upsert(ctx context.Context, points []domain.IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	for _, p := range points {
		if err := domain.CheckDimension(dim, len(p.Vector)); err != nil {
			return err
		}
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, doc_id, name, source, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			name = EXCLUDED.name,
			source = EXCLUDED.source,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`, s.table)
	return s.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range points {
			batch.Queue(query, p.ID, p.Payload.DocID, p.Payload.Name, p.Payload.Source,
				p.Payload.Text, pgvector.NewVector(p.Vector))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *Storage) Search(ctx context.Context, vec domain.Vector, opts domain.SearchOptions) ([]domain.SearchHit, error) {
	dim, err := s.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckDimension(dim, len(vec)); err != nil {
		return nil, err
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	query := fmt.Sprintf(`SELECT id, doc_id, name, source, content, embedding, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE $2::float8 IS NULL OR 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1, id
		LIMIT $3`, s.table)
	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vec), opts.MinScore, topK)
	if err != nil {
		return nil, s.wrap(err)
	}
	defer rows.Close()

	var hits []domain.SearchHit
	for rows.Next() {
		var (
			h   domain.SearchHit
			emb pgvector.Vector
		)
		p := &h.Point
		if err := rows.Scan(&p.ID, &p.Payload.DocID, &p.Payload.Name, &p.Payload.Source,
			&p.Payload.Text, &emb, &h.Score); err != nil {
			return nil, s.wrap(err)
		}
		p.Vector = emb.Slice()
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(err)
	}
	return hits, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM "+s.table).Scan(&n); err != nil {
		return 0, s.wrap(err)
	}
	return n, nil
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}
