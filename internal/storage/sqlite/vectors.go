package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"ragcore/internal/domain"
	"ragcore/internal/vectorstore"
)

// vectorIndex scores every stored point in Go. Writers run in a
// transaction, so a concurrent search sees all of an upsert or none of it.
type vectorIndex struct {
	store *Store
}

func (v *vectorIndex) wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FromContext(err)
	}
	return fmt.Errorf("%w: sqlite: %w", domain.ErrIndexUnavailable, err)
}

func (v *vectorIndex) dimension(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE name = ?", v.store.collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", domain.ErrCollectionMissing, v.store.collection)
	}
	if err != nil {
		return 0, v.wrap(err)
	}
	return dim, nil
}

func (v *vectorIndex) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", domain.ErrInvalidInput, dim)
	}
	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()
	have, err := v.dimension(ctx, v.store.db)
	switch {
	case err == nil:
		return domain.CheckDimension(have, dim)
	case !errors.Is(err, domain.ErrCollectionMissing):
		return err
	}
	_, err = v.store.db.ExecContext(ctx,
		"INSERT INTO collections (name, dimension) VALUES (?, ?)",
		v.store.collection, dim)
	if err != nil {
		return v.wrap(err)
	}
	return nil
}

func (v *vectorIndex) ResetCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", domain.ErrInvalidInput, dim)
	}
	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return v.wrap(err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, "DELETE FROM points WHERE collection = ?", v.store.collection); err != nil {
		return v.wrap(err)
	}
	// Stored text belongs to the points it was indexed with.
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return v.wrap(err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO collections (name, dimension) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET dimension = excluded.dimension",
		v.store.collection, dim)
	if err != nil {
		return v.wrap(err)
	}
	return v.wrap(tx.Commit())
}

func (v *vectorIndex) Upsert(ctx context.Context, points []domain.IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}
	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return v.wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	dim, err := v.dimension(ctx, tx)
	if err != nil {
		return err
	}
	for _, p := range points {
		if err := domain.CheckDimension(dim, len(p.Vector)); err != nil {
			return err
		}
	}
	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM points WHERE collection = ?",
		v.store.collection).Scan(&seq); err != nil {
		return v.wrap(err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (collection, id, seq, doc_id, name, source, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			doc_id = excluded.doc_id,
			name = excluded.name,
			source = excluded.source,
			content = excluded.content,
			embedding = excluded.embedding`)
	if err != nil {
		return v.wrap(err)
	}
	defer stmt.Close()
	for _, p := range points {
		seq++
		_, err := stmt.ExecContext(ctx, v.store.collection, p.ID, seq, p.Payload.DocID, p.Payload.Name,
			p.Payload.Source, p.Payload.Text, serializeEmbedding(p.Vector))
		if err != nil {
			return v.wrap(err)
		}
	}
	return v.wrap(tx.Commit())
}

func (v *vectorIndex) Search(ctx context.Context, vec domain.Vector, opts domain.SearchOptions) ([]domain.SearchHit, error) {
	dim, err := v.dimension(ctx, v.store.db)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckDimension(dim, len(vec)); err != nil {
		return nil, err
	}
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, doc_id, name, source, content, embedding
		FROM points WHERE collection = ? ORDER BY seq`, v.store.collection)
	if err != nil {
		return nil, v.wrap(err)
	}
	defer rows.Close()

	var points []domain.IndexedPoint
	for rows.Next() {
		var (
			p    domain.IndexedPoint
			blob []byte
		)
		if err := rows.Scan(&p.ID, &p.Payload.DocID, &p.Payload.Name, &p.Payload.Source, &p.Payload.Text, &blob); err != nil {
			return nil, v.wrap(err)
		}
		p.Vector = deserializeEmbedding(blob)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, v.wrap(err)
	}
	return vectorstore.Rank(points, vec, opts), nil
}

func (v *vectorIndex) Count(ctx context.Context) (int, error) {
	if _, err := v.dimension(ctx, v.store.db); err != nil {
		return 0, err
	}
	var n int
	err := v.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM points WHERE collection = ?", v.store.collection).Scan(&n)
	return n, v.wrap(err)
}

// Close is a no-op; the owning Store closes the database.
func (v *vectorIndex) Close() error { return nil }

func serializeEmbedding(vec domain.Vector) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeEmbedding(data []byte) domain.Vector {
	vec := make(domain.Vector, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
