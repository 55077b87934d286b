package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"ragcore/internal/domain"
)

type documentStore struct {
	store *Store
}

// Put replaces the stored text and tables of doc.
func (d *documentStore) Put(ctx context.Context, doc domain.Document) error {
	tables, err := json.Marshal(doc.Tables)
	if err != nil {
		return fmt.Errorf("encoding tables: %w", err)
	}
	d.store.writeMu.Lock()
	defer d.store.writeMu.Unlock()
	_, err = d.store.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, name, path, content, tables) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (doc_id, name) DO UPDATE SET
			path = excluded.path, content = excluded.content, tables = excluded.tables`,
		doc.ID, doc.Name, doc.Path, doc.Text, string(tables))
	if err != nil {
		return fmt.Errorf("storing document %s: %w", doc.Name, err)
	}
	return nil
}

// Clear removes every stored document.
func (d *documentStore) Clear(ctx context.Context) error {
	d.store.writeMu.Lock()
	defer d.store.writeMu.Unlock()
	if _, err := d.store.db.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}
	return nil
}

func (d *documentStore) All(ctx context.Context) ([]domain.Document, error) {
	rows, err := d.store.db.QueryContext(ctx,
		"SELECT doc_id, name, path, content, tables FROM documents ORDER BY doc_id, name")
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc    domain.Document
			tables string
		)
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Path, &doc.Text, &tables); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(tables), &doc.Tables); err != nil {
			return nil, fmt.Errorf("decoding tables of %s: %w", doc.Name, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
