package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Table is an extracted table: ordered rows of ordered cell strings.
type Table [][]string

// String renders the table with tab-separated cells and newline-separated rows.
func (t Table) String() string {
	rows := make([]string, len(t))
	for i, row := range t {
		rows[i] = strings.Join(row, "\t")
	}
	return strings.Join(rows, "\n")
}

// Document is a single extracted source loaded into the system.
type Document struct {
	ID     string
	Name   string
	Path   string
	Text   string
	Tables []Table
}

// Chunk is a bounded part of a document used for indexing.
type Chunk struct {
	ID    string
	DocID string
	Name  string
	Text  string
	Index int
}

// chunkNamespace scopes chunk identifiers produced by this module.
var chunkNamespace = uuid.MustParse("6f1c2a8e-3b0d-4e59-9a7c-52d1e0b4c9f3")

// ChunkID derives a stable chunk identifier from the owning document, its
// display name and the chunk position. The same inputs always yield the same
// identifier, which makes re-ingestion an idempotent upsert.
func ChunkID(docID, name string, index int) string {
	key := docID + "\x00" + name + "\x00" + strconv.Itoa(index)
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// NewChunks wraps chunk texts produced for doc into Chunks, dropping texts
// that are empty after trimming.
func NewChunks(doc Document, texts []string) []Chunk {
	chunks := make([]Chunk, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, Chunk{
			ID:    ChunkID(doc.ID, doc.Name, idx),
			DocID: doc.ID,
			Name:  doc.Name,
			Text:  text,
			Index: idx,
		})
	}
	return chunks
}
