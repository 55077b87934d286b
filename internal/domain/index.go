package domain

// Vector is a fixed-length embedding.
type Vector []float32

// IsZero reports whether every component is zero. A zero vector has no
// direction, so it never scores against a query.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Payload is the data stored next to a vector in the index.
type Payload struct {
	Text   string `json:"text"`
	DocID  string `json:"doc_id"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

// IndexedPoint is a chunk embedding as stored in a vector index.
type IndexedPoint struct {
	ID      string
	Vector  Vector
	Payload Payload
}

// NewPoint builds the point stored for chunk.
func NewPoint(chunk Chunk, vec Vector, source string) IndexedPoint {
	return IndexedPoint{
		ID:     chunk.ID,
		Vector: vec,
		Payload: Payload{
			Text:   chunk.Text,
			DocID:  chunk.DocID,
			Name:   chunk.Name,
			Source: source,
		},
	}
}

// SearchHit is a point matched by vector search with its cosine similarity.
type SearchHit struct {
	Point IndexedPoint
	Score float64
}

// RankedHit is a hit carrying a re-ranker score. Ordering by RerankScore is
// the canonical relevance ordering.
type RankedHit struct {
	SearchHit
	RerankScore float64
}

// SearchOptions controls a vector search.
type SearchOptions struct {
	TopK int
	// MinScore drops hits whose similarity is below it. Nil keeps all hits.
	MinScore *float64
}

// Threshold is a convenience for SearchOptions.MinScore.
func Threshold(v float64) *float64 { return &v }

// Accepts reports whether score passes the optional threshold.
func (o SearchOptions) Accepts(score float64) bool {
	return o.MinScore == nil || score >= *o.MinScore
}
