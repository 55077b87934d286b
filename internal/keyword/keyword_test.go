package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/domain"
)

func TestSearchKeywords(t *testing.T) {
	docs := map[string]string{"d1": "Big Data", "d2": "cats"}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"case insensitive", "data", []string{"d1"}},
		{"no match", "dogs", nil},
		{"empty query", "", nil},
		{"blank query", "   ", nil},
		{"substring", "a", []string{"d1", "d2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SearchKeywords(tt.query, docs))
		})
	}
}

func TestSearchKeywordsSorted(t *testing.T) {
	docs := map[string]string{"z": "go", "a": "go", "m": "go"}
	assert.Equal(t, []string{"a", "m", "z"}, SearchKeywords("GO", docs))
}

func TestTextsByID(t *testing.T) {
	got := TextsByID([]domain.Document{{ID: "d", Text: "one"}, {ID: "d", Text: "two"}, {ID: "e", Text: "x"}})
	assert.Equal(t, map[string]string{"d": "one\ntwo", "e": "x"}, got)
}

func TestLooksTabular(t *testing.T) {
	assert.True(t, LooksTabular("show the Table of prices"))
	assert.True(t, LooksTabular("revenue 2023"))
	assert.False(t, LooksTabular("what is revenue"))
}

func TestSearchTables(t *testing.T) {
	docs := []domain.Document{{
		ID: "d1", Name: "report.docx",
		Tables: []domain.Table{
			{{"Year", "Revenue"}, {"2023", "10M"}},
			{{"Name", "Role"}},
		},
	}}
	got := SearchTables("2023", docs)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, "report.docx", got[0].Name)

	assert.Empty(t, SearchTables("revenue", docs), "not a tabular query")
	assert.Len(t, SearchTables("2023\t10m", docs), 1)
}

func TestSnippet(t *testing.T) {
	text := "0123456789 the needle is here 0123456789"
	got := Snippet(text, "NEEDLE", 10)
	assert.Contains(t, got, "needle")
	assert.LessOrEqual(t, len([]rune(got)), 10)

	assert.Equal(t, "short", Snippet(" short ", "x", 50))
	assert.Equal(t, "0123", Snippet(text, "absent", 4))
}
