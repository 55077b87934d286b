// Package keyword implements literal, case-insensitive search over stored
// document text and extracted tables.
package keyword

import (
	"sort"
	"strings"
	"unicode"

	"ragcore/internal/domain"
)

// SearchKeywords returns the ids of documents whose text contains query,
// ignoring case. Results are sorted by id. An empty query matches nothing.
func SearchKeywords(query string, docs map[string]string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var ids []string
	for id, text := range docs {
		if strings.Contains(strings.ToLower(text), q) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// TextsByID joins the text of documents sharing a doc_id, in input order.
func TextsByID(docs []domain.Document) map[string]string {
	out := make(map[string]string, len(docs))
	for _, d := range docs {
		if prev, ok := out[d.ID]; ok {
			out[d.ID] = prev + "\n" + d.Text
			continue
		}
		out[d.ID] = d.Text
	}
	return out
}

// LooksTabular reports whether a query is likely about table contents: it
// mentions a table or contains a digit.
func LooksTabular(query string) bool {
	if strings.Contains(strings.ToLower(query), "table") {
		return true
	}
	return strings.IndexFunc(query, unicode.IsDigit) >= 0
}

// SearchTables returns the tables whose tab and newline rendering contains
// query, ignoring case. Queries that do not look tabular match nothing.
func SearchTables(query string, docs []domain.Document) []domain.TableMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || !LooksTabular(q) {
		return nil
	}
	var out []domain.TableMatch
	for _, d := range docs {
		for i, t := range d.Tables {
			if strings.Contains(strings.ToLower(t.String()), q) {
				out = append(out, domain.TableMatch{DocID: d.ID, Name: d.Name, Index: i, Table: t})
			}
		}
	}
	return out
}

// Snippet returns about width runes of text centred on the first
// case-insensitive occurrence of query, or the start of text when there is
// none.
func Snippet(text, query string, width int) string {
	runes := []rune(text)
	if width <= 0 || len(runes) <= width {
		return strings.TrimSpace(text)
	}
	centre := 0
	q := []rune(strings.ToLower(strings.TrimSpace(query)))
	lower := []rune(strings.ToLower(text))
	if len(q) > 0 && len(lower) == len(runes) {
		if pos := indexRunes(lower, q); pos >= 0 {
			centre = pos + len(q)/2
		}
	}
	start := max(centre-width/2, 0)
	end := min(start+width, len(runes))
	start = max(end-width, 0)
	return strings.TrimSpace(string(runes[start:end]))
}

func indexRunes(s, sub []rune) int {
outer:
	for i := 0; i+len(sub) <= len(s); i++ {
		for j := range sub {
			if s[i+j] != sub[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
