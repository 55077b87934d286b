// Package assemble turns ranked hits into context blocks and the prompt
// handed to the generator.
package assemble

import (
	"strings"

	"ragcore/internal/domain"
)

// Separator divides context blocks in a prompt.
const Separator = "\n---\n"

// Assemble returns one block per hit, in ranking order. Hits are expected to
// be deduplicated by document already; later hits of a seen doc_id are
// skipped.
func Assemble(hits []domain.RankedHit) []domain.ContextBlock {
	seen := make(map[string]struct{}, len(hits))
	blocks := make([]domain.ContextBlock, 0, len(hits))
	for _, h := range hits {
		p := h.Point.Payload
		if _, ok := seen[p.DocID]; ok {
			continue
		}
		seen[p.DocID] = struct{}{}
		blocks = append(blocks, domain.ContextBlock{DocID: p.DocID, Name: p.Name, Text: p.Text})
	}
	return blocks
}

// RenderBlocks renders each block as "Document: <name>\n<text>" and joins
// them with Separator.
func RenderBlocks(blocks []domain.ContextBlock) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = "Document: " + b.Name + "\n" + b.Text
	}
	return strings.Join(parts, Separator)
}

// BuildPrompt assembles the grounded prompt for query.
func BuildPrompt(query string, blocks []domain.ContextBlock) domain.Prompt {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(RenderBlocks(blocks))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\nAnswer:")
	return domain.Prompt{Query: query, Blocks: blocks, Text: b.String()}
}
