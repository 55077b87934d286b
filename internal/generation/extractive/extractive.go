// Package extractive answers offline by selecting the context sentences that
// best match the question.
package extractive

import (
	"context"
	"math"
	"sort"
	"strings"

	"ragcore/internal/chunker"
	"ragcore/internal/domain"
	"ragcore/internal/tokenize"
)

// queryWeight scales how much a query term counts against plain frequency.
const queryWeight = 2.0

// Generator ranks sentences by normalised term frequency plus query term
// matches and returns the best ones in their original order.
type Generator struct {
	maxSentences int
	splitter     chunker.SentenceSplitter
}

var _ domain.Generator = (*Generator)(nil)

func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Generator{maxSentences: maxSentences, splitter: chunker.NewRegexSplitter()}
}

func (g *Generator) Name() string { return "extractive" }

func (g *Generator) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	var sentences []string
	for _, b := range prompt.Blocks {
		sentences = append(sentences, g.splitter.Split(b.Text)...)
	}
	if len(sentences) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", domain.FromContext(err)
	}

	freq := map[string]float64{}
	terms := make([][]string, len(sentences))
	for i, sent := range sentences {
		terms[i] = tokenize.Terms(sent)
		for _, tok := range terms[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	query := tokenize.Set(prompt.Query)

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i := range sentences {
		score := 0.0
		for _, tok := range terms[i] {
			score += freq[tok]
			if _, ok := query[tok]; ok {
				score += queryWeight
			}
		}
		if l := float64(len(terms[i])); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(g.maxSentences, len(scores))
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}
