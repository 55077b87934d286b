package extractive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/domain"
)

func TestGeneratePicksQuerySentences(t *testing.T) {
	prompt := domain.Prompt{
		Query: "How long do cats sleep?",
		Blocks: []domain.ContextBlock{
			{Name: "a.txt", Text: "Dogs enjoy long walks. Cats sleep for sixteen hours a day."},
			{Name: "b.txt", Text: "Parrots can mimic speech."},
		},
	}
	out, err := New(1).Generate(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "Cats sleep for sixteen hours a day.", out)
}

func TestGenerateKeepsOriginalOrder(t *testing.T) {
	prompt := domain.Prompt{
		Query:  "cats",
		Blocks: []domain.ContextBlock{{Text: "Cats purr. Birds sing. Cats hunt mice."}},
	}
	out, err := New(2).Generate(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "Cats purr. Cats hunt mice.", out)
}

func TestGenerateNoContext(t *testing.T) {
	out, err := New(3).Generate(context.Background(), domain.Prompt{Query: "x"})
	require.NoError(t, err)
	assert.Empty(t, out)
}
