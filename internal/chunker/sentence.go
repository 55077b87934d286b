package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkSize is the default character bound of a sentence chunk.
const DefaultMaxChunkSize = 512

// SentenceChunker greedily packs whole sentences into chunks of at most
// maxSize characters. A single sentence longer than maxSize becomes its own
// chunk.
type SentenceChunker struct {
	maxSize  int
	splitter SentenceSplitter
}

func NewSentenceChunker(maxSize int, splitter SentenceSplitter) *SentenceChunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	if splitter == nil {
		splitter = NewRegexSplitter()
	}
	return &SentenceChunker{maxSize: maxSize, splitter: splitter}
}

func (c *SentenceChunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, current.String())
		}
		current.Reset()
		curLen = 0
	}
	for _, s := range c.splitter.Split(text) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		n := utf8.RuneCountInString(s)
		if curLen > 0 && curLen+1+n > c.maxSize {
			flush()
		}
		if curLen > 0 {
			current.WriteByte(' ')
			curLen++
		}
		current.WriteString(s)
		curLen += n
	}
	flush()
	return chunks
}
