package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// SentenceSplitter segments text into sentences in order.
type SentenceSplitter interface {
	Split(text string) []string
}

// RegexSplitter splits on '.', '!' and '?' terminators. Text after the last
// terminator is kept as a final sentence.
type RegexSplitter struct {
	re *regexp.Regexp
}

func NewRegexSplitter() *RegexSplitter {
	return &RegexSplitter{re: regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)}
}

func (s *RegexSplitter) Split(text string) []string {
	var out []string
	for _, m := range s.re.FindAllString(text, -1) {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// PunktSplitter uses the pretrained English Punkt model, which handles
// abbreviations and decimals that a terminator regex would split on.
// Single capital letters followed by a period read as initials, so "A. B. C."
// splits into "A." and "B. C.".
type PunktSplitter struct {
	tok *sentences.DefaultSentenceTokenizer
}

func NewPunktSplitter() (*PunktSplitter, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load punkt model: %w", err)
	}
	return &PunktSplitter{tok: tok}, nil
}

func (s *PunktSplitter) Split(text string) []string {
	var out []string
	for _, sent := range s.tok.Tokenize(text) {
		if t := strings.TrimSpace(sent.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}
