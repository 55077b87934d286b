package chunker

const (
	DefaultWindowSize    = 500
	DefaultWindowOverlap = 50
)

// WindowChunker cuts text into fixed-length rune windows that overlap by a
// fixed number of runes.
type WindowChunker struct {
	size    int
	overlap int
}

type WindowOption func(*WindowChunker)

func WithSize(size int) WindowOption {
	return func(c *WindowChunker) {
		if size > 0 {
			c.size = size
		}
	}
}

func WithOverlap(overlap int) WindowOption {
	return func(c *WindowChunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

func NewWindowChunker(opts ...WindowOption) *WindowChunker {
	c := &WindowChunker{size: DefaultWindowSize, overlap: DefaultWindowOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

func (c *WindowChunker) Chunk(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+c.size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
