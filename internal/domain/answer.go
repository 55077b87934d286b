package domain

// ContextBlock is the grounding text taken from one document.
type ContextBlock struct {
	DocID string
	Name  string
	Text  string
}

// Prompt is the payload handed to a generator.
type Prompt struct {
	Query  string
	Blocks []ContextBlock
	Text   string
}

// TableMatch is an extracted table that matched a tabular query.
type TableMatch struct {
	DocID string
	Name  string
	Index int
	Table Table
}

// AnswerStatus distinguishes an answer from a valid empty outcome.
type AnswerStatus int

const (
	StatusAnswered AnswerStatus = iota
	StatusNoResults
)

func (s AnswerStatus) String() string {
	switch s {
	case StatusAnswered:
		return "answered"
	case StatusNoResults:
		return "no_results"
	default:
		return "unknown"
	}
}

// Answer is the result of a query.
type Answer struct {
	Query  string
	Text   string
	Blocks []ContextBlock
	Tables []TableMatch
	Status AnswerStatus
	// Fallback is set when vector retrieval failed and the answer was built
	// from keyword search alone.
	Fallback error
}

// Sources lists the document names the answer was grounded on, in order.
func (a *Answer) Sources() []string {
	names := make([]string, len(a.Blocks))
	for i, b := range a.Blocks {
		names[i] = b.Name
	}
	return names
}
