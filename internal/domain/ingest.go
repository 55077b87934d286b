package domain

// IngestStatus is the per-file outcome of an ingestion run.
type IngestStatus int

const (
	Succeeded IngestStatus = iota
	Failed
	Skipped
)

func (s IngestStatus) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IngestResult describes what happened to one input file.
type IngestResult struct {
	Path   string
	DocID  string
	Status IngestStatus
	Chunks int
	Err    error
}

// IngestSummary reports every input file exactly once.
type IngestSummary struct {
	Results []IngestResult
}

func (s IngestSummary) count(st IngestStatus) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == st {
			n++
		}
	}
	return n
}

func (s IngestSummary) Succeeded() int { return s.count(Succeeded) }
func (s IngestSummary) Failed() int    { return s.count(Failed) }
func (s IngestSummary) Skipped() int   { return s.count(Skipped) }

// Chunks is the total number of chunks written.
func (s IngestSummary) Chunks() int {
	n := 0
	for _, r := range s.Results {
		n += r.Chunks
	}
	return n
}
