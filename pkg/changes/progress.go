package changes

const (
	ProgressStatusProcessing = "processing"
	ProgressStatusApplied    = "applied"
	ProgressStatusSkipped    = "skipped"
	ProgressStatusError      = "error"
)

// ItemProgress describes a single change during an apply run. Every change
// gets a processing event before work starts on it and a terminal event once
// it lands or fails.
type ItemProgress struct {
	ChangeID int
	FileID   int
	Status   string
	Message  string
	Current  int
	Total    int
}

// Summary is the terminal result of an apply run. Errors on individual
// changes never abort the run, they only show up in the counts.
type Summary struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Reporter receives progress while the applier works through a batch.
type Reporter interface {
	Started(total int)
	Item(p ItemProgress)
	Completed(s Summary)
}

type NopReporter struct{}

func (NopReporter) Started(int)       {}
func (NopReporter) Item(ItemProgress) {}
func (NopReporter) Completed(Summary) {}
