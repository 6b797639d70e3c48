package ledger

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an episode record.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDownloading  Status = "downloading"
	StatusDownloaded   Status = "downloaded"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusSummarizing  Status = "summarizing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusDownloaded,
	StatusTranscribing,
	StatusTranscribed,
	StatusSummarizing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// statusRank orders the forward progression. Failed sits outside the rank
// order and is reachable from any non-terminal status.
var statusRank = map[Status]int{
	StatusPending:      0,
	StatusDownloading:  1,
	StatusDownloaded:   2,
	StatusTranscribing: 3,
	StatusTranscribed:  4,
	StatusSummarizing:  5,
	StatusCompleted:    6,
}

var processingStatuses = map[Status]struct{}{
	StatusDownloading:  {},
	StatusTranscribing: {},
	StatusSummarizing:  {},
}

// Episode is one ledger record, keyed by its audio URL.
type Episode struct {
	ID              int64
	PodcastName     string
	EpisodeTitle    string
	EpisodeURL      string
	Status          Status
	AudioPath       string
	OutputPath      string
	BackendUsed     string
	TranscriptChars int64
	SummaryChars    int64
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Subscription is a podcast feed the fetch command refreshes.
type Subscription struct {
	ID          int64
	Name        string
	RSSURL      string
	Enabled     bool
	LastChecked *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing reports whether the status reflects an in-flight operation.
func (s Status) IsProcessing() bool {
	_, ok := processingStatuses[s]
	return ok
}

// IsTerminal reports whether the status ends the pipeline walk.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanAdvanceTo reports whether a transition is legal: one rank forward, or to
// failed from any non-terminal status. Summarization is an optional stage, so
// transcribed may complete directly.
func (s Status) CanAdvanceTo(to Status) bool {
	if to == StatusFailed {
		return !s.IsTerminal()
	}
	if s == StatusTranscribed && to == StatusCompleted {
		return true
	}
	fromRank, okFrom := statusRank[s]
	toRank, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	return toRank == fromRank+1
}
