package models

import "time"

type MediaKind string

const (
	MediaKindVideo MediaKind = "VIDEO"
	MediaKindOther MediaKind = "OTHER"
)

type MediaItem struct {
	Id            string    `json:"id"`
	Filename      string    `json:"filename"`
	SourceLocator string    `json:"sourceLocator"`
	Kind          MediaKind `json:"kind"`
}

// Page is one response of the catalog listing. An empty NextCursor means
// there are no more pages.
type Page struct {
	Items      []MediaItem
	NextCursor string
}

type OutcomeKind int

const (
	OutcomeDownloaded OutcomeKind = iota
	OutcomeSkipped
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Bytes  int64
}

func Downloaded(bytes int64) Outcome { return Outcome{Kind: OutcomeDownloaded, Bytes: bytes} }

func Skipped(reason string) Outcome { return Outcome{Kind: OutcomeSkipped, Reason: reason} }

func Failed(err error) Outcome { return Outcome{Kind: OutcomeFailed, Reason: err.Error()} }

type RunCounters struct {
	Downloaded uint `json:"downloaded"`
	Skipped    uint `json:"skipped"`
	Failed     uint `json:"failed"`
}

// Add tallies a single outcome. Counters only ever grow.
func (c *RunCounters) Add(o Outcome) {
	switch o.Kind {
	case OutcomeDownloaded:
		c.Downloaded++
	case OutcomeSkipped:
		c.Skipped++
	default:
		c.Failed++
	}
}

func (c RunCounters) Total() uint {
	return c.Downloaded + c.Skipped + c.Failed
}

type FailedItem struct {
	Id       string `json:"id"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type RunSummary struct {
	Id         string      `json:"id"`
	Dir        string      `json:"dir"`
	StartedAt  string      `json:"startedAt"`
	FinishedAt string      `json:"finishedAt,omitempty"`
	Counters   RunCounters `json:"counters"`
	Error      string      `json:"error,omitempty"`
}

func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

type RunHistory struct {
	LastRun *RunSummary  `json:"lastRun,omitempty"`
	Failed  []FailedItem `json:"failed"`
}

type RunStatus struct {
	Running bool       `json:"running"`
	Run     RunSummary `json:"run"`
}
