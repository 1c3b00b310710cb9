package orchestrator

import (
	"log/slog"

	"vidpullgo/internal/models"
)

// Observer receives progress events from a run. All callbacks are invoked
// from the coordinating goroutine, never from download goroutines, and
// OnItem/OnBatch only fire once the whole batch has resolved.
type Observer interface {
	OnRunStart(runID, dir string)
	OnPage(page, items int)
	OnItem(item models.MediaItem, outcome models.Outcome)
	OnBatch(counters models.RunCounters)
	OnRunEnd(summary models.RunSummary)
}

// Observers fans every event out to each member in order.
type Observers []Observer

func (obs Observers) OnRunStart(runID, dir string) {
	for _, o := range obs {
		o.OnRunStart(runID, dir)
	}
}

func (obs Observers) OnPage(page, items int) {
	for _, o := range obs {
		o.OnPage(page, items)
	}
}

func (obs Observers) OnItem(item models.MediaItem, outcome models.Outcome) {
	for _, o := range obs {
		o.OnItem(item, outcome)
	}
}

func (obs Observers) OnBatch(counters models.RunCounters) {
	for _, o := range obs {
		o.OnBatch(counters)
	}
}

func (obs Observers) OnRunEnd(summary models.RunSummary) {
	for _, o := range obs {
		o.OnRunEnd(summary)
	}
}

// LogObserver writes progress to a slog logger.
type LogObserver struct {
	base   *slog.Logger
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{base: logger, logger: logger}
}

func (l *LogObserver) OnRunStart(runID, dir string) {
	l.logger = l.base.With("run_id", runID)
	l.logger.Info("Starting video download", "dir", dir)
}

func (l *LogObserver) OnPage(page, items int) {
	l.logger.Debug("Fetched page", "page", page, "items", items)
}

func (l *LogObserver) OnItem(item models.MediaItem, outcome models.Outcome) {
	switch outcome.Kind {
	case models.OutcomeDownloaded:
		l.logger.Info("Downloaded", "file", item.Filename, "bytes", outcome.Bytes)
	case models.OutcomeSkipped:
		if outcome.Reason == ReasonNotVideo {
			l.logger.Debug("Skipped", "file", item.Filename, "reason", outcome.Reason)
			return
		}
		l.logger.Info("Skipped", "file", item.Filename, "reason", outcome.Reason)
	default:
		l.logger.Error("Download failed", "id", item.Id, "file", item.Filename, "error", outcome.Reason)
	}
}

func (l *LogObserver) OnBatch(c models.RunCounters) {
	l.logger.Info("Progress", "downloaded", c.Downloaded, "skipped", c.Skipped, "failed", c.Failed)
}

func (l *LogObserver) OnRunEnd(s models.RunSummary) {
	args := []any{"downloaded", s.Counters.Downloaded, "skipped", s.Counters.Skipped, "failed", s.Counters.Failed}
	if s.Error != "" {
		l.logger.Error("Run aborted", append(args, "error", s.Error)...)
		return
	}
	l.logger.Info("Process completed", args...)
}
