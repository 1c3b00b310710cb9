package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"vidpullgo/internal/models"
)

const historyFile = "runs.json"

// Storage keeps the state of the current run in memory and persists the
// summary and failed items of the most recent run to runs.json.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	history  models.RunHistory
	current  models.RunStatus
	failed   []models.FailedItem
}

func New(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store := &Storage{filePath: filepath.Join(dataDir, historyFile)}
	history, err := store.LoadHistory()
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Could not load run history, starting fresh", "error", err)
		}
		history = models.RunHistory{Failed: []models.FailedItem{}}
	}
	store.history = history
	return store, nil
}

func (s *Storage) LoadHistory() (models.RunHistory, error) {
	var data models.RunHistory
	file, err := os.Open(s.filePath)
	if err != nil {
		return models.RunHistory{}, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return models.RunHistory{}, err
	}
	if data.Failed == nil {
		data.Failed = []models.FailedItem{}
	}
	return data, nil
}

// saveHistory must be called with s.mu held.
func (s *Storage) saveHistory() error {
	tmp := s.filePath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		slog.Error("Failed to save run history", "error", err)
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.history); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.filePath)
}

func (s *Storage) Status() models.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Storage) LastRun() (models.RunSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history.LastRun == nil {
		return models.RunSummary{}, false
	}
	return *s.history.LastRun, true
}

// FailedItems returns the failures of the running run, or of the last
// finished one when nothing is running.
func (s *Storage) FailedItems() []models.FailedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.history.Failed
	if s.current.Running {
		src = s.failed
	}
	out := make([]models.FailedItem, len(src))
	copy(out, src)
	return out
}

func (s *Storage) OnRunStart(runID, dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = models.RunStatus{
		Running: true,
		Run:     models.RunSummary{Id: runID, Dir: dir},
	}
	s.failed = []models.FailedItem{}
}

func (s *Storage) OnPage(page, items int) {}

func (s *Storage) OnItem(item models.MediaItem, outcome models.Outcome) {
	if outcome.Kind != models.OutcomeFailed {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, models.FailedItem{
		Id:       item.Id,
		Filename: item.Filename,
		Error:    outcome.Reason,
	})
}

func (s *Storage) OnBatch(counters models.RunCounters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Run.Counters = counters
}

func (s *Storage) OnRunEnd(summary models.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = models.RunStatus{Running: false, Run: summary}

	last := summary
	s.history = models.RunHistory{LastRun: &last, Failed: s.failed}
	s.failed = nil
	if err := s.saveHistory(); err != nil {
		slog.Error("Failed to save run history", "path", s.filePath, "error", err)
	}
}
