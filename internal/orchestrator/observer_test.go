package orchestrator

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"vidpullgo/internal/models"
)

func TestLogObserverLevels(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	obs.OnRunStart("run-1", "/videos")
	obs.OnItem(models.MediaItem{Filename: "photo.jpg"}, models.Skipped(ReasonNotVideo))
	assert.NotContains(t, buf.String(), "photo.jpg", "non-video skips are debug only")

	obs.OnItem(models.MediaItem{Filename: "old.mp4"}, models.Skipped("already exists"))
	obs.OnItem(models.MediaItem{Id: "x", Filename: "bad.mp4"}, models.Outcome{Kind: models.OutcomeFailed, Reason: "boom"})

	out := buf.String()
	assert.Contains(t, out, "file=old.mp4")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "run_id=run-1")
}
