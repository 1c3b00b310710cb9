// Package orchestrator walks the paginated media catalog and downloads every
// video into a target directory, a fixed-size batch at a time.
//
// Pages are strictly sequential because the next cursor is only known once
// the current page has arrived. Within a page, items are split into batches
// of BatchSize; the items of a batch are fetched concurrently and the next
// batch starts only after every item of the current one has resolved. Item
// failures are recorded as outcomes and never stop the run; a failing
// catalog call does, returning whatever was counted so far.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vidpullgo/internal/catalog"
	"vidpullgo/internal/models"
)

const (
	DefaultBatchSize = 10
	DefaultPageSize  = 100
)

// ReasonNotVideo is the Skipped reason for items the server filter let through.
const ReasonNotVideo = "not a video"

var (
	ErrUnsafeFilename    = errors.New("unsafe filename")
	ErrDuplicateFilename = errors.New("duplicate filename")
	ErrNotRegularFile    = errors.New("target path exists and is not a regular file")
)

type Fetcher interface {
	Fetch(ctx context.Context, item models.MediaItem, localPath string) (int64, error)
}

type Options struct {
	BatchSize int
	PageSize  int
	Observer  Observer
}

type Orchestrator struct {
	catalog   catalog.Lister
	fetcher   Fetcher
	batchSize int
	pageSize  int
	observer  Observer
}

func New(lister catalog.Lister, fetcher Fetcher, opts Options) *Orchestrator {
	o := &Orchestrator{
		catalog:   lister,
		fetcher:   fetcher,
		batchSize: opts.BatchSize,
		pageSize:  opts.PageSize,
		observer:  opts.Observer,
	}
	if o.batchSize < 1 {
		o.batchSize = DefaultBatchSize
	}
	if o.pageSize < 1 {
		o.pageSize = DefaultPageSize
	}
	if o.observer == nil {
		o.observer = Observers{}
	}
	return o
}

// Run downloads every video in the catalog into dir. The returned counters
// are valid even when err is non-nil.
func (o *Orchestrator) Run(ctx context.Context, dir string) (counters models.RunCounters, err error) {
	summary := models.RunSummary{
		Id:        uuid.NewString(),
		Dir:       dir,
		StartedAt: models.FormatTime(time.Now()),
	}
	o.observer.OnRunStart(summary.Id, dir)
	defer func() {
		summary.Counters = counters
		summary.FinishedAt = models.FormatTime(time.Now())
		if err != nil {
			summary.Error = err.Error()
		}
		o.observer.OnRunEnd(summary)
	}()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return counters, fmt.Errorf("create download dir: %w", err)
	}

	claimed := make(map[string]struct{})
	cursor := ""
	for pageNo := 1; ; pageNo++ {
		if err := ctx.Err(); err != nil {
			return counters, err
		}

		page, err := o.catalog.FetchPage(ctx, cursor, o.pageSize, models.MediaKindVideo)
		if err != nil {
			return counters, fmt.Errorf("fetch page %d: %w", pageNo, err)
		}
		if len(page.Items) == 0 {
			break
		}
		o.observer.OnPage(pageNo, len(page.Items))

		for start := 0; start < len(page.Items); start += o.batchSize {
			end := min(start+o.batchSize, len(page.Items))
			batch := page.Items[start:end]

			outcomes := o.runBatch(ctx, dir, batch, claimed)
			for i, outcome := range outcomes {
				counters.Add(outcome)
				o.observer.OnItem(batch[i], outcome)
			}
			o.observer.OnBatch(counters)

			if err := ctx.Err(); err != nil {
				return counters, err
			}
		}

		cursor = page.NextCursor
		if cursor == "" {
			break
		}
	}
	return counters, nil
}

// runBatch resolves every item of batch and returns one outcome per item in
// batch order. Kind and filename checks run here, before any goroutine
// starts, so claimed is only touched by the coordinator. Only videos claim a
// filename.
func (o *Orchestrator) runBatch(ctx context.Context, dir string, batch []models.MediaItem, claimed map[string]struct{}) []models.Outcome {
	outcomes := make([]models.Outcome, len(batch))
	pending := make([]bool, len(batch))
	for i, item := range batch {
		if item.Kind != models.MediaKindVideo {
			outcomes[i] = models.Skipped(ReasonNotVideo)
			continue
		}
		if err := checkFilename(item.Filename); err != nil {
			outcomes[i] = models.Failed(err)
			continue
		}
		if _, dup := claimed[item.Filename]; dup {
			outcomes[i] = models.Failed(fmt.Errorf("%w: %q", ErrDuplicateFilename, item.Filename))
			continue
		}
		claimed[item.Filename] = struct{}{}
		pending[i] = true
	}

	var g errgroup.Group
	g.SetLimit(o.batchSize)
	for i, item := range batch {
		if !pending[i] {
			continue
		}
		g.Go(func() error {
			outcomes[i] = o.downloadItem(ctx, dir, item)
			return nil
		})
	}
	g.Wait()
	return outcomes
}

func (o *Orchestrator) downloadItem(ctx context.Context, dir string, item models.MediaItem) models.Outcome {
	localPath := filepath.Join(dir, item.Filename)
	info, err := os.Lstat(localPath)
	switch {
	case err == nil && info.Mode().IsRegular():
		return models.Skipped("already exists")
	case err == nil:
		return models.Failed(fmt.Errorf("%w: %s", ErrNotRegularFile, localPath))
	case !errors.Is(err, fs.ErrNotExist):
		return models.Failed(err)
	}

	n, err := o.fetcher.Fetch(ctx, item, localPath)
	if err != nil {
		return models.Failed(err)
	}
	return models.Downloaded(n)
}

func checkFilename(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrUnsafeFilename, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrUnsafeFilename, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a NUL byte", ErrUnsafeFilename, name)
	}
	return nil
}
