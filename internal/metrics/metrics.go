package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vidpullgo/internal/models"
)

const namespace = "vidpull"

// Metrics exports run progress as Prometheus collectors.
type Metrics struct {
	items        *prometheus.CounterVec
	bytes        prometheus.Counter
	pages        prometheus.Counter
	runs         *prometheus.CounterVec
	lastFinished prometheus.Gauge
}

// New registers the collectors with reg. Collectors that are already
// registered (a second orchestrator in the same process) are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Media items processed, by outcome.",
		}, []string{"outcome"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written for successfully downloaded items.",
		}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_pages_total",
			Help:      "Non-empty catalog pages fetched.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs, by result.",
		}, []string{"result"}),
		lastFinished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_finished_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	var err error
	if m.items, err = register(reg, m.items); err != nil {
		return nil, err
	}
	if m.bytes, err = register(reg, m.bytes); err != nil {
		return nil, err
	}
	if m.pages, err = register(reg, m.pages); err != nil {
		return nil, err
	}
	if m.runs, err = register(reg, m.runs); err != nil {
		return nil, err
	}
	if m.lastFinished, err = register(reg, m.lastFinished); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

func (m *Metrics) OnRunStart(runID, dir string) {}

func (m *Metrics) OnPage(page, items int) {
	m.pages.Inc()
}

func (m *Metrics) OnItem(item models.MediaItem, outcome models.Outcome) {
	m.items.WithLabelValues(outcome.Kind.String()).Inc()
	if outcome.Kind == models.OutcomeDownloaded && outcome.Bytes > 0 {
		m.bytes.Add(float64(outcome.Bytes))
	}
}

func (m *Metrics) OnBatch(counters models.RunCounters) {}

func (m *Metrics) OnRunEnd(summary models.RunSummary) {
	result := "completed"
	if summary.Error != "" {
		result = "aborted"
	}
	m.runs.WithLabelValues(result).Inc()
	m.lastFinished.Set(float64(time.Now().Unix()))
}
