package dashboard

import (
	"errors"
	"time"

	"github.com/bq-insights/backend/internal/metrics"
	"github.com/bq-insights/backend/internal/warehouse"
	"github.com/bq-insights/backend/pkg/config"
)

// ErrProjectNotFound marks a detail view whose identifier resolved to no
// data at all; the whole request fails rather than degrading.
var ErrProjectNotFound = errors.New("project not found")

// Composer builds one dashboard payload per request. Each view issues its
// fixed set of independent sub-queries, derives metrics from the raw rows,
// and degrades failed sub-queries to empty defaults with a note instead of
// failing the view.
type Composer struct {
	runner       *Runner
	meta         warehouse.Introspector
	maxResults   int
	defaultHours int
	dash         config.DashboardConfig
}

func NewComposer(runner *Runner, meta warehouse.Introspector, cfg *config.Config) *Composer {
	return &Composer{
		runner:       runner,
		meta:         meta,
		maxResults:   cfg.BigQuery.MaxQueryResults,
		defaultHours: cfg.BigQuery.DefaultTimeRangeHours,
		dash:         cfg.Dashboard,
	}
}

func track(view string) func() {
	start := time.Now()
	return func() {
		metrics.ViewDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
	}
}

func degraded(view string) {
	metrics.ViewDegraded.WithLabelValues(view).Inc()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// prefixLabel is a display label that always carries the ellipsis, even when
// the value is shorter than the prefix.
func prefixLabel(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	return s + "..."
}
