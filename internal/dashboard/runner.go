package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bq-insights/backend/internal/analytics"
	"github.com/bq-insights/backend/internal/metrics"
	"github.com/bq-insights/backend/internal/warehouse"
	"github.com/bq-insights/backend/pkg/logger"
)

// Runner executes one telemetry statement with region fallback: every
// candidate from the resolver is tried in order, the first that returns rows
// wins, and a final unqualified attempt runs when none do. A total miss is
// not an error; the view degrades to empty series.
type Runner struct {
	source  warehouse.Source
	regions *analytics.RegionResolver
	timeout time.Duration
}

func NewRunner(source warehouse.Source, regions *analytics.RegionResolver, timeout time.Duration) *Runner {
	return &Runner{
		source:  source,
		regions: regions,
		timeout: timeout,
	}
}

// Query builds the statement per candidate via `build` (which receives the
// qualified table name) and returns the winning rows plus the region that
// produced them. The returned region is empty when the unqualified fallback
// won or nothing matched.
func (r *Runner) Query(ctx context.Context, regionHint string, build func(table string) string) ([]warehouse.Row, string, error) {
	candidates := r.regions.Resolve(regionHint)

	var lastErr error
	for _, region := range candidates {
		rows, err := r.source.Execute(ctx, build(telemetryTable(region)), r.timeout)
		if err != nil {
			metrics.WarehouseQueries.WithLabelValues(region, "error").Inc()
			logger.Warn("Region candidate failed",
				zap.String("region", region),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		metrics.WarehouseQueries.WithLabelValues(region, "ok").Inc()
		if len(rows) > 0 {
			return rows, region, nil
		}
	}

	// Last resort: no region qualifier at all.
	rows, err := r.source.Execute(ctx, build(telemetryTable("")), r.timeout)
	if err != nil {
		metrics.WarehouseQueries.WithLabelValues("none", "error").Inc()
		if lastErr == nil {
			lastErr = err
		}
		return nil, "", lastErr
	}
	metrics.WarehouseQueries.WithLabelValues("none", "ok").Inc()

	if len(rows) == 0 {
		logger.Debug("No telemetry rows in any region", zap.Strings("candidates", candidates))
	}
	return rows, "", nil
}
