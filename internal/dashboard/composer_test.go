package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bq-insights/backend/internal/warehouse"
	"github.com/bq-insights/backend/pkg/config"
)

type fakeIntrospector struct {
	datasets    []warehouse.Dataset
	datasetsErr error
}

func (f *fakeIntrospector) JobInfo(ctx context.Context, jobID, location string) (*warehouse.JobInfo, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeIntrospector) TableMeta(ctx context.Context, ref warehouse.TableRef) (*warehouse.TableMeta, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeIntrospector) ListDatasets(ctx context.Context, projectID string) ([]warehouse.Dataset, error) {
	return f.datasets, f.datasetsErr
}

func newTestComposer(source warehouse.Source, meta warehouse.Introspector) *Composer {
	cfg := &config.Config{}
	cfg.BigQuery.MaxQueryResults = 10
	cfg.BigQuery.DefaultTimeRangeHours = 24
	cfg.Dashboard.SlotUsageMax = 2000
	cfg.Dashboard.JobConcurrencyMax = 100
	cfg.Dashboard.QueryCacheRate = 66.9
	cfg.Dashboard.SlotCapacity = 960
	cfg.Dashboard.TotalSlots = 1000
	cfg.Dashboard.TotalIdleSlots = 1000
	return NewComposer(newTestRunner(source), meta, cfg)
}

func telemetryRow(jobID string, slotMS int64, query string) warehouse.Row {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	return warehouse.Row{
		"job_id":                jobID,
		"project_id":            "alpha",
		"user_email":            "a@example.com",
		"creation_time":         now,
		"start_time":            now,
		"end_time":              now.Add(30 * time.Second),
		"total_slot_ms":         slotMS,
		"total_bytes_processed": int64(1_000_000_000),
		"state":                 "DONE",
		"query":                 query,
	}
}

func TestExpensiveQueriesFiltersAndRanks(t *testing.T) {
	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			return []warehouse.Row{
				telemetryRow("slow", 9000, "SELECT * FROM big"),
				telemetryRow("meta", 5000, "SELECT * FROM `region-us.INFORMATION_SCHEMA.TABLES`"),
				telemetryRow("idle", 0, "SELECT 1"),
				telemetryRow("anon", 3000, ""),
				telemetryRow("fast", 1000, "SELECT * FROM small"),
			}, nil
		},
	}
	composer := newTestComposer(source, &fakeIntrospector{})

	payload, err := composer.ExpensiveQueries(context.Background(), "any_value", "")

	require.NoError(t, err)
	require.Len(t, payload.Queries, 2)
	assert.Equal(t, "slow", payload.Queries[0].JobID)
	assert.Equal(t, "fast", payload.Queries[1].JobID)
	assert.Equal(t, "region-us", payload.RegionUsed)
	assert.Equal(t, "Successfully found 2 queries using region-us", payload.Debug)
	assert.Equal(t, 1.0, payload.Queries[0].GBProcessed)
	assert.Equal(t, int64(30), payload.Queries[0].DurationSeconds)
}

func TestExpensiveQueriesTruncatesPreview(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	query := "SELECT " + string(long)

	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			return []warehouse.Row{telemetryRow("j1", 1000, query)}, nil
		},
	}
	composer := newTestComposer(source, &fakeIntrospector{})

	payload, err := composer.ExpensiveQueries(context.Background(), "", "")

	require.NoError(t, err)
	require.Len(t, payload.Queries, 1)
	assert.Len(t, payload.Queries[0].QueryPreview, 203)
	assert.Equal(t, query, payload.Queries[0].Query)
}

func TestOperationalDashboardDegradesOnFailure(t *testing.T) {
	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			return nil, errors.New("permission denied")
		},
	}
	composer := newTestComposer(source, &fakeIntrospector{})

	payload, err := composer.OperationalDashboard(context.Background(), "24h", "any_value", "")

	require.NoError(t, err)
	assert.NotEmpty(t, payload.Debug)
	assert.Empty(t, payload.SlotUsageChart)
	assert.Len(t, payload.JobDurationChart, 5)
	assert.Zero(t, payload.KPIs.TotalJobs.Value)
	assert.Equal(t, 0.0, payload.KPIs.Errors.Percentage)
	assert.Equal(t, 2000, payload.KPIs.SlotUsage.Max)
}

func TestOperationalDashboardZeroRowsEverywhere(t *testing.T) {
	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			return nil, nil
		},
	}
	composer := newTestComposer(source, &fakeIntrospector{})

	payload, err := composer.OperationalDashboard(context.Background(), "24h", "any_value", "")

	require.NoError(t, err)
	assert.Empty(t, payload.Debug)
	assert.Zero(t, payload.KPIs.TotalJobs.Value)
	assert.Zero(t, payload.KPIs.ActiveUsers.Value)
	assert.Zero(t, payload.KPIs.Errors.Count)
	assert.Equal(t, 0.0, payload.KPIs.Errors.Percentage)
	assert.Equal(t, 0.0, payload.KPIs.BytesProcessed.Value)
	assert.Empty(t, payload.SlotUsageChart)
	assert.Empty(t, payload.TopUsers)
	require.Len(t, payload.JobDurationChart, 5)
	for _, bucket := range payload.JobDurationChart {
		assert.Zero(t, bucket.Count)
	}
}

func TestOperationalDashboardComputesKPIs(t *testing.T) {
	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			rows := []warehouse.Row{
				telemetryRow("j1", 60000, "SELECT 1"),
				telemetryRow("j2", 0, "SELECT 2"),
			}
			rows[1]["has_error"] = true
			rows[1]["error_reason"] = "quotaExceeded"
			return rows, nil
		},
	}
	composer := newTestComposer(source, &fakeIntrospector{})

	payload, err := composer.OperationalDashboard(context.Background(), "24h", "any_value", "")

	require.NoError(t, err)
	assert.Equal(t, 2, payload.KPIs.TotalJobs.Value)
	assert.Equal(t, 1, payload.KPIs.ActiveUsers.Value)
	assert.Equal(t, 1, payload.KPIs.Errors.Count)
	assert.Equal(t, 50.0, payload.KPIs.Errors.Percentage)
	assert.Equal(t, "24h", payload.TimeRange)
	require.Len(t, payload.ErrorBreakdown, 1)
	assert.Equal(t, "quotaExceeded", payload.ErrorBreakdown[0].Name)
}

func TestProjectDetailsNotFound(t *testing.T) {
	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			return nil, nil
		},
	}
	composer := newTestComposer(source, &fakeIntrospector{})

	_, err := composer.ProjectDetails(context.Background(), "ghost")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestProjectDetailsWithDatasetsOnly(t *testing.T) {
	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			return nil, nil
		},
	}
	meta := &fakeIntrospector{
		datasets: []warehouse.Dataset{{Name: "events", TableCount: 3}},
	}
	composer := newTestComposer(source, meta)

	payload, err := composer.ProjectDetails(context.Background(), "my-data-project")

	require.NoError(t, err)
	assert.Equal(t, "my-data-project", payload.ID)
	assert.Equal(t, "My Data Project", payload.Name)
	assert.Equal(t, "BigQuery project: my-data-project", payload.Description)
	require.Len(t, payload.Datasets, 1)
	assert.Equal(t, "events", payload.Datasets[0].Name)
	assert.Equal(t, 3, payload.Datasets[0].Tables)
	assert.Empty(t, payload.RecentQueries)
}

func TestProjectsSentinelFirst(t *testing.T) {
	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			return []warehouse.Row{
				telemetryRow("j1", 1000, "SELECT 1"),
			}, nil
		},
	}
	composer := newTestComposer(source, &fakeIntrospector{})

	projects, err := composer.Projects(context.Background())

	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "any_value", projects[0].ID)
	assert.Equal(t, "All Projects", projects[0].DisplayName)
	assert.Equal(t, "alpha", projects[1].ID)
}

func TestProjectsDegradesToSentinelOnly(t *testing.T) {
	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			return nil, errors.New("permission denied")
		},
	}
	composer := newTestComposer(source, &fakeIntrospector{})

	projects, err := composer.Projects(context.Background())

	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "any_value", projects[0].ID)
}

func TestPulseDataCarriesConfiguredConstants(t *testing.T) {
	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			return nil, nil
		},
	}
	composer := newTestComposer(source, &fakeIntrospector{})

	payload, err := composer.PulseData(context.Background(), "any_value")

	require.NoError(t, err)
	assert.Equal(t, 66.9, payload.KPIs.QueryCacheRateWTD)
	assert.Equal(t, 0.0, payload.KPIs.SpillsToDiskWTD)
	assert.Equal(t, 960, payload.Reservations.TotalSlotCapacity)
	assert.Equal(t, 1000, payload.Reservations.TotalSlots)
	// No baseline means no change figure.
	assert.Equal(t, 0.0, payload.KPIs.BytesProcessedChange)
}

func TestTimeWindowInvestigationEmptyIsZeroNotError(t *testing.T) {
	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			return nil, nil
		},
	}
	composer := newTestComposer(source, &fakeIntrospector{})

	payload, err := composer.TimeWindowInvestigation(context.Background(), "is in the last 7 complete days")

	require.NoError(t, err)
	assert.Empty(t, payload.JobsByHour)
	assert.Empty(t, payload.TopQueries)
	assert.Equal(t, "MiB/QUERY", payload.SpilledToDisk.Unit)
}

func TestTimeWindowInvestigationLabelsAlwaysEllipsized(t *testing.T) {
	longID := "job_abcdefghijklmnop"
	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			return []warehouse.Row{
				telemetryRow("j1", 1000, "SELECT 1"),
				telemetryRow(longID, 2000, "SELECT col_a, col_b FROM dataset.some_wide_table WHERE col_a > 10"),
			}, nil
		},
	}
	composer := newTestComposer(source, &fakeIntrospector{})

	payload, err := composer.TimeWindowInvestigation(context.Background(), "is in the last 7 complete days")

	require.NoError(t, err)
	require.Len(t, payload.TopQueries, 2)

	// Labels carry the ellipsis regardless of length; full text stays intact.
	long, short := payload.TopQueries[0], payload.TopQueries[1]
	assert.Equal(t, longID[:12]+"...", long.JobID)
	assert.Equal(t, "SELECT col_a, col_b FROM dataset.some_wide_table W...", long.QueryText)
	assert.Equal(t, "j1...", short.JobID)
	assert.Equal(t, "SELECT 1...", short.QueryText)
	assert.Equal(t, "SELECT 1", short.Query)
}

func TestOrganizationOverviewAggregates(t *testing.T) {
	source := &fakeSource{
		handler: func(call int, sql string) ([]warehouse.Row, error) {
			rows := []warehouse.Row{
				telemetryRow("j1", 3600000, "SELECT 1"),
				telemetryRow("j2", 3600000, "SELECT 2"),
			}
			rows[1]["project_id"] = "beta"
			rows[1]["user_email"] = "b@example.com"
			return rows, nil
		},
	}
	composer := newTestComposer(source, &fakeIntrospector{})

	payload, err := composer.OrganizationOverview(context.Background())

	require.NoError(t, err)
	require.Len(t, payload.Projects, 2)
	assert.Equal(t, 2, payload.OrgStats.TotalProjects)
	assert.Equal(t, 2, payload.OrgStats.TotalQueries)
	assert.Equal(t, 2, payload.OrgStats.TotalUsers)
	assert.Equal(t, 2.0, payload.OrgStats.TotalSlotHours)
}
