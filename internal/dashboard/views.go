package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bq-insights/backend/internal/analytics"
	"github.com/bq-insights/backend/internal/warehouse"
	"github.com/bq-insights/backend/pkg/logger"
)

type ExpensiveQuery struct {
	JobID           string    `json:"job_id"`
	ProjectID       string    `json:"project_id"`
	UserEmail       string    `json:"user_email"`
	CreationTime    time.Time `json:"creation_time"`
	TotalSlotMS     int64     `json:"total_slot_ms"`
	GBProcessed     float64   `json:"gb_processed"`
	DurationSeconds int64     `json:"duration_seconds"`
	State           string    `json:"state"`
	ErrorReason     string    `json:"error_reason"`
	QueryPreview    string    `json:"query_preview"`
	Query           string    `json:"query"`
}

type ExpensiveQueriesPayload struct {
	Queries    []ExpensiveQuery `json:"queries"`
	Debug      string           `json:"debug"`
	RegionUsed string           `json:"region_used"`
}

func (c *Composer) ExpensiveQueries(ctx context.Context, project, region string) (*ExpensiveQueriesPayload, error) {
	defer track("expensive_queries")()

	rows, regionUsed, err := c.runner.Query(ctx, region, func(table string) string {
		return jobTelemetrySQL(table, 168, project)
	})
	if err != nil {
		return nil, err
	}

	var jobs []analytics.JobRecord
	for _, j := range analytics.JobRecordsFromRows(rows) {
		if j.TotalSlotMS <= 0 || j.Query == "" || strings.Contains(j.Query, "INFORMATION_SCHEMA") {
			continue
		}
		jobs = append(jobs, j)
	}
	jobs = analytics.TopNBySlotMS(jobs, c.maxResults)

	queries := make([]ExpensiveQuery, 0, len(jobs))
	for _, j := range jobs {
		queries = append(queries, ExpensiveQuery{
			JobID:           j.JobID,
			ProjectID:       j.ProjectID,
			UserEmail:       j.UserEmail,
			CreationTime:    j.CreationTime,
			TotalSlotMS:     j.TotalSlotMS,
			GBProcessed:     analytics.BytesToGB(j.BytesProcessed),
			DurationSeconds: j.DurationSeconds(),
			State:           j.State,
			ErrorReason:     j.ErrorReason,
			QueryPreview:    truncate(j.Query, 200),
			Query:           j.Query,
		})
	}

	label := regionUsed
	if label == "" {
		label = "unqualified fallback"
	}
	return &ExpensiveQueriesPayload{
		Queries:    queries,
		Debug:      fmt.Sprintf("Successfully found %d queries using %s", len(queries), label),
		RegionUsed: regionUsed,
	}, nil
}

type OrgStats struct {
	TotalProjects    int     `json:"totalProjects"`
	TotalQueries     int     `json:"totalQueries"`
	TotalSlotHours   float64 `json:"totalSlotHours"`
	TotalUsers       int     `json:"totalUsers"`
	TotalTBProcessed float64 `json:"totalTBProcessed"`
	TotalErrors      int     `json:"totalErrors"`
}

type OrganizationOverviewPayload struct {
	Projects []analytics.ProjectStat `json:"projects"`
	OrgStats OrgStats                `json:"orgStats"`
	Debug    string                  `json:"debug,omitempty"`
}

func (c *Composer) OrganizationOverview(ctx context.Context) (*OrganizationOverviewPayload, error) {
	defer track("organization_overview")()

	payload := &OrganizationOverviewPayload{Projects: []analytics.ProjectStat{}}

	rows, _, err := c.runner.Query(ctx, "", func(table string) string {
		return jobTelemetrySQL(table, 24, "")
	})
	if err != nil {
		degraded("organization_overview")
		logger.Error("Organization overview query failed", zap.Error(err))
		payload.Debug = "telemetry unavailable: " + err.Error()
		return payload, nil
	}

	jobs := analytics.JobRecordsFromRows(rows)
	projects := analytics.ProjectRollup(jobs)
	payload.Projects = projects

	stats := OrgStats{
		TotalProjects: len(projects),
		TotalUsers:    analytics.CountDistinctUsers(jobs),
		TotalErrors:   analytics.CountErrors(jobs),
	}
	for _, p := range projects {
		stats.TotalQueries += p.TotalQueries
		stats.TotalSlotHours += p.SlotHours
		stats.TotalTBProcessed += p.TBProcessed
	}
	payload.OrgStats = stats

	return payload, nil
}

type GaugeKPI struct {
	Current int    `json:"current"`
	Max     int    `json:"max"`
	Unit    string `json:"unit"`
}

type ErrorsKPI struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type ValueKPI struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type CountKPI struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

type OperationalKPIs struct {
	SlotUsage      GaugeKPI  `json:"slotUsage"`
	JobConcurrency GaugeKPI  `json:"jobConcurrency"`
	Errors         ErrorsKPI `json:"errors"`
	AvgJobDuration ValueKPI  `json:"avgJobDuration"`
	BytesProcessed ValueKPI  `json:"bytesProcessed"`
	TotalJobs      CountKPI  `json:"totalJobs"`
	ActiveUsers    CountKPI  `json:"activeUsers"`
}

type OperationalDashboardPayload struct {
	KPIs                OperationalKPIs            `json:"kpis"`
	SlotUsageChart      []analytics.SlotPoint      `json:"slotUsageChart"`
	JobDurationChart    []analytics.DurationBucket `json:"jobDurationChart"`
	BytesProcessedChart []analytics.BytesPoint     `json:"bytesProcessedChart"`
	ErrorBreakdown      []analytics.ErrorSlice     `json:"errorBreakdown"`
	TopUsers            []analytics.UserStat       `json:"topUsers"`
	TimeRange           string                     `json:"timeRange"`
	Debug               string                     `json:"debug,omitempty"`
}

func (c *Composer) OperationalDashboard(ctx context.Context, timeRange, project, region string) (*OperationalDashboardPayload, error) {
	defer track("operational_dashboard")()

	window := analytics.ResolveTimeRange(timeRange, c.defaultHours)

	payload := &OperationalDashboardPayload{
		SlotUsageChart:      []analytics.SlotPoint{},
		JobDurationChart:    analytics.DurationBuckets(nil),
		BytesProcessedChart: []analytics.BytesPoint{},
		ErrorBreakdown:      []analytics.ErrorSlice{},
		TopUsers:            []analytics.UserStat{},
		TimeRange:           timeRange,
	}
	payload.KPIs = c.operationalKPIs(nil, nil)

	rows, _, err := c.runner.Query(ctx, region, func(table string) string {
		return jobTelemetrySQL(table, window.Hours, project)
	})
	if err != nil {
		degraded("operational_dashboard")
		logger.Error("Operational dashboard query failed", zap.Error(err))
		payload.Debug = "telemetry unavailable: " + err.Error()
		return payload, nil
	}

	jobs := analytics.JobRecordsFromRows(rows)

	var active []analytics.JobRecord
	for _, j := range jobs {
		if j.TotalSlotMS > 0 {
			active = append(active, j)
		}
	}

	payload.SlotUsageChart = analytics.HourlySlotUsage(active)
	payload.JobDurationChart = analytics.DurationBuckets(active)
	payload.BytesProcessedChart = analytics.HourlyBytes(jobs)
	payload.ErrorBreakdown = analytics.ErrorBreakdown(jobs, 10)
	payload.TopUsers = analytics.TopUsers(jobs, 10)
	payload.KPIs = c.operationalKPIs(jobs, payload.SlotUsageChart)

	return payload, nil
}

func (c *Composer) operationalKPIs(jobs []analytics.JobRecord, hourly []analytics.SlotPoint) OperationalKPIs {
	avgSlots, avgJobs := 0.0, 0.0
	if len(hourly) > 0 {
		for _, p := range hourly {
			avgSlots += p.Slots
			avgJobs += float64(p.Jobs)
		}
		avgSlots /= float64(len(hourly))
		avgJobs /= float64(len(hourly))
	}

	errorCount := analytics.CountErrors(jobs)

	return OperationalKPIs{
		SlotUsage:      GaugeKPI{Current: int(avgSlots), Max: c.dash.SlotUsageMax, Unit: "slots"},
		JobConcurrency: GaugeKPI{Current: int(avgJobs), Max: c.dash.JobConcurrencyMax, Unit: "jobs"},
		Errors: ErrorsKPI{
			Count:      errorCount,
			Percentage: analytics.Round1(analytics.ErrorRate(errorCount, len(jobs))),
		},
		AvgJobDuration: ValueKPI{
			Value: analytics.Round1(analytics.AvgSlotSeconds(jobs) / 60),
			Unit:  "minutes",
		},
		BytesProcessed: ValueKPI{
			Value: analytics.Round2(analytics.BytesToTB(analytics.SumBytesProcessed(jobs))),
			Unit:  "TB",
		},
		TotalJobs:   CountKPI{Value: len(jobs), Unit: "jobs"},
		ActiveUsers: CountKPI{Value: analytics.CountDistinctUsers(jobs), Unit: "users"},
	}
}

type DatasetInfo struct {
	Name   string  `json:"name"`
	Tables int     `json:"tables"`
	SizeGB float64 `json:"sizeGB"`
}

type RecentQuery struct {
	ID       string `json:"id"`
	Query    string `json:"query"`
	User     string `json:"user"`
	Duration string `json:"duration"`
	SlotMS   int64  `json:"slotMs"`
}

type ProjectDetailsPayload struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Datasets      []DatasetInfo          `json:"datasets"`
	RecentQueries []RecentQuery          `json:"recentQueries"`
	UsageChart    []analytics.UsagePoint `json:"usageChart"`
}

func (c *Composer) ProjectDetails(ctx context.Context, projectID string) (*ProjectDetailsPayload, error) {
	defer track("project_details")()

	var (
		rows     []warehouse.Row
		rowsErr  error
		datasets []warehouse.Dataset
		dsErr    error
	)

	done := make(chan struct{}, 2)
	go func() {
		rows, _, rowsErr = c.runner.Query(ctx, "", func(table string) string {
			return jobTelemetrySQL(table, 24, projectID)
		})
		done <- struct{}{}
	}()
	go func() {
		datasets, dsErr = c.meta.ListDatasets(ctx, projectID)
		done <- struct{}{}
	}()
	<-done
	<-done

	if rowsErr != nil {
		logger.Warn("Project telemetry query failed",
			zap.String("project", projectID),
			zap.Error(rowsErr),
		)
	}
	if dsErr != nil {
		logger.Warn("Dataset listing failed",
			zap.String("project", projectID),
			zap.Error(dsErr),
		)
	}

	jobs := analytics.JobRecordsFromRows(rows)
	if len(jobs) == 0 && len(datasets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}

	datasetInfos := make([]DatasetInfo, 0, len(datasets))
	for _, ds := range datasets {
		datasetInfos = append(datasetInfos, DatasetInfo{Name: ds.Name, Tables: ds.TableCount})
	}

	recent := make([]analytics.JobRecord, len(jobs))
	copy(recent, jobs)
	sort.SliceStable(recent, func(a, b int) bool {
		return recent[a].CreationTime.After(recent[b].CreationTime)
	})
	if len(recent) > 10 {
		recent = recent[:10]
	}

	recentQueries := make([]RecentQuery, 0, len(recent))
	for _, j := range recent {
		duration := "N/A"
		if d := j.DurationSeconds(); d > 0 {
			duration = fmt.Sprintf("%ds", d)
		}
		recentQueries = append(recentQueries, RecentQuery{
			ID:       j.JobID,
			Query:    truncate(j.Query, 200),
			User:     j.UserEmail,
			Duration: duration,
			SlotMS:   j.TotalSlotMS,
		})
	}

	return &ProjectDetailsPayload{
		ID:            projectID,
		Name:          displayName(projectID),
		Description:   "BigQuery project: " + projectID,
		Datasets:      datasetInfos,
		RecentQueries: recentQueries,
		UsageChart:    analytics.HourlyUsage(jobs),
	}, nil
}

type PulseKPIs struct {
	BytesProcessedWTD    float64 `json:"bytesProcessedWTD"`
	BytesProcessedChange float64 `json:"bytesProcessedChange"`
	SlotMSWTD            float64 `json:"slotMsWTD"`
	SlotMSChange         float64 `json:"slotMsChange"`
	AvgJobDurationWTD    float64 `json:"avgJobDurationWTD"`
	JobsDelayedWTD       float64 `json:"jobsDelayedWTD"`
	QueryCacheRateWTD    float64 `json:"queryCacheRateWTD"`
	SpillsToDiskWTD      float64 `json:"spillsToDiskWTD"`
}

type Reservations struct {
	TotalSlotCapacity int `json:"totalSlotCapacity"`
	TotalSlots        int `json:"totalSlots"`
	TotalIdleSlots    int `json:"totalIdleSlots"`
}

type PulsePayload struct {
	WeeklyBytesProcessed []analytics.WeekValue `json:"weeklyBytesProcessed"`
	WeeklySlotMS         []analytics.WeekValue `json:"weeklySlotMs"`
	BytesProcessedHourly []analytics.DateValue `json:"bytesProcessedHourly"`
	SlotRateHourly       []analytics.DateValue `json:"slotRateHourly"`
	KPIs                 PulseKPIs             `json:"kpis"`
	Reservations         Reservations          `json:"reservations"`
	Debug                string                `json:"debug,omitempty"`
}

func (c *Composer) PulseData(ctx context.Context, project string) (*PulsePayload, error) {
	defer track("pulse_data")()

	// Three independent windows: current week, previous week, trailing five
	// weeks. They share nothing, so they run concurrently.
	var (
		currentRows, previousRows, trailingRows []warehouse.Row
		currentErr, previousErr, trailingErr    error
	)

	done := make(chan struct{}, 3)
	go func() {
		currentRows, _, currentErr = c.runner.Query(ctx, "", func(table string) string {
			return jobTelemetrySQL(table, 168, project)
		})
		done <- struct{}{}
	}()
	go func() {
		previousRows, _, previousErr = c.runner.Query(ctx, "", func(table string) string {
			return jobWindowSQL(table, 336, 168, project)
		})
		done <- struct{}{}
	}()
	go func() {
		trailingRows, _, trailingErr = c.runner.Query(ctx, "", func(table string) string {
			return jobTelemetrySQL(table, 840, project)
		})
		done <- struct{}{}
	}()
	for i := 0; i < 3; i++ {
		<-done
	}

	payload := &PulsePayload{
		WeeklyBytesProcessed: []analytics.WeekValue{},
		WeeklySlotMS:         []analytics.WeekValue{},
		BytesProcessedHourly: []analytics.DateValue{},
		SlotRateHourly:       []analytics.DateValue{},
		KPIs: PulseKPIs{
			QueryCacheRateWTD: c.dash.QueryCacheRate,
		},
		Reservations: Reservations{
			TotalSlotCapacity: c.dash.SlotCapacity,
			TotalSlots:        c.dash.TotalSlots,
			TotalIdleSlots:    c.dash.TotalIdleSlots,
		},
	}

	var notes []string
	for _, e := range []error{currentErr, previousErr, trailingErr} {
		if e != nil {
			notes = append(notes, e.Error())
		}
	}
	if len(notes) > 0 {
		degraded("pulse_data")
		logger.Error("Pulse sub-query failed", zap.Strings("errors", notes))
		payload.Debug = "partial data: " + strings.Join(notes, "; ")
	}

	current := analytics.JobRecordsFromRows(currentRows)
	previous := analytics.JobRecordsFromRows(previousRows)
	trailing := analytics.JobRecordsFromRows(trailingRows)

	sumTB := func(jobs []analytics.JobRecord) float64 {
		return analytics.BytesToTB(analytics.SumBytesProcessed(jobs))
	}
	sumSlotMillions := func(jobs []analytics.JobRecord) float64 {
		return float64(analytics.SumSlotMS(jobs)) / 1e6
	}

	payload.WeeklyBytesProcessed = analytics.WeeklySeries(trailing, 5, sumTB)
	payload.WeeklySlotMS = analytics.WeeklySeries(trailing, 5, sumSlotMillions)
	payload.BytesProcessedHourly = analytics.DailySeries(current, func(day []analytics.JobRecord) float64 {
		return analytics.BytesToGB(analytics.SumBytesProcessed(day))
	})
	payload.SlotRateHourly = analytics.DailySeries(current, func(day []analytics.JobRecord) float64 {
		return analytics.Avg(day, func(j analytics.JobRecord) float64 {
			return analytics.SlotMSToSeconds(j.TotalSlotMS)
		})
	})

	payload.KPIs.BytesProcessedWTD = analytics.Round2(sumTB(current))
	payload.KPIs.BytesProcessedChange = analytics.Round1(analytics.PercentChange(sumTB(current), sumTB(previous)))
	payload.KPIs.SlotMSWTD = analytics.Round1(sumSlotMillions(current))
	payload.KPIs.SlotMSChange = analytics.Round1(analytics.PercentChange(sumSlotMillions(current), sumSlotMillions(previous)))
	payload.KPIs.AvgJobDurationWTD = analytics.Round1(analytics.AvgDurationSeconds(current))
	payload.KPIs.JobsDelayedWTD = analytics.Round1(analytics.DelayedJobsPct(current))

	return payload, nil
}

type ProjectOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

func (c *Composer) Projects(ctx context.Context) ([]ProjectOption, error) {
	defer track("projects")()

	options := []ProjectOption{
		{ID: "any_value", Name: "is any value", DisplayName: "All Projects"},
	}

	rows, _, err := c.runner.Query(ctx, "", func(table string) string {
		return jobTelemetrySQL(table, 720, "")
	})
	if err != nil {
		degraded("projects")
		logger.Error("Projects query failed", zap.Error(err))
		return options, nil
	}

	jobs := analytics.JobRecordsFromRows(rows)

	lastActivity := make(map[string]time.Time)
	var order []string
	for _, j := range jobs {
		if j.ProjectID == "" {
			continue
		}
		if _, ok := lastActivity[j.ProjectID]; !ok {
			order = append(order, j.ProjectID)
		}
		if j.CreationTime.After(lastActivity[j.ProjectID]) {
			lastActivity[j.ProjectID] = j.CreationTime
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lastActivity[order[a]].After(lastActivity[order[b]])
	})

	for _, id := range order {
		options = append(options, ProjectOption{ID: id, Name: id, DisplayName: id})
	}
	return options, nil
}

type TopQuery struct {
	JobID     string `json:"jobId"`
	QueryText string `json:"queryText"`
	Query     string `json:"query"`
}

type SpilledToDisk struct {
	Average float64 `json:"average"`
	Unit    string  `json:"unit"`
}

type InvestigationPayload struct {
	JobsByHour    []analytics.HourCount   `json:"jobsByHour"`
	JobTypes      []analytics.JobTypeStat `json:"jobTypes"`
	SpilledToDisk SpilledToDisk           `json:"spilledToDisk"`
	TopQueries    []TopQuery              `json:"topQueries"`
	TopTables     []analytics.TableStat   `json:"topTables"`
	Debug         string                  `json:"debug,omitempty"`
}

func (c *Composer) TimeWindowInvestigation(ctx context.Context, filter string) (*InvestigationPayload, error) {
	defer track("time_window_investigation")()

	window := analytics.ResolveInvestigationFilter(filter, c.defaultHours)

	payload := &InvestigationPayload{
		JobsByHour:    []analytics.HourCount{},
		JobTypes:      []analytics.JobTypeStat{},
		SpilledToDisk: SpilledToDisk{Average: 0, Unit: "MiB/QUERY"},
		TopQueries:    []TopQuery{},
		TopTables:     []analytics.TableStat{},
	}

	rows, _, err := c.runner.Query(ctx, "", func(table string) string {
		return jobTelemetrySQL(table, window.Hours, "")
	})
	if err != nil {
		degraded("time_window_investigation")
		logger.Error("Investigation query failed", zap.Error(err))
		payload.Debug = "telemetry unavailable: " + err.Error()
		return payload, nil
	}

	jobs := analytics.JobRecordsFromRows(rows)

	payload.JobsByHour = analytics.JobsByHour(jobs)
	payload.JobTypes = analytics.JobTypeRollup(jobs, 6)
	payload.TopTables = analytics.TableUsage(jobs, 5)

	var candidates []analytics.JobRecord
	for _, j := range jobs {
		if j.Query != "" && j.TotalSlotMS > 0 {
			candidates = append(candidates, j)
		}
	}
	for _, j := range analytics.TopNBySlotMS(candidates, 5) {
		payload.TopQueries = append(payload.TopQueries, TopQuery{
			JobID:     prefixLabel(j.JobID, 12),
			QueryText: prefixLabel(j.Query, 50),
			Query:     j.Query,
		})
	}

	return payload, nil
}

func displayName(projectID string) string {
	words := strings.Split(strings.ReplaceAll(projectID, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
