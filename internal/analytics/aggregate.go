package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Chart and rollup shapes. Field tags mirror the dashboard payload contract.

type SlotPoint struct {
	Time  string  `json:"time"`
	Slots float64 `json:"slots"`
	Jobs  int     `json:"jobs"`
}

type DurationBucket struct {
	Bucket string `json:"duration_bucket"`
	Count  int    `json:"count"`
}

type BytesPoint struct {
	Time  string  `json:"time"`
	Bytes float64 `json:"bytes"`
}

type ErrorSlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

type UserStat struct {
	UserEmail   string  `json:"user_email"`
	QueryCount  int     `json:"query_count"`
	SlotHours   float64 `json:"slot_hours"`
	GBProcessed float64 `json:"gb_processed"`
}

type ProjectStat struct {
	ProjectID    string  `json:"project_id"`
	TotalQueries int     `json:"total_queries"`
	SlotHours    float64 `json:"slot_hours"`
	ActiveUsers  int     `json:"active_users"`
	TBProcessed  float64 `json:"tb_processed"`
	ErrorCount   int     `json:"error_count"`
}

type DateValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type WeekValue struct {
	Week  string  `json:"week"`
	Value float64 `json:"value"`
}

type HourCount struct {
	Hour string `json:"hour"`
	Jobs int    `json:"jobs"`
}

type UsagePoint struct {
	Time      string  `json:"time"`
	Queries   int     `json:"queries"`
	SlotHours float64 `json:"slotHours"`
}

type JobTypeStat struct {
	JobType           string `json:"jobType"`
	Jobs              int    `json:"jobs"`
	JobStages         int    `json:"jobStages"`
	AvgRecordsRead    string `json:"avgRecordsRead"`
	AvgRecordsWritten string `json:"avgRecordsWritten"`
	AvgSlotMS         string `json:"avgSlotMs"`
}

type TableStat struct {
	Project     string  `json:"project"`
	Dataset     string  `json:"dataset"`
	Table       string  `json:"table"`
	UniqueJobs  int     `json:"uniqueJobs"`
	JobsPhases  string  `json:"jobsPhases"`
	JobsAverage string  `json:"jobsAverage"`
	JobsReserve float64 `json:"jobsReserve"`
}

// Unit conversions. Divisors are exact powers of ten shared by every caller.

func SlotMSToHours(ms int64) float64 { return float64(ms) / 3600000 }

func SlotMSToSeconds(ms int64) float64 { return float64(ms) / 1000 }

func BytesToGB(b int64) float64 { return float64(b) / 1e9 }

func BytesToTB(b int64) float64 { return float64(b) / 1e12 }

// ErrorRate is errors/total as a percentage, 0 when total is 0.
func ErrorRate(errors, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(errors) / float64(total) * 100
}

// PercentChange is the relative change vs a prior period, 0 when the baseline
// is zero or negative.
func PercentChange(current, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

func Round1(v float64) float64 { return math.Round(v*10) / 10 }

func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// HourlySlotUsage buckets jobs by hour of day: total slot-seconds and job
// count per hour. Hours with no jobs are omitted.
func HourlySlotUsage(jobs []JobRecord) []SlotPoint {
	type agg struct {
		slots float64
		jobs  int
	}
	byHour := make(map[int]*agg)
	for _, j := range jobs {
		h := j.CreationTime.Hour()
		a := byHour[h]
		if a == nil {
			a = &agg{}
			byHour[h] = a
		}
		a.slots += SlotMSToSeconds(j.TotalSlotMS)
		a.jobs++
	}

	points := make([]SlotPoint, 0, len(byHour))
	for h := 0; h < 24; h++ {
		if a, ok := byHour[h]; ok {
			points = append(points, SlotPoint{Time: hourLabel(h), Slots: a.slots, Jobs: a.jobs})
		}
	}
	return points
}

var durationBucketLabels = []string{"0-1min", "1-5min", "5-15min", "15-60min", "60min+"}

var durationBucketBounds = []int64{60, 300, 900, 3600}

// DurationBuckets classifies jobs by elapsed time into the fixed five-bin
// histogram. Every bin is emitted, in order, even when empty.
func DurationBuckets(jobs []JobRecord) []DurationBucket {
	counts := make([]int, len(durationBucketLabels))
	for _, j := range jobs {
		counts[durationBucketIndex(j.DurationSeconds())]++
	}

	buckets := make([]DurationBucket, len(durationBucketLabels))
	for i, label := range durationBucketLabels {
		buckets[i] = DurationBucket{Bucket: label, Count: counts[i]}
	}
	return buckets
}

func durationBucketIndex(seconds int64) int {
	for i, bound := range durationBucketBounds {
		if seconds <= bound {
			return i
		}
	}
	return len(durationBucketBounds)
}

// HourlyBytes buckets processed bytes (as TB) by hour of day. Jobs that
// processed nothing are skipped, matching the source filter.
func HourlyBytes(jobs []JobRecord) []BytesPoint {
	byHour := make(map[int]float64)
	for _, j := range jobs {
		if j.BytesProcessed <= 0 {
			continue
		}
		byHour[j.CreationTime.Hour()] += BytesToTB(j.BytesProcessed)
	}

	points := make([]BytesPoint, 0, len(byHour))
	for h := 0; h < 24; h++ {
		if tb, ok := byHour[h]; ok {
			points = append(points, BytesPoint{Time: hourLabel(h), Bytes: tb})
		}
	}
	return points
}

var errorColors = []string{"#ea4335", "#fbbc04", "#ff6d01", "#9aa0a6", "#34a853"}

// ErrorBreakdown ranks failed jobs by error reason, top `limit`, with the
// fixed chart palette cycled over the slices.
func ErrorBreakdown(jobs []JobRecord, limit int) []ErrorSlice {
	counts := make(map[string]int)
	var order []string
	for _, j := range jobs {
		if !j.HasError {
			continue
		}
		reason := j.ErrorReason
		if reason == "" {
			reason = "Unknown"
		}
		if _, ok := counts[reason]; !ok {
			order = append(order, reason)
		}
		counts[reason]++
	}

	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	slices := make([]ErrorSlice, 0, len(order))
	for i, reason := range order {
		slices = append(slices, ErrorSlice{
			Name:  reason,
			Value: counts[reason],
			Color: errorColors[i%len(errorColors)],
		})
	}
	return slices
}

// TopUsers ranks users by slot-hours descending, truncated to n. Ties keep
// first-seen row order.
func TopUsers(jobs []JobRecord, n int) []UserStat {
	index := make(map[string]int)
	var stats []UserStat
	for _, j := range jobs {
		if j.UserEmail == "" {
			continue
		}
		i, ok := index[j.UserEmail]
		if !ok {
			i = len(stats)
			index[j.UserEmail] = i
			stats = append(stats, UserStat{UserEmail: j.UserEmail})
		}
		stats[i].QueryCount++
		stats[i].SlotHours += SlotMSToHours(j.TotalSlotMS)
		stats[i].GBProcessed += BytesToGB(j.BytesProcessed)
	}

	sort.SliceStable(stats, func(a, b int) bool {
		return stats[a].SlotHours > stats[b].SlotHours
	})
	if n > 0 && len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

// ProjectRollup aggregates jobs per project, ordered by slot-hours descending.
func ProjectRollup(jobs []JobRecord) []ProjectStat {
	type agg struct {
		stat  ProjectStat
		jobs  map[string]bool
		users map[string]bool
	}
	index := make(map[string]int)
	var aggs []*agg
	for _, j := range jobs {
		i, ok := index[j.ProjectID]
		if !ok {
			i = len(aggs)
			index[j.ProjectID] = i
			aggs = append(aggs, &agg{
				stat:  ProjectStat{ProjectID: j.ProjectID},
				jobs:  make(map[string]bool),
				users: make(map[string]bool),
			})
		}
		a := aggs[i]
		a.jobs[j.JobID] = true
		a.stat.SlotHours += SlotMSToHours(j.TotalSlotMS)
		a.stat.TBProcessed += BytesToTB(j.BytesProcessed)
		if j.UserEmail != "" {
			a.users[j.UserEmail] = true
		}
		if j.HasError {
			a.stat.ErrorCount++
		}
	}

	stats := make([]ProjectStat, 0, len(aggs))
	for _, a := range aggs {
		a.stat.TotalQueries = len(a.jobs)
		a.stat.ActiveUsers = len(a.users)
		stats = append(stats, a.stat)
	}
	sort.SliceStable(stats, func(a, b int) bool {
		return stats[a].SlotHours > stats[b].SlotHours
	})
	return stats
}

// CountDistinctUsers counts distinct non-empty user emails.
func CountDistinctUsers(jobs []JobRecord) int {
	users := make(map[string]bool)
	for _, j := range jobs {
		if j.UserEmail != "" {
			users[j.UserEmail] = true
		}
	}
	return len(users)
}

func CountErrors(jobs []JobRecord) int {
	n := 0
	for _, j := range jobs {
		if j.HasError {
			n++
		}
	}
	return n
}

// SumSlotMS totals slot-milliseconds across jobs.
func SumSlotMS(jobs []JobRecord) int64 {
	var total int64
	for _, j := range jobs {
		total += j.TotalSlotMS
	}
	return total
}

func SumBytesProcessed(jobs []JobRecord) int64 {
	var total int64
	for _, j := range jobs {
		total += j.BytesProcessed
	}
	return total
}

// AvgSlotSeconds is the mean per-job slot-seconds, 0 for no jobs.
func AvgSlotSeconds(jobs []JobRecord) float64 {
	if len(jobs) == 0 {
		return 0
	}
	return SlotMSToSeconds(SumSlotMS(jobs)) / float64(len(jobs))
}

// AvgDurationSeconds is the mean elapsed seconds per job, 0 for no jobs.
func AvgDurationSeconds(jobs []JobRecord) float64 {
	if len(jobs) == 0 {
		return 0
	}
	var total int64
	for _, j := range jobs {
		total += j.DurationSeconds()
	}
	return float64(total) / float64(len(jobs))
}

// DelayedJobsPct is the share of jobs that waited more than a second between
// submission and start.
func DelayedJobsPct(jobs []JobRecord) float64 {
	if len(jobs) == 0 {
		return 0
	}
	delayed := 0
	for _, j := range jobs {
		if j.QueueSeconds() > 1 {
			delayed++
		}
	}
	return float64(delayed) / float64(len(jobs)) * 100
}

// TopNBySlotMS ranks jobs by slot-milliseconds descending and truncates to n.
// The sort is stable: ties keep input row order.
func TopNBySlotMS(jobs []JobRecord, n int) []JobRecord {
	ranked := make([]JobRecord, len(jobs))
	copy(ranked, jobs)
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].TotalSlotMS > ranked[b].TotalSlotMS
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// JobsByHour counts jobs per hour of day, omitting empty hours.
func JobsByHour(jobs []JobRecord) []HourCount {
	byHour := make(map[int]int)
	for _, j := range jobs {
		byHour[j.CreationTime.Hour()]++
	}

	counts := make([]HourCount, 0, len(byHour))
	for h := 0; h < 24; h++ {
		if n, ok := byHour[h]; ok {
			counts = append(counts, HourCount{Hour: hourLabel(h), Jobs: n})
		}
	}
	return counts
}

// HourlyUsage buckets jobs per hour of day with per-hour query counts and
// slot-hours, used by the project detail view.
func HourlyUsage(jobs []JobRecord) []UsagePoint {
	type agg struct {
		queries   int
		slotHours float64
	}
	byHour := make(map[int]*agg)
	for _, j := range jobs {
		h := j.CreationTime.Hour()
		a := byHour[h]
		if a == nil {
			a = &agg{}
			byHour[h] = a
		}
		a.queries++
		a.slotHours += SlotMSToHours(j.TotalSlotMS)
	}

	points := make([]UsagePoint, 0, len(byHour))
	for h := 0; h < 24; h++ {
		if a, ok := byHour[h]; ok {
			points = append(points, UsagePoint{
				Time:      hourLabel(h),
				Queries:   a.queries,
				SlotHours: Round2(a.slotHours),
			})
		}
	}
	return points
}

// DailySeries buckets jobs by calendar day, reducing each day's jobs with the
// supplied function. Labels follow the "Jan 02" form; days run chronologically.
func DailySeries(jobs []JobRecord, reduce func(day []JobRecord) float64) []DateValue {
	byDay := make(map[string][]JobRecord)
	var keys []string
	for _, j := range jobs {
		key := j.CreationTime.Format("2006-01-02")
		if _, ok := byDay[key]; !ok {
			keys = append(keys, key)
		}
		byDay[key] = append(byDay[key], j)
	}
	sort.Strings(keys)

	series := make([]DateValue, 0, len(keys))
	for _, key := range keys {
		day := byDay[key]
		series = append(series, DateValue{
			Date:  day[0].CreationTime.Format("Jan 02"),
			Value: reduce(day),
		})
	}
	return series
}

// WeeklySeries buckets jobs by ISO week, keeps the most recent `weeks`
// buckets, and emits them chronologically labelled by the month of the week's
// Monday.
func WeeklySeries(jobs []JobRecord, weeks int, reduce func(week []JobRecord) float64) []WeekValue {
	byWeek := make(map[string][]JobRecord)
	var keys []string
	for _, j := range jobs {
		year, week := j.CreationTime.ISOWeek()
		key := fmt.Sprintf("%04d-%02d", year, week)
		if _, ok := byWeek[key]; !ok {
			keys = append(keys, key)
		}
		byWeek[key] = append(byWeek[key], j)
	}
	sort.Strings(keys)
	if weeks > 0 && len(keys) > weeks {
		keys = keys[len(keys)-weeks:]
	}

	series := make([]WeekValue, 0, len(keys))
	for _, key := range keys {
		week := byWeek[key]
		series = append(series, WeekValue{
			Week:  weekStart(week[0].CreationTime).Format("Jan"),
			Value: reduce(week),
		})
	}
	return series
}

func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// Avg reduces jobs with per-job values to their mean, 0 when empty.
func Avg(jobs []JobRecord, value func(JobRecord) float64) float64 {
	if len(jobs) == 0 {
		return 0
	}
	total := 0.0
	for _, j := range jobs {
		total += value(j)
	}
	return total / float64(len(jobs))
}

var jobTypeRules = []struct {
	marker string
	label  string
}{
	{"CROSS JOIN", "CROSS EACH"},
	{"WITH", "WITH EACH"},
	{"FULL OUTER", "FULL OUTER"},
	{"HASH JOIN", "HASH JOIN EACH"},
	{"JOIN", "EACH WITH ALL"},
}

// ClassifyJobType labels a query by its dominant join pattern; queries with
// no recognized pattern classify as OTHER.
func ClassifyJobType(query string) string {
	upper := strings.ToUpper(query)
	for _, rule := range jobTypeRules {
		if strings.Contains(upper, rule.marker) {
			return rule.label
		}
	}
	return "OTHER"
}

// JobTypeRollup groups jobs by classified type (OTHER excluded), ordered by
// job count descending, truncated to limit.
func JobTypeRollup(jobs []JobRecord, limit int) []JobTypeStat {
	type agg struct {
		jobs   int
		bytes  int64
		slotMS int64
	}
	index := make(map[string]int)
	var labels []string
	var aggs []*agg
	for _, j := range jobs {
		if j.Query == "" {
			continue
		}
		label := ClassifyJobType(j.Query)
		if label == "OTHER" {
			continue
		}
		i, ok := index[label]
		if !ok {
			i = len(aggs)
			index[label] = i
			labels = append(labels, label)
			aggs = append(aggs, &agg{})
		}
		aggs[i].jobs++
		aggs[i].bytes += j.BytesProcessed
		aggs[i].slotMS += j.TotalSlotMS
	}

	sort.SliceStable(labels, func(a, b int) bool {
		return aggs[index[labels[a]]].jobs > aggs[index[labels[b]]].jobs
	})
	if limit > 0 && len(labels) > limit {
		labels = labels[:limit]
	}

	stats := make([]JobTypeStat, 0, len(labels))
	for _, label := range labels {
		a := aggs[index[label]]
		n := int64(a.jobs)
		stats = append(stats, JobTypeStat{
			JobType:           label,
			Jobs:              a.jobs,
			JobStages:         a.jobs,
			AvgRecordsRead:    formatThousands(a.bytes / 1000 / n),
			AvgRecordsWritten: formatThousands(a.bytes / 2000 / n),
			AvgSlotMS:         formatThousands(a.slotMS / n),
		})
	}
	return stats
}

// TableUsage approximates top-table usage from per-project job telemetry.
func TableUsage(jobs []JobRecord, limit int) []TableStat {
	type agg struct {
		jobs  map[string]bool
		bytes int64
		count int
	}
	index := make(map[string]int)
	var projects []string
	var aggs []*agg
	for _, j := range jobs {
		if j.BytesProcessed <= 0 {
			continue
		}
		i, ok := index[j.ProjectID]
		if !ok {
			i = len(aggs)
			index[j.ProjectID] = i
			projects = append(projects, j.ProjectID)
			aggs = append(aggs, &agg{jobs: make(map[string]bool)})
		}
		aggs[i].jobs[j.JobID] = true
		aggs[i].bytes += j.BytesProcessed
		aggs[i].count++
	}

	sort.SliceStable(projects, func(a, b int) bool {
		return aggs[index[projects[a]]].bytes > aggs[index[projects[b]]].bytes
	})
	if limit > 0 && len(projects) > limit {
		projects = projects[:limit]
	}

	stats := make([]TableStat, 0, len(projects))
	for _, project := range projects {
		a := aggs[index[project]]
		avgGB := BytesToGB(a.bytes) / float64(a.count)
		stats = append(stats, TableStat{
			Project:     project,
			Dataset:     "dataset_name",
			Table:       "table_name",
			UniqueJobs:  len(a.jobs),
			JobsPhases:  fmt.Sprintf("%.2f TiB", BytesToTB(a.bytes)),
			JobsAverage: fmt.Sprintf("%.0f GiB", avgGB),
			JobsReserve: 0,
		})
	}
	return stats
}

func hourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

func formatThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
