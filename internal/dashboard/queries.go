package dashboard

import (
	"fmt"
	"strings"
)

const jobsTable = "INFORMATION_SCHEMA.JOBS_BY_PROJECT"

// telemetryTable qualifies the jobs view with a region candidate, or leaves
// it unqualified for the final fallback attempt.
func telemetryTable(region string) string {
	if region == "" {
		return jobsTable
	}
	return fmt.Sprintf("`%s.%s`", region, jobsTable)
}

// jobTelemetrySQL selects the raw per-job telemetry columns every view is
// derived from, bounded to the last `hours` hours.
func jobTelemetrySQL(table string, hours int, project string) string {
	return jobWindowSQL(table, hours, 0, project)
}

// jobWindowSQL bounds the telemetry select to the half-open window
// [now-fromHours, now-toHours); toHours 0 means now.
func jobWindowSQL(table string, fromHours, toHours int, project string) string {
	var b strings.Builder
	b.WriteString(`SELECT
    job_id,
    project_id,
    user_email,
    creation_time,
    start_time,
    end_time,
    total_slot_ms,
    total_bytes_processed,
    state,
    error_result IS NOT NULL AS has_error,
    error_result.reason AS error_reason,
    query
FROM `)
	b.WriteString(table)
	fmt.Fprintf(&b, `
WHERE creation_time >= TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL %d HOUR)`, fromHours)
	if toHours > 0 {
		fmt.Fprintf(&b, `
    AND creation_time < TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL %d HOUR)`, toHours)
	}
	b.WriteString(`
    AND job_type = 'QUERY'`)
	if clause := projectClause(project); clause != "" {
		b.WriteString("\n    ")
		b.WriteString(clause)
	}
	return b.String()
}

func projectClause(project string) string {
	if project == "" || project == "any_value" {
		return ""
	}
	return fmt.Sprintf("AND project_id = '%s'", strings.ReplaceAll(project, "'", ""))
}
