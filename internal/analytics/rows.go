package analytics

import (
	"time"

	"github.com/bq-insights/backend/internal/warehouse"
)

// JobRecordsFromRows decodes raw telemetry rows into JobRecords. Rows are
// expected to match the job-telemetry column set built in the dashboard
// package; unexpected shapes decode to zero values rather than panicking.
func JobRecordsFromRows(rows []warehouse.Row) []JobRecord {
	records := make([]JobRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, JobRecord{
			JobID:          rowString(row, "job_id"),
			ProjectID:      rowString(row, "project_id"),
			UserEmail:      rowString(row, "user_email"),
			CreationTime:   rowTime(row, "creation_time"),
			StartTime:      rowTime(row, "start_time"),
			EndTime:        rowTime(row, "end_time"),
			TotalSlotMS:    rowInt64(row, "total_slot_ms"),
			BytesProcessed: rowInt64(row, "total_bytes_processed"),
			State:          rowString(row, "state"),
			HasError:       rowBool(row, "has_error"),
			ErrorReason:    rowString(row, "error_reason"),
			Query:          rowString(row, "query"),
		})
	}
	return records
}

func rowString(row warehouse.Row, col string) string {
	if v, ok := row[col].(string); ok {
		return v
	}
	return ""
}

func rowInt64(row warehouse.Row, col string) int64 {
	switch v := row[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func rowBool(row warehouse.Row, col string) bool {
	switch v := row[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	}
	return false
}

func rowTime(row warehouse.Row, col string) time.Time {
	if v, ok := row[col].(time.Time); ok {
		return v
	}
	return time.Time{}
}
