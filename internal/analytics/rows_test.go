package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bq-insights/backend/internal/warehouse"
)

func TestJobRecordsFromRows(t *testing.T) {
	created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	rows := []warehouse.Row{
		{
			"job_id":                "job-1",
			"project_id":            "alpha",
			"user_email":            "a@example.com",
			"creation_time":         created,
			"start_time":            created.Add(time.Second),
			"end_time":              created.Add(time.Minute),
			"total_slot_ms":         int64(12345),
			"total_bytes_processed": int64(1_000_000_000),
			"state":                 "DONE",
			"has_error":             true,
			"error_reason":          "quotaExceeded",
			"query":                 "SELECT 1",
		},
	}

	records := JobRecordsFromRows(rows)

	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "job-1", r.JobID)
	assert.Equal(t, int64(12345), r.TotalSlotMS)
	assert.True(t, r.HasError)
	assert.Equal(t, int64(59), r.DurationSeconds())
	assert.Equal(t, int64(1), r.QueueSeconds())
}

func TestJobRecordsFromRowsTolerantOfMissingColumns(t *testing.T) {
	rows := []warehouse.Row{
		{"job_id": "job-1"},
		{},
		{"total_slot_ms": nil, "has_error": nil},
	}

	records := JobRecordsFromRows(rows)

	require.Len(t, records, 3)
	assert.Equal(t, "job-1", records[0].JobID)
	assert.Zero(t, records[1].TotalSlotMS)
	assert.False(t, records[2].HasError)
	assert.Zero(t, records[2].DurationSeconds())
}

func TestJobRecordsFromRowsCoercesNumericTypes(t *testing.T) {
	rows := []warehouse.Row{
		{"total_slot_ms": 100, "total_bytes_processed": 1.5e9, "has_error": int64(1)},
	}

	records := JobRecordsFromRows(rows)

	require.Len(t, records, 1)
	assert.Equal(t, int64(100), records[0].TotalSlotMS)
	assert.Equal(t, int64(1_500_000_000), records[0].BytesProcessed)
	assert.True(t, records[0].HasError)
}
