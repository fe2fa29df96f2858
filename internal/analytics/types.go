package analytics

import "time"

// JobRecord is one warehouse job execution as reported by INFORMATION_SCHEMA.
// Records are read-only telemetry; nothing in this package mutates them.
type JobRecord struct {
	JobID          string
	ProjectID      string
	UserEmail      string
	CreationTime   time.Time
	StartTime      time.Time
	EndTime        time.Time
	TotalSlotMS    int64
	BytesProcessed int64
	State          string
	HasError       bool
	ErrorReason    string
	Query          string
}

// DurationSeconds is the job's elapsed wall time.
func (j JobRecord) DurationSeconds() int64 {
	if j.EndTime.IsZero() || j.StartTime.IsZero() || j.EndTime.Before(j.StartTime) {
		return 0
	}
	return int64(j.EndTime.Sub(j.StartTime) / time.Second)
}

// QueueSeconds is the delay between submission and execution start.
func (j JobRecord) QueueSeconds() int64 {
	if j.StartTime.IsZero() || j.CreationTime.IsZero() || j.StartTime.Before(j.CreationTime) {
		return 0
	}
	return int64(j.StartTime.Sub(j.CreationTime) / time.Second)
}
