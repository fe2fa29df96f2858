package warehouse

import (
	"context"
	"fmt"
	"time"
)

// Row is one result row keyed by column name. Values carry whatever the
// driver produced: string, int64, float64, time.Time or nil.
type Row map[string]interface{}

// Source executes SQL against the warehouse. Implementations own timeouts and
// connection state; callers own region fallback and never retry here.
type Source interface {
	Execute(ctx context.Context, sql string, timeout time.Duration) ([]Row, error)
}

// Introspector looks up job and schema metadata used by the query-details and
// project views.
type Introspector interface {
	JobInfo(ctx context.Context, jobID, location string) (*JobInfo, error)
	TableMeta(ctx context.Context, ref TableRef) (*TableMeta, error)
	ListDatasets(ctx context.Context, projectID string) ([]Dataset, error)
}

type JobInfo struct {
	Query            string
	ReferencedTables []TableRef
}

type TableRef struct {
	ProjectID string
	DatasetID string
	TableID   string
}

func (r TableRef) FullID() string {
	return fmt.Sprintf("%s.%s.%s", r.ProjectID, r.DatasetID, r.TableID)
}

type TableMeta struct {
	Ref       TableRef
	ViewQuery string
	Fields    []Field
}

type Field struct {
	Name string
	Type string
}

type Dataset struct {
	Name       string
	TableCount int
}

// QueryError wraps a failed statement execution.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("warehouse query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
