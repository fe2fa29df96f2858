package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/bq-insights/backend/internal/warehouse"
	"github.com/bq-insights/backend/pkg/logger"
)

type Client struct {
	client  *bigquery.Client
	project string
}

func NewClient(ctx context.Context, project string) (*Client, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}

	logger.Info("BigQuery client initialized", zap.String("project", client.Project()))

	return &Client{client: client, project: client.Project()}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Project() string {
	return c.project
}

func (c *Client) Execute(ctx context.Context, sql string, timeout time.Duration) ([]warehouse.Row, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	q := c.client.Query(sql)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, &warehouse.QueryError{SQL: sql, Err: err}
	}

	var rows []warehouse.Row
	for {
		var values map[string]bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &warehouse.QueryError{SQL: sql, Err: err}
		}

		row := make(warehouse.Row, len(values))
		for name, v := range values {
			row[name] = v
		}
		rows = append(rows, row)
	}

	logger.Debug("Query executed", zap.Int("rows", len(rows)))

	return rows, nil
}

func (c *Client) JobInfo(ctx context.Context, jobID, location string) (*warehouse.JobInfo, error) {
	job, err := c.client.JobFromIDLocation(ctx, jobID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to look up job %s: %w", jobID, err)
	}

	cfg, err := job.Config()
	if err != nil {
		return nil, fmt.Errorf("failed to read job config: %w", err)
	}

	queryCfg, ok := cfg.(*bigquery.QueryConfig)
	if !ok {
		return nil, fmt.Errorf("job %s is not a query job", jobID)
	}

	info := &warehouse.JobInfo{Query: queryCfg.Q}

	status, err := job.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read job status: %w", err)
	}

	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		for _, t := range stats.ReferencedTables {
			info.ReferencedTables = append(info.ReferencedTables, warehouse.TableRef{
				ProjectID: t.ProjectID,
				DatasetID: t.DatasetID,
				TableID:   t.TableID,
			})
		}
	}

	return info, nil
}

func (c *Client) TableMeta(ctx context.Context, ref warehouse.TableRef) (*warehouse.TableMeta, error) {
	md, err := c.client.DatasetInProject(ref.ProjectID, ref.DatasetID).Table(ref.TableID).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata for %s: %w", ref.FullID(), err)
	}

	meta := &warehouse.TableMeta{Ref: ref, ViewQuery: md.ViewQuery}
	for _, field := range md.Schema {
		meta.Fields = append(meta.Fields, warehouse.Field{
			Name: field.Name,
			Type: string(field.Type),
		})
	}

	return meta, nil
}

func (c *Client) ListDatasets(ctx context.Context, projectID string) ([]warehouse.Dataset, error) {
	it := c.client.Datasets(ctx)
	it.ProjectID = projectID

	var datasets []warehouse.Dataset
	for {
		ds, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list datasets for %s: %w", projectID, err)
		}

		tableCount := 0
		tables := ds.Tables(ctx)
		for {
			_, err := tables.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				logger.Warn("Failed to list tables",
					zap.String("dataset", ds.DatasetID),
					zap.Error(err),
				)
				break
			}
			tableCount++
		}

		datasets = append(datasets, warehouse.Dataset{
			Name:       ds.DatasetID,
			TableCount: tableCount,
		})
	}

	return datasets, nil
}
