package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bq-insights/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func TestInsertAndGetOptimizationHistory(t *testing.T) {
	client := newTestClient(t)

	record := &models.OptimizationRecord{
		UserID:          "user-1",
		SessionID:       "session-1",
		QueryText:       "SELECT 1",
		DDL:             "CREATE TABLE t (x INT64)",
		Recommendations: "use partitioning",
		Status:          "completed",
		LatencyMS:       1200,
		CreatedAt:       time.Now(),
	}

	require.NoError(t, client.InsertOptimization(record))
	assert.NotZero(t, record.ID)

	records, err := client.GetOptimizationHistory(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "session-1", records[0].SessionID)
	assert.Equal(t, "use partitioning", records[0].Recommendations)
	assert.Equal(t, "completed", records[0].Status)
	assert.Equal(t, int64(1200), records[0].LatencyMS)
}

func TestGetOptimizationHistoryOrderAndLimit(t *testing.T) {
	client := newTestClient(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		record := &models.OptimizationRecord{
			UserID:    "user-1",
			SessionID: "session",
			QueryText: "SELECT 1",
			Status:    "completed",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		record.SessionID = record.SessionID + "-" + record.CreatedAt.Format("04")
		require.NoError(t, client.InsertOptimization(record))
	}

	records, err := client.GetOptimizationHistory(3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Newest first.
	assert.True(t, records[0].CreatedAt.After(records[1].CreatedAt) ||
		records[0].CreatedAt.Equal(records[1].CreatedAt))
}

func TestGetOptimizationHistoryDefaultsLimit(t *testing.T) {
	client := newTestClient(t)

	records, err := client.GetOptimizationHistory(0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestInsertOptimizationStoresFailure(t *testing.T) {
	client := newTestClient(t)

	record := &models.OptimizationRecord{
		UserID:    "user-1",
		SessionID: "session-1",
		QueryText: "SELECT 1",
		Status:    "failed",
		Error:     "model unavailable",
		CreatedAt: time.Now(),
	}

	require.NoError(t, client.InsertOptimization(record))

	records, err := client.GetOptimizationHistory(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "failed", records[0].Status)
	assert.Equal(t, "model unavailable", records[0].Error)
}
