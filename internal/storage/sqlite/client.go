package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/bq-insights/backend/internal/storage/models"
	"github.com/bq-insights/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS optimization_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		query_text TEXT NOT NULL,
		ddl TEXT,
		recommendations TEXT,
		status TEXT NOT NULL,
		error TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_optimization_session ON optimization_history(session_id);
	CREATE INDEX IF NOT EXISTS idx_optimization_created ON optimization_history(created_at);
	CREATE INDEX IF NOT EXISTS idx_optimization_status ON optimization_history(status);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertOptimization(record *models.OptimizationRecord) error {
	query := `
		INSERT INTO optimization_history (user_id, session_id, query_text, ddl, recommendations,
			status, error, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := c.db.Exec(
		query,
		record.UserID,
		record.SessionID,
		record.QueryText,
		record.DDL,
		record.Recommendations,
		record.Status,
		record.Error,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert optimization record: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}

	logger.Info("Optimization recorded",
		zap.String("session_id", record.SessionID),
		zap.String("status", record.Status),
		zap.Int64("latency_ms", record.LatencyMS),
	)

	return nil
}

func (c *Client) GetOptimizationHistory(limit int) ([]models.OptimizationRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, session_id, query_text, ddl, recommendations, status, error, latency_ms, created_at
		FROM optimization_history
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get optimization history: %w", err)
	}
	defer rows.Close()

	var records []models.OptimizationRecord
	for rows.Next() {
		var r models.OptimizationRecord
		var createdAt int64

		err := rows.Scan(
			&r.ID,
			&r.UserID,
			&r.SessionID,
			&r.QueryText,
			&r.DDL,
			&r.Recommendations,
			&r.Status,
			&r.Error,
			&r.LatencyMS,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, nil
}
