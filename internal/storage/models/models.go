package models

import "time"

type OptimizationRecord struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"user_id"`
	SessionID       string    `json:"session_id"`
	QueryText       string    `json:"query_text"`
	DDL             string    `json:"ddl"`
	Recommendations string    `json:"recommendations"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
	LatencyMS       int64     `json:"latency_ms"`
	CreatedAt       time.Time `json:"created_at"`
}
