package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bq-insights/backend/internal/metrics"
	"github.com/bq-insights/backend/internal/storage/models"
	"github.com/bq-insights/backend/pkg/logger"
)

// Recorder persists finished optimization attempts. Persistence failures are
// logged, never surfaced to the caller.
type Recorder interface {
	InsertOptimization(record *models.OptimizationRecord) error
}

type Result struct {
	Recommendations string
	SessionID       string
}

// Manager runs the per-request session lifecycle around the Runner: create a
// session under a fresh user id, invoke the agent, keep the last event, and
// delete the session on every path with the ids it was created with. The
// invocation carries no deadline of its own; the caller's context and the
// transport own timing out.
type Manager struct {
	runner  Runner
	appName string
	history Recorder
}

func NewManager(runner Runner, appName string, history Recorder) *Manager {
	return &Manager{
		runner:  runner,
		appName: appName,
		history: history,
	}
}

// Optimize runs the full flow and returns the aggregated recommendation text.
func (m *Manager) Optimize(ctx context.Context, query, ddl string) (*Result, error) {
	return m.run(ctx, query, ddl, nil)
}

// OptimizeStream runs the same flow but forwards every event to emit as it
// arrives. An emit error aborts the invocation.
func (m *Manager) OptimizeStream(ctx context.Context, query, ddl string, emit func(Event) error) (*Result, error) {
	return m.run(ctx, query, ddl, emit)
}

func (m *Manager) run(ctx context.Context, query, ddl string, emit func(Event) error) (*Result, error) {
	// Cancelling on every exit path unblocks the runner's event producer
	// when the consumer stops early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := time.Now()
	userID := uuid.New().String()

	sessionID, err := m.runner.CreateSession(ctx, m.appName, userID)
	if err != nil {
		metrics.OptimizeSessions.WithLabelValues("create_failed").Inc()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	defer func() {
		// Teardown must happen even when the request context is already
		// cancelled or expired.
		if err := m.runner.DeleteSession(context.Background(), m.appName, userID, sessionID); err != nil {
			logger.Warn("Session cleanup failed",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}()

	logger.Info("Agent invocation started",
		zap.String("session_id", sessionID),
		zap.Int("query_length", len(query)),
		zap.Int("ddl_length", len(ddl)),
	)

	events, err := m.runner.Run(ctx, userID, sessionID, BuildPrompt(query, ddl))
	if err != nil {
		m.finish(query, ddl, sessionID, userID, "", started, err)
		return nil, fmt.Errorf("failed to invoke agent: %w", err)
	}

	var last Event
	for event := range events {
		if event.Err != nil {
			m.finish(query, ddl, sessionID, userID, "", started, event.Err)
			return nil, fmt.Errorf("agent run failed: %w", event.Err)
		}
		if emit != nil {
			if err := emit(event); err != nil {
				m.finish(query, ddl, sessionID, userID, "", started, err)
				return nil, fmt.Errorf("failed to forward event: %w", err)
			}
		}
		last = event
	}

	m.finish(query, ddl, sessionID, userID, last.Text, started, nil)

	return &Result{
		Recommendations: last.Text,
		SessionID:       sessionID,
	}, nil
}

func (m *Manager) finish(query, ddl, sessionID, userID, recommendations string, started time.Time, runErr error) {
	status := "completed"
	errText := ""
	if runErr != nil {
		status = "failed"
		errText = runErr.Error()
	}
	metrics.OptimizeSessions.WithLabelValues(status).Inc()

	logger.Info("Agent invocation finished",
		zap.String("session_id", sessionID),
		zap.String("status", status),
		zap.Duration("latency", time.Since(started)),
	)

	if m.history == nil {
		return
	}

	record := &models.OptimizationRecord{
		UserID:          userID,
		SessionID:       sessionID,
		QueryText:       query,
		DDL:             ddl,
		Recommendations: recommendations,
		Status:          status,
		Error:           errText,
		LatencyMS:       time.Since(started).Milliseconds(),
		CreatedAt:       time.Now(),
	}
	if err := m.history.InsertOptimization(record); err != nil {
		logger.Warn("Failed to record optimization", zap.Error(err))
	}
}
