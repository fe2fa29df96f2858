package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/bq-insights/backend/internal/optimizer"
	"github.com/bq-insights/backend/pkg/logger"
)

// WebSocketHandler streams optimization sessions: each "optimize" message
// runs the same flow as the REST endpoint, but forwards agent events as they
// arrive instead of waiting for the final one.
type WebSocketHandler struct {
	manager *optimizer.Manager
}

func NewWebSocketHandler(manager *optimizer.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type  string `json:"type"`
			Query string `json:"query"`
			DDL   string `json:"ddl"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "optimize" {
			continue
		}

		if msg.Query == "" || msg.DDL == "" {
			h.sendError(c, "Both 'query' and 'ddl' are required")
			continue
		}

		logger.Info("Processing WebSocket optimization",
			zap.Int("query_length", len(msg.Query)),
		)

		err = h.streamOptimization(c, msg.Query, msg.DDL)
		if err != nil {
			logger.Error("Failed to stream optimization", zap.Error(err))
			h.sendError(c, "Failed to optimize query")
		}
	}
}

func (h *WebSocketHandler) streamOptimization(c *websocket.Conn, query, ddl string) error {
	ctx := context.Background()

	h.sendFrame(c, "status", "Analyzing query...")

	result, err := h.manager.OptimizeStream(ctx, query, ddl, func(event optimizer.Event) error {
		if event.Final {
			return nil
		}
		return c.WriteJSON(map[string]interface{}{
			"type":    "event",
			"author":  event.Author,
			"content": event.Text,
		})
	})
	if err != nil {
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":            "complete",
		"session_id":      result.SessionID,
		"recommendations": result.Recommendations,
	})
}

func (h *WebSocketHandler) sendFrame(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
