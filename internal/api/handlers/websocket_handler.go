package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/compare"
	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/pkg/logger"
)

// WebSocketHandler streams comparison progress: one message per pipeline
// stage, then the full result.
type WebSocketHandler struct {
	service  *compare.Service
	resolver PaperResolver
}

func NewWebSocketHandler(service *compare.Service, resolver PaperResolver) *WebSocketHandler {
	return &WebSocketHandler{
		service:  service,
		resolver: resolver,
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
			Type     string           `json:"type"`
			PaperIDs []models.PaperID `json:"paper_ids"`
			Papers   []models.Paper   `json:"papers"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "compare" {
			continue
		}

		logger.Info("Processing WebSocket comparison", zap.Int("papers", len(msg.PaperIDs)+len(msg.Papers)))

		err = h.streamComparison(c, msg.PaperIDs, msg.Papers)
		if err != nil {
			logger.Error("Failed to stream comparison", zap.Error(err))
			h.sendError(c, "Failed to compare papers")
		}
	}
}

func (h *WebSocketHandler) streamComparison(c *websocket.Conn, ids []models.PaperID, inline []models.Paper) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	papers := inline
	for _, id := range ids {
		resolved, err := h.resolver.ResolvePaper(ctx, id)
		if err != nil {
			logger.Warn("Failed to resolve paper for stream",
				zap.String("paper_id", string(id)),
				zap.Error(err),
			)
			continue
		}
		papers = append(papers, *resolved)
	}

	if len(papers) < 2 {
		h.sendError(c, "Need at least 2 resolvable papers")
		return nil
	}

	progress := func(stage string) {
		h.sendStage(c, stage)
	}

	result, err := h.service.Compare(ctx, papers, progress)
	if err != nil {
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":   "complete",
		"result": result,
	})
}

func (h *WebSocketHandler) sendStage(c *websocket.Conn, stage string) {
	msg := map[string]interface{}{
		"type":  "progress",
		"stage": stage,
	}

	if err := c.WriteJSON(msg); err != nil {
		logger.Warn("Failed to send progress", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}
