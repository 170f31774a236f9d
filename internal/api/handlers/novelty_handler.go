package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/metrics"
	"github.com/autoscholar/backend/internal/novelty"
	"github.com/autoscholar/backend/pkg/logger"
)

type NoveltyHandler struct {
	scorer *novelty.Scorer
}

func NewNoveltyHandler(scorer *novelty.Scorer) *NoveltyHandler {
	return &NoveltyHandler{scorer: scorer}
}

func (h *NoveltyHandler) HandleScore(c *fiber.Ctx) error {
	var req struct {
		Title    string `json:"title"`
		Abstract string `json:"abstract"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Abstract == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Abstract is required",
		})
	}

	score, err := h.scorer.Score(c.Context(), req.Title, req.Abstract)
	if err != nil {
		logger.Error("Novelty scoring failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to score novelty",
		})
	}

	metrics.NoveltyScore.Observe(score.Novelty)

	return c.JSON(score)
}
