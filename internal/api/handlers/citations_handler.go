package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/citations"
	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/pkg/logger"
)

type CitationsHandler struct{}

func NewCitationsHandler() *CitationsHandler {
	return &CitationsHandler{}
}

func (h *CitationsHandler) HandleFormat(c *fiber.Ctx) error {
	var req struct {
		Paper models.Paper    `json:"paper"`
		Style citations.Style `json:"style"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Style == "" {
		req.Style = citations.StyleAPA
	}

	formatted, err := citations.Format(&req.Paper, req.Style)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"style":    req.Style,
		"citation": formatted,
	})
}

func (h *CitationsHandler) HandleExport(c *fiber.Ctx) error {
	var req struct {
		Papers []models.Paper  `json:"papers"`
		Style  citations.Style `json:"style"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Papers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "papers is required",
		})
	}
	if req.Style == "" {
		req.Style = citations.StyleBibTeX
	}

	exported, err := citations.Export(req.Papers, req.Style)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"style":  req.Style,
		"count":  len(req.Papers),
		"export": exported,
	})
}
