package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/profile"
	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/pkg/logger"
)

type ProfileHandler struct {
	store *profile.Store
}

func NewProfileHandler(store *profile.Store) *ProfileHandler {
	return &ProfileHandler{store: store}
}

func (h *ProfileHandler) HandleGet(c *fiber.Ctx) error {
	id := c.Params("id")

	prof, err := h.store.Get(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	return c.JSON(prof)
}

func (h *ProfileHandler) HandleUpsert(c *fiber.Ctx) error {
	var prof models.Profile
	if err := c.BodyParser(&prof); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if prof.ID == "" {
		prof.ID = c.Params("id")
	}
	if prof.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Profile id is required",
		})
	}

	if err := h.store.Upsert(&prof); err != nil {
		logger.Error("Failed to save profile", zap.String("profile_id", prof.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save profile",
		})
	}

	return c.JSON(fiber.Map{
		"id":     prof.ID,
		"status": "saved",
	})
}

func (h *ProfileHandler) HandleSavePaper(c *fiber.Ctx) error {
	profileID := c.Params("id")

	var paper models.Paper
	if err := c.BodyParser(&paper); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.store.SavePaper(profileID, &paper); err != nil {
		logger.Error("Failed to save paper",
			zap.String("profile_id", profileID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save paper",
		})
	}

	return c.JSON(fiber.Map{
		"profile_id": profileID,
		"paper_key":  paper.Key(),
		"status":     "saved",
	})
}

func (h *ProfileHandler) HandleRemoveSavedPaper(c *fiber.Ctx) error {
	profileID := c.Params("id")
	paperKey := c.Params("paperKey")

	if err := h.store.RemoveSavedPaper(profileID, paperKey); err != nil {
		logger.Error("Failed to remove saved paper",
			zap.String("profile_id", profileID),
			zap.String("paper_key", paperKey),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to remove saved paper",
		})
	}

	return c.JSON(fiber.Map{
		"profile_id": profileID,
		"paper_key":  paperKey,
		"status":     "removed",
	})
}

func (h *ProfileHandler) HandleHistory(c *fiber.Ctx) error {
	id := c.Params("id")

	prof, err := h.store.Get(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	return c.JSON(fiber.Map{
		"profile_id": id,
		"history":    prof.History,
	})
}
