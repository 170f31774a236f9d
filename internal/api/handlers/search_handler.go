package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/cache/redis"
	"github.com/autoscholar/backend/internal/metrics"
	"github.com/autoscholar/backend/internal/profile"
	"github.com/autoscholar/backend/internal/search"
	"github.com/autoscholar/backend/pkg/logger"
	"github.com/autoscholar/backend/pkg/utils"
)

const searchCacheTTL = 10 * time.Minute

type SearchHandler struct {
	engine   *search.Engine
	cache    *redis.Client
	profiles *profile.Store
}

func NewSearchHandler(engine *search.Engine, cache *redis.Client, profiles *profile.Store) *SearchHandler {
	return &SearchHandler{
		engine:   engine,
		cache:    cache,
		profiles: profiles,
	}
}

func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var req struct {
		Query     string `json:"query"`
		Size      int    `json:"size"`
		Source    string `json:"source"`
		YearMin   int    `json:"year_min"`
		YearMax   int    `json:"year_max"`
		ProfileID string `json:"profile_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	start := time.Now()

	cacheKey := utils.HashString(fmt.Sprintf("%s|%s|%d|%d|%d", req.Query, req.Source, req.Size, req.YearMin, req.YearMax))
	if h.cache != nil {
		var cached []search.Result
		hit, err := h.cache.GetSearch(c.Context(), cacheKey, &cached)
		if err == nil && hit {
			metrics.CacheHits.WithLabelValues("search").Inc()
			return c.JSON(fiber.Map{
				"query":      req.Query,
				"results":    cached,
				"cached":     true,
				"latency_ms": time.Since(start).Milliseconds(),
			})
		}
		metrics.CacheMisses.WithLabelValues("search").Inc()
	}

	results, err := h.engine.Hybrid(c.Context(), search.Request{
		Query:   req.Query,
		Size:    req.Size,
		Source:  req.Source,
		YearMin: req.YearMin,
		YearMax: req.YearMax,
	})
	if err != nil {
		metrics.SearchTotal.WithLabelValues("error").Inc()
		logger.Error("Search failed", zap.String("query", req.Query), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}

	metrics.SearchTotal.WithLabelValues("success").Inc()
	metrics.SearchDuration.WithLabelValues("hybrid").Observe(time.Since(start).Seconds())

	if h.cache != nil {
		if err := h.cache.SetSearch(c.Context(), cacheKey, results, searchCacheTTL); err != nil {
			logger.Warn("Failed to cache search results", zap.Error(err))
		}
	}

	if req.ProfileID != "" && h.profiles != nil {
		if err := h.profiles.RecordSearch(req.ProfileID, req.Query); err != nil {
			logger.Warn("Failed to record search history",
				zap.String("profile_id", req.ProfileID),
				zap.Error(err),
			)
		}
	}

	return c.JSON(fiber.Map{
		"query":      req.Query,
		"results":    results,
		"cached":     false,
		"latency_ms": time.Since(start).Milliseconds(),
	})
}

func (h *SearchHandler) HandleAutocomplete(c *fiber.Ctx) error {
	prefix := c.Query("q")
	if prefix == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "q is required",
		})
	}

	suggestions, err := h.engine.Autocomplete(c.Context(), prefix, c.QueryInt("limit", 8))
	if err != nil {
		logger.Error("Autocomplete failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Autocomplete failed",
		})
	}

	return c.JSON(fiber.Map{
		"suggestions": suggestions,
	})
}
