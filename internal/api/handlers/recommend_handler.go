package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/cache/redis"
	"github.com/autoscholar/backend/internal/metrics"
	"github.com/autoscholar/backend/internal/profile"
	"github.com/autoscholar/backend/internal/recommend"
	"github.com/autoscholar/backend/internal/storage/sqlite"
	"github.com/autoscholar/backend/pkg/logger"
)

const recommendCacheTTL = 15 * time.Minute

type RecommendHandler struct {
	aggregator *recommend.Aggregator
	profiles   *profile.Store
	db         *sqlite.Client
	cache      *redis.Client
}

func NewRecommendHandler(aggregator *recommend.Aggregator, profiles *profile.Store, db *sqlite.Client, cache *redis.Client) *RecommendHandler {
	return &RecommendHandler{
		aggregator: aggregator,
		profiles:   profiles,
		db:         db,
		cache:      cache,
	}
}

func (h *RecommendHandler) HandleForUser(c *fiber.Ctx) error {
	profileID := c.Params("id")
	if profileID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "profile id is required",
		})
	}

	if h.cache != nil {
		var cached recommend.Recommendations
		hit, err := h.cache.GetRecommendations(c.Context(), profileID, "personal", &cached)
		if err == nil && hit {
			metrics.CacheHits.WithLabelValues("recommend").Inc()
			return c.JSON(cached)
		}
		metrics.CacheMisses.WithLabelValues("recommend").Inc()
	}

	prof, err := h.profiles.Get(profileID)
	if err != nil {
		logger.Warn("Profile not found for recommendations",
			zap.String("profile_id", profileID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	recs := h.aggregator.Aggregate(c.Context(), prof)

	metrics.RecommendationTotal.WithLabelValues("personal").Inc()

	if h.cache != nil {
		if err := h.cache.SetRecommendations(c.Context(), profileID, "personal", recs, recommendCacheTTL); err != nil {
			logger.Warn("Failed to cache recommendations", zap.Error(err))
		}
	}

	return c.JSON(recs)
}

func (h *RecommendHandler) HandleTrending(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)

	papers, err := h.db.TrendingSaved(limit)
	if err != nil {
		logger.Error("Trending lookup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load trending papers",
		})
	}

	metrics.RecommendationTotal.WithLabelValues("trending").Inc()

	return c.JSON(fiber.Map{
		"papers": papers,
	})
}
