package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/cache/redis"
	"github.com/autoscholar/backend/internal/compare"
	"github.com/autoscholar/backend/internal/metrics"
	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/pkg/logger"
	"github.com/autoscholar/backend/pkg/utils"
)

const compareCacheTTL = 30 * time.Minute

// PaperResolver loads a paper by id from the local index, falling back to an
// upstream source when not yet ingested.
type PaperResolver interface {
	ResolvePaper(ctx context.Context, id models.PaperID) (*models.Paper, error)
}

type CompareHandler struct {
	service  *compare.Service
	resolver PaperResolver
	cache    *redis.Client
}

func NewCompareHandler(service *compare.Service, resolver PaperResolver, cache *redis.Client) *CompareHandler {
	return &CompareHandler{
		service:  service,
		resolver: resolver,
		cache:    cache,
	}
}

type compareRequest struct {
	PaperIDs []models.PaperID `json:"paper_ids"`
	Papers   []models.Paper   `json:"papers"`
}

func (h *CompareHandler) HandleCompare(c *fiber.Ctx) error {
	var req compareRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	papers, err := h.collectPapers(c.Context(), &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	cacheKey := compareCacheKey(papers)
	if h.cache != nil {
		var cached compare.Result
		hit, cacheErr := h.cache.GetComparison(c.Context(), cacheKey, &cached)
		if cacheErr == nil && hit {
			metrics.CacheHits.WithLabelValues("compare").Inc()
			return c.JSON(cached)
		}
		metrics.CacheMisses.WithLabelValues("compare").Inc()
	}

	start := time.Now()
	result, err := h.service.Compare(c.Context(), papers, nil)
	if err != nil {
		metrics.CompareTotal.WithLabelValues("error").Inc()
		logger.Error("Comparison failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Comparison failed",
		})
	}

	metrics.CompareTotal.WithLabelValues("success").Inc()
	metrics.CompareDuration.Observe(time.Since(start).Seconds())
	if result.EvidenceGraph != nil {
		metrics.EvidenceEdges.Observe(float64(len(result.EvidenceGraph.Edges)))
	}

	if h.cache != nil {
		if err := h.cache.SetComparison(c.Context(), cacheKey, result, compareCacheTTL); err != nil {
			logger.Warn("Failed to cache comparison", zap.Error(err))
		}
	}

	return c.JSON(result)
}

// collectPapers accepts either inline paper payloads or ids to resolve.
func (h *CompareHandler) collectPapers(ctx context.Context, req *compareRequest) ([]models.Paper, error) {
	papers := req.Papers

	for _, id := range req.PaperIDs {
		if id == "" {
			continue
		}

		already := false
		for i := range papers {
			if papers[i].ID == id {
				already = true
				break
			}
		}
		if already {
			continue
		}

		resolved, err := h.resolver.ResolvePaper(ctx, id)
		if err != nil {
			logger.Warn("Failed to resolve paper",
				zap.String("paper_id", string(id)),
				zap.Error(err),
			)
			continue
		}
		papers = append(papers, *resolved)
	}

	if len(papers) < 2 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "need at least 2 resolvable papers")
	}

	return papers, nil
}

func compareCacheKey(papers []models.Paper) string {
	key := ""
	for _, p := range papers {
		key += p.Key() + "|"
	}
	return utils.HashString(key)
}
