package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/ingest"
	"github.com/autoscholar/backend/internal/metrics"
	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingest.Processor
	arxiv     *ingest.ArxivClient
	springer  *ingest.SpringerClient
}

func NewDocumentHandler(processor *ingest.Processor, arxiv *ingest.ArxivClient, springer *ingest.SpringerClient) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		arxiv:     arxiv,
		springer:  springer,
	}
}

// HandleIngest accepts a batch of papers and pushes it through the pipeline.
func (h *DocumentHandler) HandleIngest(c *fiber.Ctx) error {
	var req struct {
		Papers []models.Paper `json:"papers"`
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

	stored, err := h.processor.ProcessPapers(c.Context(), req.Papers)
	if err != nil {
		logger.Error("Ingestion failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Ingestion failed",
		})
	}

	metrics.PapersIngested.WithLabelValues("manual").Add(float64(stored))

	return c.JSON(fiber.Map{
		"received": len(req.Papers),
		"stored":   stored,
	})
}

// HandleFetch pulls papers from an upstream source and ingests them.
func (h *DocumentHandler) HandleFetch(c *fiber.Ctx) error {
	var req struct {
		Source     string `json:"source"`
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query is required",
		})
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 25
	}

	var papers []models.Paper
	var err error

	switch req.Source {
	case "arxiv":
		papers, err = h.arxiv.Fetch(c.Context(), req.Query, req.MaxResults)
	case "springer":
		papers, err = h.springer.Fetch(c.Context(), req.Query, req.MaxResults)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "source must be arxiv or springer",
		})
	}

	if err != nil {
		logger.Error("Upstream fetch failed",
			zap.String("source", req.Source),
			zap.String("query", req.Query),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Upstream fetch failed",
		})
	}

	stored, err := h.processor.ProcessPapers(c.Context(), papers)
	if err != nil {
		logger.Error("Ingestion failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Ingestion failed",
		})
	}

	metrics.PapersIngested.WithLabelValues(req.Source).Add(float64(stored))

	return c.JSON(fiber.Map{
		"source":  req.Source,
		"fetched": len(papers),
		"stored":  stored,
	})
}
