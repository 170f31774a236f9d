package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/graph/neo4j"
	"github.com/autoscholar/backend/internal/llm"
	"github.com/autoscholar/backend/internal/openalex"
	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/internal/storage/sqlite"
	"github.com/autoscholar/backend/internal/vector/milvus"
	"github.com/autoscholar/backend/pkg/logger"
)

type GraphHandler struct {
	graphDB  *neo4j.Client
	db       *sqlite.Client
	vectorDB *milvus.Client
	llm      *llm.Client
	openalex *openalex.Client
}

func NewGraphHandler(graphDB *neo4j.Client, db *sqlite.Client, vectorDB *milvus.Client, llmClient *llm.Client, openalexClient *openalex.Client) *GraphHandler {
	return &GraphHandler{
		graphDB:  graphDB,
		db:       db,
		vectorDB: vectorDB,
		llm:      llmClient,
		openalex: openalexClient,
	}
}

// HandleCitations returns the citation neighborhood of a paper: what it
// cites and what cites it.
func (h *GraphHandler) HandleCitations(c *fiber.Ctx) error {
	paperID := c.Query("paper_id")
	if paperID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "paper_id is required",
		})
	}

	limit := c.QueryInt("limit", 20)

	references, err := h.graphDB.References(c.Context(), paperID)
	if err != nil {
		logger.Error("Reference lookup failed", zap.String("paper_id", paperID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load citation graph",
		})
	}

	citing, err := h.graphDB.CitingPapers(c.Context(), paperID, limit)
	if err != nil {
		logger.Error("Citing-papers lookup failed", zap.String("paper_id", paperID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load citation graph",
		})
	}

	// The graph only has edges for ingested papers; before going upstream,
	// check the index for ingested papers whose reference lists name this one.
	if len(citing) == 0 && h.db != nil {
		indexed, err := h.db.CitingPapers(models.PaperID(paperID), limit)
		if err != nil {
			logger.Warn("Indexed citing-papers lookup failed",
				zap.String("paper_id", paperID),
				zap.Error(err),
			)
		}
		for _, p := range indexed {
			node := neo4j.PaperNode{
				ID:    string(p.ID),
				DOI:   p.DOI,
				Title: p.Title,
				Year:  p.Year,
			}
			for _, a := range p.Authors {
				node.Authors = append(node.Authors, a.Name)
			}
			citing = append(citing, node)
		}
	}

	// Papers outside the ingested corpus have no local CITES edges; fill the
	// citing side from OpenAlex when the graph comes back empty.
	if len(citing) == 0 && h.openalex != nil {
		upstream, err := h.openalex.CitingWorks(c.Context(), paperID, limit)
		if err != nil {
			logger.Warn("OpenAlex citing-works lookup failed",
				zap.String("paper_id", paperID),
				zap.Error(err),
			)
		} else {
			for _, p := range upstream {
				node := neo4j.PaperNode{
					ID:    string(p.ID),
					DOI:   p.DOI,
					Title: p.Title,
					Year:  p.Year,
				}
				for _, a := range p.Authors {
					node.Authors = append(node.Authors, a.Name)
				}
				citing = append(citing, node)
			}
		}
	}

	return c.JSON(fiber.Map{
		"paper_id":   paperID,
		"references": references,
		"cited_by":   citing,
	})
}

// HandleSimilar returns the nearest neighbors of a paper in embedding space.
func (h *GraphHandler) HandleSimilar(c *fiber.Ctx) error {
	paperID := c.Query("paper_id")
	abstract := c.Query("abstract")
	if paperID == "" && abstract == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "paper_id or abstract is required",
		})
	}

	limit := c.QueryInt("limit", 10)

	var embedding []float32
	var err error

	if paperID != "" {
		stored, fetchErr := h.vectorDB.Fetch(c.Context(), []string{paperID})
		if fetchErr == nil {
			embedding = stored[paperID]
		}
	}
	if embedding == nil && abstract != "" {
		embedding, err = h.llm.GenerateEmbedding(c.Context(), abstract)
		if err != nil {
			logger.Error("Failed to embed abstract", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to embed abstract",
			})
		}
	}
	if embedding == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No embedding available for this paper",
		})
	}

	similar, err := h.vectorDB.Search(c.Context(), embedding, limit+1, nil)
	if err != nil {
		logger.Error("Similarity search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Similarity search failed",
		})
	}

	// Drop the query paper itself when it comes back as its own neighbor.
	filtered := similar[:0]
	for _, s := range similar {
		if s.PaperID == paperID {
			continue
		}
		filtered = append(filtered, s)
		if len(filtered) >= limit {
			break
		}
	}

	return c.JSON(fiber.Map{
		"paper_id": paperID,
		"similar":  filtered,
	})
}
