package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/graph/neo4j"
	"github.com/autoscholar/backend/internal/metrics"
	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/internal/storage/sqlite"
	"github.com/autoscholar/backend/internal/vector/milvus"
	"github.com/autoscholar/backend/pkg/logger"
	"github.com/autoscholar/backend/pkg/utils"
)

// Embedder provides abstract embeddings for the vector index.
type Embedder interface {
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// AbstractScraper fills in abstracts missing from the source metadata.
type AbstractScraper interface {
	ScrapeAbstract(ctx context.Context, pageURL string) (string, error)
}

// ReferenceResolver looks up the works a paper cites when the source feed
// carries no reference list of its own.
type ReferenceResolver interface {
	ReferencedWorks(ctx context.Context, id string, limit int) ([]models.Paper, error)
}

// maxResolvedRefs caps how many references are resolved per paper; highly
// cited surveys would otherwise dominate ingest latency.
const maxResolvedRefs = 25

// Processor pushes papers through the three stores: the SQLite index, the
// vector collection, and the citation graph.
type Processor struct {
	db       *sqlite.Client
	vectorDB *milvus.Client
	graphDB  *neo4j.Client
	embedder Embedder
	scraper  AbstractScraper
	refs     ReferenceResolver
}

func NewProcessor(db *sqlite.Client, vectorDB *milvus.Client, graphDB *neo4j.Client, embedder Embedder, scraper AbstractScraper, refs ReferenceResolver) *Processor {
	return &Processor{
		db:       db,
		vectorDB: vectorDB,
		graphDB:  graphDB,
		embedder: embedder,
		scraper:  scraper,
		refs:     refs,
	}
}

// ProcessPapers ingests a batch. Per-paper failures are logged and skipped so
// one bad record does not sink a feed; the returned count is papers stored.
func (p *Processor) ProcessPapers(ctx context.Context, papers []models.Paper) (int, error) {
	if len(papers) == 0 {
		return 0, nil
	}

	stored := 0
	var embeddable []models.Paper

	for i := range papers {
		paper := &papers[i]
		if paper.ID == "" {
			paper.ID = models.PaperID(utils.HashString(paper.Key()))
		}

		if paper.Abstract == "" && p.scraper != nil && paper.URL != "" {
			abstract, err := p.scraper.ScrapeAbstract(ctx, paper.URL)
			if err != nil {
				logger.Debug("Abstract scrape failed",
					zap.String("paper_id", string(paper.ID)),
					zap.Error(err),
				)
			} else {
				paper.Abstract = abstract
			}
		}

		if len(paper.References) == 0 {
			p.resolveReferences(ctx, paper)
		}

		if err := p.db.InsertPaper(paper); err != nil {
			logger.Warn("Failed to index paper",
				zap.String("paper_id", string(paper.ID)),
				zap.Error(err),
			)
			continue
		}
		stored++

		if paper.Abstract != "" {
			embeddable = append(embeddable, *paper)
		}

		p.storeCitations(ctx, paper)
	}

	if err := p.embedAndStore(ctx, embeddable); err != nil {
		logger.Warn("Vector indexing failed for batch", zap.Error(err))
	}

	logger.Info("Paper batch processed",
		zap.Int("received", len(papers)),
		zap.Int("stored", stored),
		zap.Int("embedded", len(embeddable)),
	)

	return stored, nil
}

// resolveReferences fills in paper.References from the citation index when the
// feed supplied none. Resolution needs a DOI to key on; failures only cost the
// paper its citation edges.
func (p *Processor) resolveReferences(ctx context.Context, paper *models.Paper) {
	if p.refs == nil || paper.DOI == "" {
		return
	}

	refs, err := p.refs.ReferencedWorks(ctx, paper.DOI, maxResolvedRefs)
	if err != nil {
		logger.Debug("Reference resolution failed",
			zap.String("paper_id", string(paper.ID)),
			zap.Error(err),
		)
		return
	}

	for i := range refs {
		ref := &refs[i]
		if ref.ID == "" {
			ref.ID = models.PaperID(utils.HashString(ref.Key()))
		}
		paper.References = append(paper.References, string(ref.ID))
	}
}

func (p *Processor) embedAndStore(ctx context.Context, papers []models.Paper) error {
	if len(papers) == 0 || p.embedder == nil || p.vectorDB == nil {
		return nil
	}

	texts := make([]string, len(papers))
	for i, paper := range papers {
		texts[i] = paper.Abstract
	}

	embeddings, err := p.embedder.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed abstracts: %w", err)
	}
	if len(embeddings) != len(papers) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(papers))
	}

	vectors := make([]milvus.PaperVector, len(papers))
	for i, paper := range papers {
		vectors[i] = milvus.PaperVector{
			PaperID:   string(paper.ID),
			Embedding: embeddings[i],
			Title:     paper.DisplayTitle(),
			Abstract:  paper.Abstract,
			Source:    paper.Source,
			Year:      paper.Year,
			Timestamp: time.Now(),
		}
	}

	return p.vectorDB.Insert(ctx, vectors)
}

func (p *Processor) storeCitations(ctx context.Context, paper *models.Paper) {
	if p.graphDB == nil {
		return
	}

	authors := make([]string, len(paper.Authors))
	for i, a := range paper.Authors {
		authors[i] = a.Name
	}

	node := &neo4j.PaperNode{
		ID:      string(paper.ID),
		DOI:     paper.DOI,
		Title:   paper.DisplayTitle(),
		Authors: authors,
		Year:    paper.Year,
	}
	if err := p.graphDB.CreatePaper(ctx, node); err != nil {
		logger.Warn("Failed to create graph node",
			zap.String("paper_id", string(paper.ID)),
			zap.Error(err),
		)
		return
	}

	for _, ref := range paper.References {
		// Referenced papers may not be ingested yet; MERGE the stub so the
		// edge lands either way.
		stub := &neo4j.PaperNode{ID: ref}
		if err := p.graphDB.CreatePaper(ctx, stub); err != nil {
			continue
		}

		citation := &neo4j.Citation{
			FromID: string(paper.ID),
			ToID:   ref,
			Source: paper.Source,
		}
		if err := p.graphDB.CreateCitation(ctx, citation); err != nil {
			logger.Debug("Failed to create citation edge",
				zap.String("from", string(paper.ID)),
				zap.String("to", ref),
				zap.Error(err),
			)
			continue
		}
		metrics.CitationEdgesTotal.Inc()
	}
}
