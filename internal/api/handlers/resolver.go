package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/openalex"
	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/internal/storage/sqlite"
	"github.com/autoscholar/backend/pkg/logger"
)

// IndexedResolver resolves papers from the local index first and falls back
// to OpenAlex for papers not yet ingested.
type IndexedResolver struct {
	db       *sqlite.Client
	openalex *openalex.Client
}

func NewIndexedResolver(db *sqlite.Client, oa *openalex.Client) *IndexedResolver {
	return &IndexedResolver{db: db, openalex: oa}
}

func (r *IndexedResolver) ResolvePaper(ctx context.Context, id models.PaperID) (*models.Paper, error) {
	if r.db != nil {
		paper, err := r.db.GetPaper(id)
		if err == nil {
			return paper, nil
		}
		logger.Debug("Paper not in local index", zap.String("paper_id", string(id)))
	}

	if r.openalex != nil {
		// Identifiers with spaces are titles, not DOIs or work IDs; resolve
		// those through full text search instead of the works endpoint.
		if looksLikeTitle(string(id)) {
			papers, err := r.openalex.SearchWorks(ctx, string(id), 1)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve paper %s: %w", id, err)
			}
			if len(papers) == 0 {
				return nil, fmt.Errorf("paper not found: %s", id)
			}
			return &papers[0], nil
		}

		paper, err := r.openalex.ResolveWork(ctx, string(id))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve paper %s: %w", id, err)
		}
		return paper, nil
	}

	return nil, fmt.Errorf("paper not found: %s", id)
}

func looksLikeTitle(id string) bool {
	return strings.Contains(strings.TrimSpace(id), " ")
}
