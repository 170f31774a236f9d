package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/internal/vector/milvus"
	"github.com/autoscholar/backend/pkg/logger"
)

// VectorStore is the slice of the vector index the recommender needs.
type VectorStore interface {
	Fetch(ctx context.Context, paperIDs []string) (map[string][]float32, error)
	Search(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]milvus.SearchResult, error)
}

// VectorRecommender is the content-based primary source: it centers the
// profile in embedding space by averaging the saved papers' vectors and
// returns the nearest unseen neighbors.
type VectorRecommender struct {
	store VectorStore
}

func NewVectorRecommender(store VectorStore) *VectorRecommender {
	return &VectorRecommender{store: store}
}

func (r *VectorRecommender) Recommend(ctx context.Context, profile *models.Profile, limit int) ([]string, []models.Paper, error) {
	if len(profile.SavedPapers) == 0 {
		return nil, nil, fmt.Errorf("profile has no saved papers")
	}

	ids := make([]string, 0, len(profile.SavedPapers))
	saved := make(map[string]struct{}, len(profile.SavedPapers))
	for _, p := range profile.SavedPapers {
		ids = append(ids, string(p.ID))
		saved[p.Key()] = struct{}{}
	}

	embeddings, err := r.store.Fetch(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch saved embeddings: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, nil, fmt.Errorf("no embeddings indexed for saved papers")
	}

	centroid := average(embeddings)

	// Overfetch so dropping already-saved papers still fills the limit.
	hits, err := r.store.Search(ctx, centroid, limit+len(ids), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search neighbors: %w", err)
	}

	papers := make([]models.Paper, 0, limit)
	for _, h := range hits {
		candidate := models.Paper{
			ID:       models.PaperID(h.PaperID),
			Title:    h.Title,
			Abstract: h.Abstract,
			Source:   h.Source,
			Year:     h.Year,
		}
		if _, ok := saved[candidate.Key()]; ok {
			continue
		}
		papers = append(papers, candidate)
		if len(papers) >= limit {
			break
		}
	}

	if len(papers) == 0 {
		return nil, nil, fmt.Errorf("no unseen neighbors found")
	}

	topics := keywordTopics(profile.SavedPapers, 8)

	logger.Info("Vector recommendations built",
		zap.String("profile_id", profile.ID),
		zap.Int("saved", len(ids)),
		zap.Int("results", len(papers)),
	)

	return topics, papers, nil
}

func average(embeddings map[string][]float32) []float32 {
	var dim int
	for _, e := range embeddings {
		dim = len(e)
		break
	}

	sum := make([]float64, dim)
	count := 0
	for _, e := range embeddings {
		if len(e) != dim {
			continue
		}
		for i, v := range e {
			sum[i] += float64(v)
		}
		count++
	}

	centroid := make([]float32, dim)
	for i := range sum {
		centroid[i] = float32(sum[i] / float64(count))
	}
	return centroid
}

// keywordTopics ranks the keywords attached to saved papers by frequency.
func keywordTopics(papers []models.Paper, limit int) []string {
	freq := make(map[string]int)
	var order []string

	for _, p := range papers {
		for _, kw := range p.Keywords {
			key := strings.ToLower(strings.TrimSpace(kw))
			if key == "" {
				continue
			}
			if _, seen := freq[key]; !seen {
				order = append(order, key)
			}
			freq[key]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})

	if len(order) > limit {
		order = order[:limit]
	}
	return order
}
