package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/internal/vector/milvus"
	"github.com/autoscholar/backend/pkg/logger"
)

// rrfK dampens the rank contribution in reciprocal rank fusion.
const rrfK = 60

// KeywordIndex is the full text side of hybrid retrieval.
type KeywordIndex interface {
	KeywordSearch(query string, limit int) ([]models.Paper, error)
}

// VectorIndex is the embedding side of hybrid retrieval.
type VectorIndex interface {
	Search(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]milvus.SearchResult, error)
}

// Embedder turns query text into a vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type Request struct {
	Query   string
	Size    int
	Source  string
	YearMin int
	YearMax int
}

type Result struct {
	Paper models.Paper `json:"paper"`
	Score float64      `json:"score"`
}

type Engine struct {
	keyword KeywordIndex
	vector  VectorIndex
	embed   Embedder
	alpha   float64
}

// NewEngine builds a hybrid engine. Alpha weights the vector side of the
// fusion; 0 means keyword-only, 1 means vector-only.
func NewEngine(keyword KeywordIndex, vector VectorIndex, embed Embedder, alpha float64) *Engine {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return &Engine{
		keyword: keyword,
		vector:  vector,
		embed:   embed,
		alpha:   alpha,
	}
}

// Search satisfies the recommendation aggregator's seed-query contract.
func (e *Engine) Search(ctx context.Context, query string, size int) ([]models.Paper, error) {
	results, err := e.Hybrid(ctx, Request{Query: query, Size: size})
	if err != nil {
		return nil, err
	}

	papers := make([]models.Paper, len(results))
	for i, r := range results {
		papers[i] = r.Paper
	}
	return papers, nil
}

// Hybrid runs keyword and vector retrieval and fuses the ranked lists with
// reciprocal rank fusion. Either side failing degrades to the other.
func (e *Engine) Hybrid(ctx context.Context, req Request) ([]Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if req.Size <= 0 {
		req.Size = 10
	}

	fetchSize := req.Size * 3

	keywordPapers, kwErr := e.keyword.KeywordSearch(req.Query, fetchSize)
	if kwErr != nil {
		logger.Warn("Keyword search failed", zap.Error(kwErr))
	}

	var vectorPapers []models.Paper
	var vecErr error
	if e.vector != nil && e.embed != nil {
		vectorPapers, vecErr = e.vectorSide(ctx, req, fetchSize)
		if vecErr != nil {
			logger.Warn("Vector search failed", zap.Error(vecErr))
		}
	}

	if kwErr != nil && vecErr != nil {
		return nil, fmt.Errorf("both retrieval paths failed: %w", kwErr)
	}

	fused := fuse(keywordPapers, vectorPapers, e.alpha)
	fused = applyFilters(fused, req)

	if len(fused) > req.Size {
		fused = fused[:req.Size]
	}

	logger.Info("Hybrid search completed",
		zap.String("query", req.Query),
		zap.Int("keyword_results", len(keywordPapers)),
		zap.Int("vector_results", len(vectorPapers)),
		zap.Int("fused", len(fused)),
	)

	return fused, nil
}

func (e *Engine) vectorSide(ctx context.Context, req Request, topK int) ([]models.Paper, error) {
	embedding, err := e.embed.GenerateEmbedding(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	filters := map[string]string{}
	if req.Source != "" {
		filters["source"] = req.Source
	}
	if req.YearMin > 0 {
		filters["year_min"] = strconv.Itoa(req.YearMin)
	}
	if req.YearMax > 0 {
		filters["year_max"] = strconv.Itoa(req.YearMax)
	}

	hits, err := e.vector.Search(ctx, embedding, topK, filters)
	if err != nil {
		return nil, err
	}

	papers := make([]models.Paper, 0, len(hits))
	for _, h := range hits {
		papers = append(papers, models.Paper{
			ID:       models.PaperID(h.PaperID),
			Title:    h.Title,
			Abstract: h.Abstract,
			Source:   h.Source,
			Year:     h.Year,
		})
	}
	return papers, nil
}

// fuse merges two ranked lists: each paper scores
// alpha/(k+vectorRank) + (1-alpha)/(k+keywordRank), dedupe by paper key with
// the richer record winning.
func fuse(keywordPapers, vectorPapers []models.Paper, alpha float64) []Result {
	type entry struct {
		paper models.Paper
		score float64
		order int
	}

	merged := make(map[string]*entry)
	order := 0

	add := func(p models.Paper, weight float64, rank int) {
		key := p.Key()
		if key == "" {
			return
		}
		score := weight / float64(rrfK+rank+1)
		if existing, ok := merged[key]; ok {
			existing.score += score
			if existing.paper.Abstract == "" && p.Abstract != "" {
				existing.paper.Abstract = p.Abstract
			}
			if existing.paper.Year == 0 && p.Year != 0 {
				existing.paper.Year = p.Year
			}
			return
		}
		merged[key] = &entry{paper: p, score: score, order: order}
		order++
	}

	for rank, p := range keywordPapers {
		add(p, 1-alpha, rank)
	}
	for rank, p := range vectorPapers {
		add(p, alpha, rank)
	}

	entries := make([]*entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].order < entries[j].order
	})

	results := make([]Result, len(entries))
	for i, e := range entries {
		results[i] = Result{Paper: e.paper, Score: e.score}
	}
	return results
}

func applyFilters(results []Result, req Request) []Result {
	if req.Source == "" && req.YearMin == 0 && req.YearMax == 0 {
		return results
	}

	filtered := results[:0]
	for _, r := range results {
		if req.Source != "" && r.Paper.Source != "" && r.Paper.Source != req.Source {
			continue
		}
		if req.YearMin > 0 && r.Paper.Year > 0 && r.Paper.Year < req.YearMin {
			continue
		}
		if req.YearMax > 0 && r.Paper.Year > 0 && r.Paper.Year > req.YearMax {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

var suggestionTemplates = []string{
	"%s survey",
	"%s applications",
	"%s benchmark",
	"%s state of the art",
}

// Autocomplete combines template expansions of the prefix with titles of
// matching indexed papers.
func (e *Engine) Autocomplete(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 8
	}

	suggestions := make([]string, 0, limit)
	seen := make(map[string]struct{})

	papers, err := e.keyword.KeywordSearch(prefix, limit)
	if err != nil {
		logger.Warn("Autocomplete index lookup failed", zap.Error(err))
	}
	for _, p := range papers {
		title := p.DisplayTitle()
		lower := strings.ToLower(title)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		suggestions = append(suggestions, title)
		if len(suggestions) >= limit {
			return suggestions, nil
		}
	}

	for _, tmpl := range suggestionTemplates {
		s := fmt.Sprintf(tmpl, prefix)
		lower := strings.ToLower(s)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		suggestions = append(suggestions, s)
		if len(suggestions) >= limit {
			break
		}
	}

	return suggestions, nil
}
