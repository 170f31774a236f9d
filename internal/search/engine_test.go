package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/internal/vector/milvus"
)

type fakeKeywordIndex struct {
	papers []models.Paper
	err    error
	query  string
}

func (f *fakeKeywordIndex) KeywordSearch(query string, _ int) ([]models.Paper, error) {
	f.query = query
	return f.papers, f.err
}

type fakeVectorIndex struct {
	hits    []milvus.SearchResult
	err     error
	filters map[string]string
}

func (f *fakeVectorIndex) Search(_ context.Context, _ []float32, _ int, filters map[string]string) ([]milvus.SearchResult, error) {
	f.filters = filters
	return f.hits, f.err
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func TestHybridRejectsEmptyQuery(t *testing.T) {
	engine := NewEngine(&fakeKeywordIndex{}, nil, nil, 0.5)

	_, err := engine.Hybrid(context.Background(), Request{Query: "   "})
	assert.Error(t, err)
}

func TestHybridFusesBothSides(t *testing.T) {
	keyword := &fakeKeywordIndex{papers: []models.Paper{
		{ID: "k1", Title: "Keyword hit"},
		{ID: "both", Title: "Hybrid hit"},
	}}
	vector := &fakeVectorIndex{hits: []milvus.SearchResult{
		{PaperID: "both", Title: "Hybrid hit"},
		{PaperID: "v1", Title: "Vector hit"},
	}}
	engine := NewEngine(keyword, vector, &fakeEmbedder{}, 0.5)

	results, err := engine.Hybrid(context.Background(), Request{Query: "transformers", Size: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// "both" collects score from both lists and ranks first.
	assert.Equal(t, models.PaperID("both"), results[0].Paper.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHybridDegradesWhenVectorFails(t *testing.T) {
	keyword := &fakeKeywordIndex{papers: []models.Paper{{ID: "k1", Title: "Keyword hit"}}}
	vector := &fakeVectorIndex{err: errors.New("milvus down")}
	engine := NewEngine(keyword, vector, &fakeEmbedder{}, 0.5)

	results, err := engine.Hybrid(context.Background(), Request{Query: "transformers"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.PaperID("k1"), results[0].Paper.ID)
}

func TestHybridDegradesWhenKeywordFails(t *testing.T) {
	keyword := &fakeKeywordIndex{err: errors.New("fts down")}
	vector := &fakeVectorIndex{hits: []milvus.SearchResult{{PaperID: "v1", Title: "Vector hit"}}}
	engine := NewEngine(keyword, vector, &fakeEmbedder{}, 0.5)

	results, err := engine.Hybrid(context.Background(), Request{Query: "transformers"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.PaperID("v1"), results[0].Paper.ID)
}

func TestHybridErrorsWhenBothSidesFail(t *testing.T) {
	keyword := &fakeKeywordIndex{err: errors.New("fts down")}
	vector := &fakeVectorIndex{err: errors.New("milvus down")}
	engine := NewEngine(keyword, vector, &fakeEmbedder{}, 0.5)

	_, err := engine.Hybrid(context.Background(), Request{Query: "transformers"})
	assert.Error(t, err)
}

func TestHybridForwardsFiltersToVectorIndex(t *testing.T) {
	keyword := &fakeKeywordIndex{}
	vector := &fakeVectorIndex{}
	engine := NewEngine(keyword, vector, &fakeEmbedder{}, 0.5)

	_, err := engine.Hybrid(context.Background(), Request{
		Query:   "transformers",
		Source:  "arxiv",
		YearMin: 2018,
		YearMax: 2024,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"source":   "arxiv",
		"year_min": "2018",
		"year_max": "2024",
	}, vector.filters)
}

func TestHybridAppliesResultFilters(t *testing.T) {
	keyword := &fakeKeywordIndex{papers: []models.Paper{
		{ID: "old", Title: "Old paper", Source: "arxiv", Year: 2010},
		{ID: "new", Title: "New paper", Source: "arxiv", Year: 2022},
		{ID: "wrong", Title: "Wrong source", Source: "springer", Year: 2022},
		{ID: "unknown", Title: "No metadata"},
	}}
	engine := NewEngine(keyword, nil, nil, 0.5)

	results, err := engine.Hybrid(context.Background(), Request{
		Query:   "paper",
		Source:  "arxiv",
		YearMin: 2015,
	})
	require.NoError(t, err)

	ids := make([]models.PaperID, len(results))
	for i, r := range results {
		ids[i] = r.Paper.ID
	}
	// Papers without source or year metadata pass the filters.
	assert.Equal(t, []models.PaperID{"new", "unknown"}, ids)
}

func TestHybridTruncatesToSize(t *testing.T) {
	keyword := &fakeKeywordIndex{}
	for i := 0; i < 6; i++ {
		keyword.papers = append(keyword.papers, models.Paper{
			ID:    models.PaperID(string(rune('a' + i))),
			Title: "Paper",
		})
	}
	engine := NewEngine(keyword, nil, nil, 0.5)

	results, err := engine.Hybrid(context.Background(), Request{Query: "paper", Size: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	// Higher-ranked keyword hits come first.
	assert.Equal(t, models.PaperID("a"), results[0].Paper.ID)
	assert.Equal(t, models.PaperID("b"), results[1].Paper.ID)
}

func TestFuseMergesRicherFields(t *testing.T) {
	keyword := []models.Paper{{ID: "p1", Title: "Paper"}}
	vector := []models.Paper{{ID: "p1", Title: "Paper", Abstract: "Full abstract", Year: 2021}}

	results := fuse(keyword, vector, 0.5)

	require.Len(t, results, 1)
	assert.Equal(t, "Full abstract", results[0].Paper.Abstract)
	assert.Equal(t, 2021, results[0].Paper.Year)
}

func TestSearchAdaptsToSeedContract(t *testing.T) {
	keyword := &fakeKeywordIndex{papers: []models.Paper{{ID: "p1", Title: "Paper"}}}
	engine := NewEngine(keyword, nil, nil, 0)

	papers, err := engine.Search(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, models.PaperID("p1"), papers[0].ID)
}

func TestAutocomplete(t *testing.T) {
	keyword := &fakeKeywordIndex{papers: []models.Paper{
		{ID: "p1", Title: "Graph neural networks"},
		{ID: "p2", Title: "graph neural networks"},
	}}
	engine := NewEngine(keyword, nil, nil, 0)

	suggestions, err := engine.Autocomplete(context.Background(), "graph", 8)
	require.NoError(t, err)

	// Case-insensitive title dedupe, then the query templates.
	assert.Equal(t, []string{
		"Graph neural networks",
		"graph survey",
		"graph applications",
		"graph benchmark",
		"graph state of the art",
	}, suggestions)
}

func TestAutocompleteEmptyPrefix(t *testing.T) {
	engine := NewEngine(&fakeKeywordIndex{}, nil, nil, 0)

	suggestions, err := engine.Autocomplete(context.Background(), "  ", 8)
	require.NoError(t, err)
	assert.Nil(t, suggestions)
}

func TestAutocompleteHonorsLimit(t *testing.T) {
	keyword := &fakeKeywordIndex{papers: []models.Paper{
		{ID: "p1", Title: "First title"},
		{ID: "p2", Title: "Second title"},
	}}
	engine := NewEngine(keyword, nil, nil, 0)

	suggestions, err := engine.Autocomplete(context.Background(), "title", 3)
	require.NoError(t, err)
	assert.Len(t, suggestions, 3)
}
