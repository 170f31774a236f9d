package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoscholar/backend/internal/storage/models"
)

type fakePrimary struct {
	topics []string
	papers []models.Paper
	err    error
	calls  int
}

func (f *fakePrimary) Recommend(_ context.Context, _ *models.Profile, _ int) ([]string, []models.Paper, error) {
	f.calls++
	return f.topics, f.papers, f.err
}

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]models.Paper
	errs    map[string]error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]models.Paper, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	return f.results[query], nil
}

func profileWithSaved(titles ...string) *models.Profile {
	prof := &models.Profile{ID: "u1"}
	for _, title := range titles {
		prof.SavedPapers = append(prof.SavedPapers, models.Paper{ID: models.PaperID(title), Title: title})
	}
	return prof
}

func TestAggregateNilProfile(t *testing.T) {
	agg := NewAggregator(nil, &fakeSearcher{}, Config{})

	recs := agg.Aggregate(context.Background(), nil)

	assert.Empty(t, recs.Topics)
	assert.Empty(t, recs.Papers)
	assert.NotNil(t, recs.Topics)
	assert.NotNil(t, recs.Papers)
}

func TestAggregatePrimaryShortCircuits(t *testing.T) {
	primary := &fakePrimary{
		topics: []string{"transformers"},
		papers: []models.Paper{{ID: "p1", Title: "Attention"}},
	}
	searcher := &fakeSearcher{}
	agg := NewAggregator(primary, searcher, Config{})

	recs := agg.Aggregate(context.Background(), profileWithSaved("deep learning survey"))

	assert.Equal(t, []string{"transformers"}, recs.Topics)
	assert.Len(t, recs.Papers, 1)
	assert.Equal(t, 1, primary.calls)
	assert.Empty(t, searcher.queries)
}

func TestAggregateFallsBackWhenPrimaryFails(t *testing.T) {
	primary := &fakePrimary{err: errors.New("no embeddings")}
	searcher := &fakeSearcher{
		results: map[string][]models.Paper{
			"graph": {{ID: "p1", Title: "Graph neural networks"}},
		},
	}
	agg := NewAggregator(primary, searcher, Config{})

	recs := agg.Aggregate(context.Background(), profileWithSaved("graph neural networks"))

	assert.Equal(t, 1, primary.calls)
	assert.Contains(t, recs.Topics, "graph")
	require.Len(t, recs.Papers, 1)
	assert.Equal(t, "Graph neural networks", recs.Papers[0].Title)
}

func TestAggregateFanOutDedupesAndExcludesSaved(t *testing.T) {
	prof := &models.Profile{
		ID: "u1",
		SavedPapers: []models.Paper{
			{ID: "saved", Title: "quantum computing advances"},
		},
		History: []models.SearchHistoryEntry{
			{Query: "quantum error correction"},
		},
	}

	fresh := models.Paper{ID: "fresh", Title: "Fault tolerant qubits"}
	duplicate := models.Paper{ID: "fresh", Title: "Fault tolerant qubits"}
	alreadySaved := models.Paper{ID: "saved", Title: "quantum computing advances"}

	searcher := &fakeSearcher{
		results: map[string][]models.Paper{
			"quantum":    {fresh, alreadySaved},
			"computing":  {duplicate},
			"advances":   {},
			"error":      nil,
			"correction": nil,
		},
	}
	agg := NewAggregator(nil, searcher, Config{})

	recs := agg.Aggregate(context.Background(), prof)

	require.Len(t, recs.Papers, 1)
	assert.Equal(t, models.PaperID("fresh"), recs.Papers[0].ID)
}

func TestAggregateSeedFailureIsEmptyNotFatal(t *testing.T) {
	searcher := &fakeSearcher{
		errs: map[string]error{
			"distributed": errors.New("index down"),
		},
		results: map[string][]models.Paper{
			"consensus": {{ID: "p1", Title: "Raft explained"}},
		},
	}
	agg := NewAggregator(nil, searcher, Config{})

	recs := agg.Aggregate(context.Background(), profileWithSaved("distributed consensus"))

	require.Len(t, recs.Papers, 1)
	assert.Equal(t, models.PaperID("p1"), recs.Papers[0].ID)
}

func TestAggregateRespectsLimit(t *testing.T) {
	papers := make([]models.Paper, 5)
	for i := range papers {
		papers[i] = models.Paper{ID: models.PaperID(string(rune('a' + i))), Title: "Paper"}
	}
	searcher := &fakeSearcher{
		results: map[string][]models.Paper{"federated": papers, "learning": papers},
	}
	agg := NewAggregator(nil, searcher, Config{Limit: 3})

	recs := agg.Aggregate(context.Background(), profileWithSaved("federated learning"))

	assert.Len(t, recs.Papers, 3)
}

func TestDeriveTopicsRanking(t *testing.T) {
	prof := &models.Profile{
		SavedPapers: []models.Paper{
			{Title: "Neural networks for vision"},
			{Title: "Neural architecture search"},
		},
		History: []models.SearchHistoryEntry{
			{Query: "vision transformers"},
		},
	}

	topics := DeriveTopics(prof, 8)

	// "neural" and "vision" both appear twice; "neural" was seen first.
	require.GreaterOrEqual(t, len(topics), 2)
	assert.Equal(t, "neural", topics[0])
	assert.Equal(t, "vision", topics[1])
}

func TestDeriveTopicsFiltersShortTokensAndStopwords(t *testing.T) {
	prof := &models.Profile{
		SavedPapers: []models.Paper{
			{Title: "A new approach using the model for ad hoc routing"},
		},
	}

	topics := DeriveTopics(prof, 8)

	assert.NotContains(t, topics, "using")
	assert.NotContains(t, topics, "approach")
	assert.NotContains(t, topics, "model")
	assert.NotContains(t, topics, "the")
	assert.NotContains(t, topics, "new")
	assert.Contains(t, topics, "routing")
}

func TestDeriveTopicsHistoryWindow(t *testing.T) {
	prof := &models.Profile{}
	prof.History = append(prof.History, models.SearchHistoryEntry{Query: "ancient topic"})
	for i := 0; i < historyWindow; i++ {
		prof.History = append(prof.History, models.SearchHistoryEntry{Query: "recent queries"})
	}

	topics := DeriveTopics(prof, 20)

	assert.NotContains(t, topics, "ancient")
	assert.NotContains(t, topics, "topic")
	assert.Contains(t, topics, "recent")
}

func TestDeriveTopicsTopN(t *testing.T) {
	prof := &models.Profile{
		SavedPapers: []models.Paper{
			{Title: "alpha bravo charlie delta echo foxtrot"},
		},
	}

	topics := DeriveTopics(prof, 3)

	assert.Len(t, topics, 3)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, topics)
}
