package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoscholar/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func TestInsertAndGetPaper(t *testing.T) {
	client := newTestClient(t)

	paper := &models.Paper{
		ID:       "arxiv:2401.01234",
		DOI:      "10.1234/example",
		Title:    "Sparse Attention Mechanisms",
		Abstract: "We study sparse attention for long sequences.",
		Authors:  []models.Author{{Name: "Jane Doe"}},
		Keywords: []string{"attention", "transformers"},
		Year:     2024,
		Source:   "arxiv",
	}
	require.NoError(t, client.InsertPaper(paper))

	got, err := client.GetPaper("arxiv:2401.01234")
	require.NoError(t, err)
	assert.Equal(t, paper.Title, got.Title)
	assert.Equal(t, paper.Abstract, got.Abstract)
	assert.Equal(t, []models.Author{{Name: "Jane Doe"}}, got.Authors)
	assert.Equal(t, []string{"attention", "transformers"}, got.Keywords)
	assert.Equal(t, 2024, got.Year)

	// Lookup by DOI resolves the same row.
	byDOI, err := client.GetPaper("10.1234/example")
	require.NoError(t, err)
	assert.Equal(t, got.ID, byDOI.ID)
}

func TestInsertPaperUpserts(t *testing.T) {
	client := newTestClient(t)

	paper := &models.Paper{ID: "p1", Title: "Original title"}
	require.NoError(t, client.InsertPaper(paper))

	paper.Title = "Revised title"
	paper.Abstract = "Now with an abstract."
	require.NoError(t, client.InsertPaper(paper))

	got, err := client.GetPaper("p1")
	require.NoError(t, err)
	assert.Equal(t, "Revised title", got.Title)
	assert.Equal(t, "Now with an abstract.", got.Abstract)
}

func TestGetPaperMissing(t *testing.T) {
	client := newTestClient(t)

	_, err := client.GetPaper("nope")
	assert.Error(t, err)
}

func TestKeywordSearch(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertPaper(&models.Paper{
		ID:       "p1",
		Title:    "Graph neural networks for molecules",
		Abstract: "Message passing over molecular graphs.",
	}))
	require.NoError(t, client.InsertPaper(&models.Paper{
		ID:       "p2",
		Title:    "Convolutional networks for images",
		Abstract: "Classic image classification.",
	}))

	papers, err := client.KeywordSearch("molecular graphs", 10)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, models.PaperID("p1"), papers[0].ID)
}

func TestKeywordSearchRanksTitleMatchesFirst(t *testing.T) {
	client := newTestClient(t)

	// Insertion order is the opposite of relevance order: the abstract-only
	// match goes in first so table order cannot masquerade as ranking.
	require.NoError(t, client.InsertPaper(&models.Paper{
		ID:       "weak",
		Title:    "A survey of convolutional architectures",
		Abstract: "We briefly mention transformers in passing.",
	}))
	require.NoError(t, client.InsertPaper(&models.Paper{
		ID:       "strong",
		Title:    "Transformers for sequence modeling",
		Abstract: "Transformers replace recurrence with attention. Transformers scale well.",
		Keywords: []string{"transformers"},
	}))

	papers, err := client.KeywordSearch("transformers", 10)
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, models.PaperID("strong"), papers[0].ID)
	assert.Equal(t, models.PaperID("weak"), papers[1].ID)
}

func TestLikeSearchFallback(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertPaper(&models.Paper{
		ID:       "weak",
		Title:    "A survey of convolutional architectures",
		Abstract: "We briefly mention transformers in passing.",
	}))
	require.NoError(t, client.InsertPaper(&models.Paper{
		ID:       "strong",
		Title:    "Transformers for sequence modeling",
		Abstract: "Attention-based models.",
		Keywords: []string{"transformers"},
	}))
	require.NoError(t, client.InsertPaper(&models.Paper{
		ID:    "unrelated",
		Title: "Protein folding",
	}))

	papers, err := client.likeSearch("sequence transformers", 10)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, models.PaperID("strong"), papers[0].ID)

	// A single token matches both, ranked title-first.
	papers, err = client.likeSearch("transformers", 10)
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, models.PaperID("strong"), papers[0].ID)

	papers, err = client.likeSearch("  ", 10)
	require.NoError(t, err)
	assert.Nil(t, papers)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike(`100%`))
	assert.Equal(t, `snake\_case`, escapeLike(`snake_case`))
	assert.Equal(t, `back\\slash`, escapeLike(`back\slash`))
}

func TestKeywordSearchReflectsUpdates(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertPaper(&models.Paper{ID: "p1", Title: "Reinforcement learning"}))
	require.NoError(t, client.InsertPaper(&models.Paper{ID: "p1", Title: "Imitation learning"}))

	papers, err := client.KeywordSearch("reinforcement", 10)
	require.NoError(t, err)
	assert.Empty(t, papers)

	papers, err = client.KeywordSearch("imitation", 10)
	require.NoError(t, err)
	require.Len(t, papers, 1)
}

func TestKeywordSearchOperatorsAreInert(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertPaper(&models.Paper{ID: "p1", Title: "Program synthesis"}))

	// FTS5 operators in user input must not produce a syntax error.
	_, err := client.KeywordSearch(`synthesis OR NOT "`, 10)
	assert.NoError(t, err)
}

func TestKeywordSearchEmptyQuery(t *testing.T) {
	client := newTestClient(t)

	papers, err := client.KeywordSearch("   ", 10)
	require.NoError(t, err)
	assert.Nil(t, papers)
}

func TestCitingPapers(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertPaper(&models.Paper{
		ID:         "citer",
		Title:      "A follow-up work",
		References: []string{"seminal", "other"},
	}))
	require.NoError(t, client.InsertPaper(&models.Paper{
		ID:    "unrelated",
		Title: "Unrelated work",
	}))

	papers, err := client.CitingPapers("seminal", 10)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, models.PaperID("citer"), papers[0].ID)
}

func TestProfileRoundTrip(t *testing.T) {
	client := newTestClient(t)

	profile := &models.Profile{
		ID:          "u1",
		Name:        "Ada",
		Email:       "ada@example.org",
		Institution: "Analytical Engine Lab",
		Interests:   []string{"computing"},
	}
	require.NoError(t, client.UpsertProfile(profile))

	require.NoError(t, client.SavePaper("u1", &models.Paper{ID: "p1", Title: "First paper"}))
	require.NoError(t, client.RecordSearch("u1", "difference engines"))

	got, err := client.GetProfile("u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, []string{"computing"}, got.Interests)
	require.Len(t, got.SavedPapers, 1)
	assert.Equal(t, models.PaperID("p1"), got.SavedPapers[0].ID)
	require.Len(t, got.History, 1)
	assert.Equal(t, "difference engines", got.History[0].Query)
}

func TestUpsertProfileUpdates(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.UpsertProfile(&models.Profile{ID: "u1", Name: "Before"}))
	require.NoError(t, client.UpsertProfile(&models.Profile{ID: "u1", Name: "After"}))

	got, err := client.GetProfile("u1")
	require.NoError(t, err)
	assert.Equal(t, "After", got.Name)
}

func TestSavePaperIdempotentPerProfile(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.UpsertProfile(&models.Profile{ID: "u1"}))
	paper := &models.Paper{ID: "p1", Title: "Saved twice"}
	require.NoError(t, client.SavePaper("u1", paper))
	require.NoError(t, client.SavePaper("u1", paper))

	got, err := client.GetProfile("u1")
	require.NoError(t, err)
	assert.Len(t, got.SavedPapers, 1)
}

func TestRemoveSavedPaper(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.UpsertProfile(&models.Profile{ID: "u1"}))
	require.NoError(t, client.SavePaper("u1", &models.Paper{ID: "p1", Title: "Ephemeral"}))
	require.NoError(t, client.RemoveSavedPaper("u1", "p1"))

	got, err := client.GetProfile("u1")
	require.NoError(t, err)
	assert.Empty(t, got.SavedPapers)
}

func TestTrendingSaved(t *testing.T) {
	client := newTestClient(t)

	popular := &models.Paper{ID: "popular", Title: "Everyone saves this"}
	niche := &models.Paper{ID: "niche", Title: "One reader"}

	for _, profileID := range []string{"u1", "u2", "u3"} {
		require.NoError(t, client.UpsertProfile(&models.Profile{ID: profileID}))
		require.NoError(t, client.SavePaper(profileID, popular))
	}
	require.NoError(t, client.SavePaper("u1", niche))

	papers, err := client.TrendingSaved(5)
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, models.PaperID("popular"), papers[0].ID)
	assert.Equal(t, models.PaperID("niche"), papers[1].ID)
}

func TestInsertCompareRecord(t *testing.T) {
	client := newTestClient(t)

	record := &models.CompareRecord{
		ID:        "cmp-1",
		PaperIDs:  []models.PaperID{"p1", "p2"},
		Mode:      "full",
		LatencyMS: 120,
		EdgeCount: 4,
		Fallback:  true,
		CreatedAt: time.Now(),
	}
	require.NoError(t, client.InsertCompareRecord(record))

	var paperIDs string
	var fallback int
	err := client.db.QueryRow(
		`SELECT paper_ids, fallback FROM compare_history WHERE id = ?`, "cmp-1",
	).Scan(&paperIDs, &fallback)
	require.NoError(t, err)
	assert.Equal(t, "p1,p2", paperIDs)
	assert.Equal(t, 1, fallback)
}

func TestEscapeFTSQuery(t *testing.T) {
	assert.Equal(t, `"hello" "world"`, escapeFTSQuery("hello  world"))
	assert.Equal(t, `"say""cheese"""`, escapeFTSQuery(`say"cheese"`))
	assert.Equal(t, "", escapeFTSQuery("  "))
}
