package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoscholar/backend/internal/openalex"
	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/internal/storage/sqlite"
)

func newResolverDB(t *testing.T) *sqlite.Client {
	t.Helper()

	db, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.InitSchema())
	return db
}

func TestResolvePaperPrefersLocalIndex(t *testing.T) {
	db := newResolverDB(t)
	require.NoError(t, db.InsertPaper(&models.Paper{ID: "p1", Title: "Indexed paper"}))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected upstream call: %s", r.URL.Path)
	}))
	defer server.Close()

	resolver := NewIndexedResolver(db, openalex.NewClient(server.URL, ""))
	paper, err := resolver.ResolvePaper(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Indexed paper", paper.Title)
}

func TestResolvePaperFallsBackToTitleSearch(t *testing.T) {
	db := newResolverDB(t)

	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works", r.URL.Path)
		query = r.URL.Query().Get("search")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"id":"https://openalex.org/W1","title":"Attention Is All You Need","publication_year":2017}]}`))
	}))
	defer server.Close()

	resolver := NewIndexedResolver(db, openalex.NewClient(server.URL, ""))
	paper, err := resolver.ResolvePaper(context.Background(), "attention is all you need")
	require.NoError(t, err)
	assert.Equal(t, "attention is all you need", query)
	assert.Equal(t, "Attention Is All You Need", paper.Title)
	assert.Equal(t, 2017, paper.Year)
}

func TestResolvePaperTitleSearchNoResults(t *testing.T) {
	db := newResolverDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	resolver := NewIndexedResolver(db, openalex.NewClient(server.URL, ""))
	_, err := resolver.ResolvePaper(context.Background(), "no such paper anywhere")
	assert.Error(t, err)
}

func TestLooksLikeTitle(t *testing.T) {
	assert.True(t, looksLikeTitle("attention is all you need"))
	assert.False(t, looksLikeTitle("10.1234/example"))
	assert.False(t, looksLikeTitle("W2741809807"))
	assert.False(t, looksLikeTitle("  W2741809807  "))
}
