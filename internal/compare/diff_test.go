package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoscholar/backend/internal/storage/models"
)

func TestComputeDiffsNilResult(t *testing.T) {
	diffs := ComputeDiffs(nil, []models.Paper{{ID: "p1"}})

	assert.Empty(t, diffs.Common)
	assert.Empty(t, diffs.Unique)
	assert.NotNil(t, diffs.Common)
	assert.NotNil(t, diffs.Unique)
}

func TestComputeDiffsEmptyPapers(t *testing.T) {
	result := &Result{}
	diffs := ComputeDiffs(result, nil)

	assert.Empty(t, diffs.Common)
	assert.Empty(t, diffs.Unique)
}

func TestComputeDiffsCommonAndUnique(t *testing.T) {
	shared := "Both papers build on transformer architectures."
	papers := []models.Paper{
		{ID: "p1", Abstract: shared + " Introduces sparse attention for efficiency."},
		{ID: "p2", Abstract: shared + " Proposes recurrent memory for long contexts."},
	}
	result := &Result{
		Papers: []PaperSummary{
			{PaperID: "p1"},
			{PaperID: "p2"},
		},
	}

	diffs := ComputeDiffs(result, papers)

	assert.Equal(t, []string{shared}, diffs.Common)
	require.Len(t, diffs.Unique, 2)
	assert.Equal(t, []string{"Introduces sparse attention for efficiency."}, diffs.Unique["p1"])
	assert.Equal(t, []string{"Proposes recurrent memory for long contexts."}, diffs.Unique["p2"])
}

func TestComputeDiffsCaseInsensitiveKeys(t *testing.T) {
	papers := []models.Paper{
		{ID: "p1", Abstract: "Attention is all you need for machine translation."},
		{ID: "p2", Abstract: "ATTENTION IS ALL YOU NEED FOR MACHINE TRANSLATION."},
	}
	result := &Result{
		Papers: []PaperSummary{{PaperID: "p1"}, {PaperID: "p2"}},
	}

	diffs := ComputeDiffs(result, papers)

	// Same point under different casing counts as one common point, shown
	// with the first-encountered casing.
	require.Len(t, diffs.Common, 1)
	assert.Equal(t, "Attention is all you need for machine translation.", diffs.Common[0])
	assert.Empty(t, diffs.Unique["p1"])
	assert.Empty(t, diffs.Unique["p2"])
}

func TestComputeDiffsPartialOwnershipDropped(t *testing.T) {
	partial := "Two of three papers make this shared claim here."
	papers := []models.Paper{
		{ID: "p1", Abstract: partial},
		{ID: "p2", Abstract: partial},
		{ID: "p3", Abstract: "The third paper says something entirely different."},
	}
	result := &Result{
		Papers: []PaperSummary{{PaperID: "p1"}, {PaperID: "p2"}, {PaperID: "p3"}},
	}

	diffs := ComputeDiffs(result, papers)

	// Owned by 2 of 3: neither common nor unique.
	assert.Empty(t, diffs.Common)
	assert.Empty(t, diffs.Unique["p1"])
	assert.Empty(t, diffs.Unique["p2"])
	assert.Equal(t, []string{"The third paper says something entirely different."}, diffs.Unique["p3"])
}

func TestComputeDiffsPrefersBackendSummary(t *testing.T) {
	papers := []models.Paper{
		{ID: "p1", Abstract: "Abstract text that should not be used at all here."},
		{ID: "p2", Abstract: "Second paper abstract, also ignored for the diff."},
	}
	result := &Result{
		Papers: []PaperSummary{
			{PaperID: "p1", Summary: "Summary text from the comparison backend wins."},
			{PaperID: "p2", Summary: "Summary text from the comparison backend wins."},
		},
	}

	diffs := ComputeDiffs(result, papers)

	assert.Equal(t, []string{"Summary text from the comparison backend wins."}, diffs.Common)
}

func TestComputeDiffsUniqueEntryPerPaper(t *testing.T) {
	papers := []models.Paper{
		{ID: "p1", Abstract: "Only this paper contributes any points at all."},
		{ID: "p2"},
	}
	result := &Result{
		Papers: []PaperSummary{{PaperID: "p1"}, {PaperID: "p2"}},
	}

	diffs := ComputeDiffs(result, papers)

	require.Contains(t, diffs.Unique, "p1")
	require.Contains(t, diffs.Unique, "p2")
	assert.NotNil(t, diffs.Unique["p2"])
	assert.Empty(t, diffs.Unique["p2"])
}
