package openalex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autoscholar/backend/internal/storage/models"
)

func TestReconstructAbstract(t *testing.T) {
	index := map[string][]int{
		"networks": {2},
		"neural":   {1},
		"deep":     {0, 3},
		"work":     {4},
	}

	assert.Equal(t, "deep neural networks deep work", reconstructAbstract(index))
	assert.Equal(t, "", reconstructAbstract(nil))
}

func TestWorkToPaper(t *testing.T) {
	c := NewClient("", "test@example.org")

	w := &work{
		ID:              "https://openalex.org/W2741809807",
		DOI:             "https://doi.org/10.7717/peerj.4375",
		DisplayName:     "The state of OA",
		PublicationYear: 2018,
		AbstractInvertedIndex: map[string][]int{
			"access": {1},
			"Open":   {0},
		},
		ReferencedWorks: []string{"https://openalex.org/W100"},
	}
	w.Authorships = append(w.Authorships, struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	}{})
	w.Authorships[0].Author.DisplayName = "Heather Piwowar"

	p := c.workToPaper(w)

	assert.Equal(t, models.PaperID("W2741809807"), p.ID)
	assert.Equal(t, "10.7717/peerj.4375", p.DOI)
	assert.Equal(t, "The state of OA", p.Title)
	assert.Equal(t, "Open access", p.Abstract)
	assert.Equal(t, 2018, p.Year)
	assert.Equal(t, "openalex", p.Source)
	assert.Equal(t, []string{"W100"}, p.References)
	assert.Equal(t, []models.Author{{Name: "Heather Piwowar"}}, p.Authors)
}

func TestWorkPath(t *testing.T) {
	assert.Equal(t, "/works/https://doi.org/10.1234/x", workPath("10.1234/x"))
	assert.Equal(t, "/works/W123", workPath("W123"))
}

func TestShortWorkID(t *testing.T) {
	assert.Equal(t, "W123", shortWorkID("https://openalex.org/W123"))
	assert.Equal(t, "W123", shortWorkID("W123"))
}
