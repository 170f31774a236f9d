package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoscholar/backend/internal/storage/models"
)

const springerFixture = `{
  "records": [
    {
      "doi": "10.1007/s10462-023-10562-9",
      "title": "A survey of transformer architectures",
      "publicationName": "Artificial Intelligence Review",
      "publicationDate": "2023-08-12",
      "volume": "56",
      "number": "12",
      "startingPage": "14873",
      "endingPage": "14938",
      "publisher": "Springer",
      "abstract": "Transformers dominate modern NLP.",
      "creators": [
        {"creator": "Lin, Tianyang"},
        {"creator": "Wang, Yuxin"}
      ],
      "url": [{"value": "https://doi.org/10.1007/s10462-023-10562-9"}],
      "subjects": ["Artificial Intelligence", "Machine Learning"]
    },
    {
      "doi": "10.1007/minimal",
      "title": "Minimal Record",
      "publicationDate": "2020-01-01",
      "startingPage": "5"
    }
  ]
}`

func TestParseSpringerResponse(t *testing.T) {
	papers, err := ParseSpringerResponse([]byte(springerFixture))
	require.NoError(t, err)
	require.Len(t, papers, 2)

	p := papers[0]
	assert.Equal(t, models.PaperID("doi:10.1007/s10462-023-10562-9"), p.ID)
	assert.Equal(t, "10.1007/s10462-023-10562-9", p.DOI)
	assert.Equal(t, "A survey of transformer architectures", p.Title)
	assert.Equal(t, "Artificial Intelligence Review", p.Journal)
	assert.Equal(t, "56", p.Volume)
	assert.Equal(t, "12", p.Issue)
	assert.Equal(t, "14873-14938", p.Pages)
	assert.Equal(t, 2023, p.Year)
	assert.Equal(t, "springer", p.Source)
	assert.Equal(t, "https://doi.org/10.1007/s10462-023-10562-9", p.URL)
	require.Len(t, p.Authors, 2)
	assert.Equal(t, "Lin, Tianyang", p.Authors[0].Name)
	assert.Equal(t, []string{"Artificial Intelligence", "Machine Learning"}, p.Keywords)

	minimal := papers[1]
	assert.Equal(t, "5", minimal.Pages)
	assert.Equal(t, 2020, minimal.Year)
	assert.Empty(t, minimal.Authors)
}

func TestParseSpringerResponseInvalidJSON(t *testing.T) {
	_, err := ParseSpringerResponse([]byte("{broken"))
	assert.Error(t, err)
}

func TestParseSpringerResponseEmpty(t *testing.T) {
	papers, err := ParseSpringerResponse([]byte(`{"records": []}`))
	require.NoError(t, err)
	assert.Empty(t, papers)
}
