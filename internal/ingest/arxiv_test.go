package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoscholar/backend/internal/storage/models"
)

const arxivFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2401.01234v1</id>
    <title>Efficient Attention
      for Long Sequences</title>
    <summary>  We propose a linear
      attention mechanism.  </summary>
    <published>2024-01-03T18:00:00Z</published>
    <author><name>Jane Doe</name></author>
    <author><name>John Smith</name></author>
    <link href="http://arxiv.org/abs/2401.01234v1" rel="alternate"/>
    <link href="http://arxiv.org/pdf/2401.01234v1" rel="related"/>
    <category term="cs.LG"/>
    <category term="cs.CL"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2312.09999v2</id>
    <title>Second Entry</title>
    <summary>Short abstract.</summary>
    <published>2023-12-15T09:30:00Z</published>
    <author><name>Solo Author</name></author>
  </entry>
</feed>`

func TestParseArxivFeed(t *testing.T) {
	papers, err := ParseArxivFeed([]byte(arxivFixture))
	require.NoError(t, err)
	require.Len(t, papers, 2)

	p := papers[0]
	assert.Equal(t, models.PaperID("arxiv:2401.01234v1"), p.ID)
	assert.Equal(t, "Efficient Attention for Long Sequences", p.Title)
	assert.Equal(t, "We propose a linear attention mechanism.", p.Abstract)
	assert.Equal(t, 2024, p.Year)
	assert.Equal(t, "arxiv", p.Source)
	assert.Equal(t, "http://arxiv.org/abs/2401.01234v1", p.URL)
	require.Len(t, p.Authors, 2)
	assert.Equal(t, "Jane Doe", p.Authors[0].Name)
	assert.Equal(t, []string{"cs.LG", "cs.CL"}, p.Keywords)

	assert.Equal(t, models.PaperID("arxiv:2312.09999v2"), papers[1].ID)
	assert.Equal(t, 2023, papers[1].Year)
}

func TestParseArxivFeedInvalidXML(t *testing.T) {
	_, err := ParseArxivFeed([]byte("not xml"))
	assert.Error(t, err)
}

func TestParseArxivFeedEmpty(t *testing.T) {
	papers, err := ParseArxivFeed([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestArxivID(t *testing.T) {
	assert.Equal(t, "arxiv:2401.01234v1", arxivID("http://arxiv.org/abs/2401.01234v1"))
	assert.Equal(t, "opaque-id", arxivID("opaque-id"))
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", collapseWhitespace("  a\n  b\tc  "))
	assert.Equal(t, "", collapseWhitespace("   "))
}
