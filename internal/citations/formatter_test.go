package citations

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoscholar/backend/internal/storage/models"
)

func samplePaper() *models.Paper {
	return &models.Paper{
		Title: "Attention Is All You Need",
		Authors: []models.Author{
			{Name: "Ashish Vaswani"},
			{Name: "Noam Shazeer"},
		},
		Year:    2017,
		Journal: "Advances in Neural Information Processing Systems",
		Volume:  "30",
		Pages:   "5998-6008",
		DOI:     "10.5555/3295222",
	}
}

func TestFormatAPA(t *testing.T) {
	got, err := Format(samplePaper(), StyleAPA)
	require.NoError(t, err)

	assert.Equal(t,
		"Vaswani, A., & Shazeer, N. (2017). Attention Is All You Need."+
			" Advances in Neural Information Processing Systems, 30, 5998-6008."+
			" https://doi.org/10.5555/3295222",
		got,
	)
}

func TestFormatAPANoAuthorsNoYear(t *testing.T) {
	got, err := Format(&models.Paper{Title: "Anonymous Report"}, StyleAPA)
	require.NoError(t, err)

	assert.Equal(t, "Unknown. (n.d.). Anonymous Report.", got)
}

func TestFormatAPAManyAuthorsEllipsis(t *testing.T) {
	p := &models.Paper{Title: "Large Collaboration", Year: 2023}
	for i := 0; i < 25; i++ {
		p.Authors = append(p.Authors, models.Author{Name: fmt.Sprintf("Given Author%d", i)})
	}

	got, err := Format(p, StyleAPA)
	require.NoError(t, err)

	assert.Contains(t, got, ", ... Author24, G.")
	assert.NotContains(t, got, "Author19")
}

func TestFormatMLA(t *testing.T) {
	got, err := Format(samplePaper(), StyleMLA)
	require.NoError(t, err)

	assert.Equal(t,
		`Vaswani, Ashish, and Noam Shazeer. "Attention Is All You Need."`+
			" Advances in Neural Information Processing Systems, vol. 30, 2017, pp. 5998-6008.",
		got,
	)
}

func TestFormatMLAEtAl(t *testing.T) {
	p := samplePaper()
	p.Authors = append(p.Authors, models.Author{Name: "Niki Parmar"})

	got, err := Format(p, StyleMLA)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "Vaswani, Ashish, et al."), got)
}

func TestFormatChicago(t *testing.T) {
	got, err := Format(samplePaper(), StyleChicago)
	require.NoError(t, err)

	assert.Equal(t,
		`Vaswani, Ashish, and Noam Shazeer. "Attention Is All You Need."`+
			" Advances in Neural Information Processing Systems 30 (2017): 5998-6008.",
		got,
	)
}

func TestFormatBibTeX(t *testing.T) {
	got, err := Format(samplePaper(), StyleBibTeX)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "@article{vaswani2017attention,\n"), got)
	assert.Contains(t, got, "  title = {Attention Is All You Need},\n")
	assert.Contains(t, got, "  author = {Ashish Vaswani and Noam Shazeer},\n")
	assert.Contains(t, got, "  volume = {30},\n")
	assert.Contains(t, got, "  year = {2017},\n")
	assert.Contains(t, got, "  doi = {10.5555/3295222},\n")
	assert.True(t, strings.HasSuffix(got, "}"), got)
}

func TestFormatUnsupportedStyle(t *testing.T) {
	_, err := Format(samplePaper(), Style("harvard"))
	assert.Error(t, err)
}

func TestExportJoinsWithBlankLine(t *testing.T) {
	papers := []models.Paper{*samplePaper(), {Title: "Second Paper", Year: 2020}}

	got, err := Export(papers, StyleAPA)
	require.NoError(t, err)

	parts := strings.Split(got, "\n\n")
	require.Len(t, parts, 2)
	assert.Contains(t, parts[1], "Second Paper")
}

func TestBibtexKey(t *testing.T) {
	tests := []struct {
		name     string
		paper    models.Paper
		expected string
	}{
		{
			name:     "full paper",
			paper:    *samplePaper(),
			expected: "vaswani2017attention",
		},
		{
			name:     "no authors",
			paper:    models.Paper{Title: "Deep Learning", Year: 2016},
			expected: "unknown2016deep",
		},
		{
			name:     "short title words skipped",
			paper:    models.Paper{Authors: []models.Author{{Name: "Ada Lovelace"}}, Title: "On the use of engines"},
			expected: "lovelaceengines",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, bibtexKey(&tt.paper))
		})
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		last     string
		initials string
	}{
		{"two parts", "Ada Lovelace", "Lovelace", "A."},
		{"three parts", "John von Neumann", "Neumann", "J. v."},
		{"single word", "Aristotle", "Aristotle", ""},
		{"empty", "  ", "Unknown", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last, initials := splitName(tt.input)
			assert.Equal(t, tt.last, last)
			assert.Equal(t, tt.initials, initials)
		})
	}
}
