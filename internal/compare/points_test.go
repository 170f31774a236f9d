package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPoints(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
		{
			name:     "whitespace only",
			input:    "   \n\t  ",
			expected: nil,
		},
		{
			name:  "splits on sentence boundaries",
			input: "Models improve performance significantly. Uses transformers with extensive pretraining.",
			expected: []string{
				"Models improve performance significantly.",
				"Uses transformers with extensive pretraining.",
			},
		},
		{
			name:  "splits on line breaks",
			input: "First finding about neural attention\nSecond finding about scaling laws",
			expected: []string{
				"First finding about neural attention",
				"Second finding about scaling laws",
			},
		},
		{
			name:  "strips bullet markers",
			input: "- Attention mechanisms dominate sequence modeling\n• Scaling compute improves results predictably",
			expected: []string{
				"Attention mechanisms dominate sequence modeling",
				"Scaling compute improves results predictably",
			},
		},
		{
			name:  "drops short fragments",
			input: "Too short. This fragment is long enough to be kept as a point.",
			expected: []string{
				"This fragment is long enough to be kept as a point.",
			},
		},
		{
			name:  "keeps terminal punctuation",
			input: "Does attention scale to long contexts? Empirically it degrades beyond training length!",
			expected: []string{
				"Does attention scale to long contexts?",
				"Empirically it degrades beyond training length!",
			},
		},
		{
			name:  "no split without trailing whitespace",
			input: "Achieves 95.3 accuracy on the held-out benchmark set",
			expected: []string{
				"Achieves 95.3 accuracy on the held-out benchmark set",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractPoints(tt.input))
		})
	}
}

func TestExtractPointsIdempotent(t *testing.T) {
	input := "Models improve performance significantly. Uses transformers with extensive pretraining."

	first := ExtractPoints(input)
	for _, point := range first {
		again := ExtractPoints(point)
		assert.Equal(t, []string{point}, again)
	}
}

func TestExtractPointsBoundaryLength(t *testing.T) {
	// Exactly 20 characters is dropped; 21 is kept.
	exactly20 := "aaaaaaaaaaaaaaaaaaaa"
	exactly21 := "aaaaaaaaaaaaaaaaaaaaa"

	assert.Len(t, exactly20, 20)
	assert.Nil(t, ExtractPoints(exactly20))
	assert.Equal(t, []string{exactly21}, ExtractPoints(exactly21))
}
