package novelty

import (
	"context"
	"fmt"
	"math"
	"strings"

	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/vector/milvus"
	"github.com/autoscholar/backend/pkg/logger"
)

// similarityFloor marks a neighbor as "highly similar" in the breakdown.
const similarityFloor = 0.7

// maxExamples caps the similar papers returned with a score.
const maxExamples = 10

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type VectorIndex interface {
	Search(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]milvus.SearchResult, error)
}

// Breakdown exposes the components behind a novelty score.
type Breakdown struct {
	MaxSimilarity float64 `json:"max_similarity"`
	SimilarCount  int     `json:"similar_count"`
	MaxOverlap    float64 `json:"max_overlap"`
	OverlapScore  float64 `json:"overlap_score"`
	EntropyNorm   float64 `json:"entropy_norm"`
}

type SimilarExample struct {
	PaperID    string  `json:"paper_id"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
	Overlap    float64 `json:"overlap"`
}

type Score struct {
	Novelty         float64          `json:"novelty"`
	Breakdown       Breakdown        `json:"breakdown"`
	SimilarExamples []SimilarExample `json:"similar_examples"`
}

type Scorer struct {
	embed  Embedder
	vector VectorIndex
}

func NewScorer(embed Embedder, vector VectorIndex) *Scorer {
	return &Scorer{embed: embed, vector: vector}
}

// Score rates how novel an abstract is against the indexed corpus. The score
// blends distance from the nearest neighbors, term overlap with them, and the
// lexical entropy of the abstract itself:
//
//	novelty = 0.6*(1-maxSim) + 0.2*(1-overlapScore) + 0.2*entropyNorm
//
// clamped to [0,1] and rounded to 4 decimal places.
func (s *Scorer) Score(ctx context.Context, title, abstract string) (*Score, error) {
	text := strings.TrimSpace(abstract)
	if text == "" {
		return nil, fmt.Errorf("empty abstract")
	}

	embedding, err := s.embed.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed abstract: %w", err)
	}

	neighbors, err := s.vector.Search(ctx, embedding, maxExamples, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to find similar papers: %w", err)
	}

	terms := contentTerms(title + " " + text)
	entropyNorm := tokenEntropy(text)

	var maxSim, maxOverlap, overlapSum float64
	similarCount := 0
	examples := make([]SimilarExample, 0, len(neighbors))

	for _, n := range neighbors {
		sim := float64(n.Score)
		if sim > maxSim {
			maxSim = sim
		}
		if sim >= similarityFloor {
			similarCount++
		}

		overlap := termOverlap(terms, contentTerms(n.Title+" "+n.Abstract))
		if overlap > maxOverlap {
			maxOverlap = overlap
		}
		overlapSum += overlap

		examples = append(examples, SimilarExample{
			PaperID:    n.PaperID,
			Title:      n.Title,
			Similarity: round4(sim),
			Overlap:    round4(overlap),
		})
	}

	overlapScore := 0.0
	if len(neighbors) > 0 {
		overlapScore = overlapSum / float64(len(neighbors))
	}

	novelty := 0.6*(1-maxSim) + 0.2*(1-overlapScore) + 0.2*entropyNorm
	novelty = math.Max(0, math.Min(1, novelty))

	score := &Score{
		Novelty: round4(novelty),
		Breakdown: Breakdown{
			MaxSimilarity: round4(maxSim),
			SimilarCount:  similarCount,
			MaxOverlap:    round4(maxOverlap),
			OverlapScore:  round4(overlapScore),
			EntropyNorm:   round4(entropyNorm),
		},
		SimilarExamples: examples,
	}

	logger.Info("Novelty scored",
		zap.String("title", title),
		zap.Float64("novelty", score.Novelty),
		zap.Int("neighbors", len(neighbors)),
	)

	return score, nil
}

// contentTerms extracts the lowercase nouns and adjectives from the text.
// These carry the topical signal; function words only add noise to overlap.
func contentTerms(text string) map[string]struct{} {
	terms := make(map[string]struct{})

	doc, err := prose.NewDocument(text)
	if err != nil {
		// Tagger failure falls back to a plain token split.
		for _, f := range strings.Fields(strings.ToLower(text)) {
			if len(f) > 3 {
				terms[f] = struct{}{}
			}
		}
		return terms
	}

	for _, tok := range doc.Tokens() {
		if !strings.HasPrefix(tok.Tag, "NN") && !strings.HasPrefix(tok.Tag, "JJ") {
			continue
		}
		word := strings.ToLower(tok.Text)
		if len(word) > 2 {
			terms[word] = struct{}{}
		}
	}

	return terms
}

func termOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// tokenEntropy measures lexical diversity: the Shannon entropy of the token
// distribution normalized by the maximum for the vocabulary size.
func tokenEntropy(text string) float64 {
	counts := make(map[string]int)
	total := 0
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.Trim(f, ".,;:!?()[]\"'")
		if f == "" {
			continue
		}
		counts[f]++
		total++
	}

	if total == 0 || len(counts) < 2 {
		return 0
	}

	entropy := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}

	return entropy / math.Log2(float64(len(counts)))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
