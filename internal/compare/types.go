package compare

import (
	"github.com/autoscholar/backend/internal/storage/models"
)

// Evidence is one supporting reference attached to a graph edge or a
// comparison point.
type Evidence struct {
	RefID string                 `json:"ref_id"`
	Label string                 `json:"label"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

type GraphNode struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Authors []models.Author `json:"authors"`
	Year    *int            `json:"year"`
}

type GraphEdge struct {
	Source   string     `json:"source"`
	Target   string     `json:"target"`
	Relation string     `json:"relation"`
	Evidence []Evidence `json:"evidence"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

type PaperSummary struct {
	PaperID models.PaperID `json:"paper_id"`
	Summary string         `json:"summary"`
}

// Metrics holds the pairwise matrices, indexed by the positional order of the
// compared papers. Diagonal entries are 1.0.
type Metrics struct {
	EmbeddingSimilarity [][]float64 `json:"embedding_similarity"`
	CitationOverlap     [][]float64 `json:"citation_overlap"`
	KeywordOverlap      [][]float64 `json:"keyword_overlap"`
}

type PointSupport struct {
	PaperID     models.PaperID `json:"paper_id"`
	Score       float64        `json:"score"`
	ExampleRefs []Evidence     `json:"example_refs"`
}

type ComparisonPoint struct {
	Text     string         `json:"text"`
	Supports []PointSupport `json:"supports"`
}

// Result is the full compare-papers response.
type Result struct {
	Papers           []PaperSummary    `json:"papers,omitempty"`
	Comparison       string            `json:"comparison,omitempty"`
	Metrics          *Metrics          `json:"metrics,omitempty"`
	EvidenceGraph    *Graph            `json:"evidence_graph,omitempty"`
	ComparisonPoints []ComparisonPoint `json:"comparison_points,omitempty"`
	CommonPoints     []string          `json:"common_points,omitempty"`
	UniquePoints     map[string][]string `json:"unique_points,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// Diffs is the output of ComputeDiffs: points shared by every compared paper
// and points belonging to exactly one of them.
type Diffs struct {
	Common []string            `json:"common"`
	Unique map[string][]string `json:"unique"`
}
