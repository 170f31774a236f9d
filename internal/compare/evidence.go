package compare

import (
	"fmt"

	"github.com/autoscholar/backend/internal/storage/models"
)

const relationSemanticSimilarity = "semantic_similarity"

// BuildEvidenceGraph returns the comparison graph for a set of selected
// papers. When the compare result already carries a graph with at least one
// edge the backend data is authoritative and passed through untouched.
// Otherwise a fallback graph is synthesized: one node per paper and, for every
// unordered pair, a pair of directed semantic-similarity edges whose single
// evidence record is labeled with the embedding similarity when the metrics
// matrix has an entry for the pair. Keyword overlap is not recomputed here, so
// the shared-keyword list in the metadata stays empty.
func BuildEvidenceGraph(result *Result, papers []models.Paper) Graph {
	graph := Graph{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	if result == nil {
		return graph
	}
	if result.EvidenceGraph != nil && len(result.EvidenceGraph.Edges) > 0 {
		return *result.EvidenceGraph
	}

	for _, p := range papers {
		graph.Nodes = append(graph.Nodes, GraphNode{
			ID:      string(p.ID),
			Title:   p.DisplayTitle(),
			Authors: []models.Author{},
		})
	}

	var sim [][]float64
	if result.Metrics != nil {
		sim = result.Metrics.EmbeddingSimilarity
	}

	for i := 0; i < len(papers); i++ {
		for j := i + 1; j < len(papers); j++ {
			var score *float64
			if i < len(sim) && j < len(sim[i]) {
				v := sim[i][j]
				score = &v
			}

			label := "Semantic relation"
			var similarity interface{}
			if score != nil {
				label = fmt.Sprintf("Semantic similarity %.3f", *score)
				similarity = *score
			}

			evidence := []Evidence{{
				RefID: fmt.Sprintf("client:semantic:%d-%d", i, j),
				Label: label,
				Meta: map[string]interface{}{
					"similarity":      similarity,
					"shared_keywords": []string{},
				},
			}}

			src := string(papers[i].ID)
			dst := string(papers[j].ID)
			graph.Edges = append(graph.Edges,
				GraphEdge{Source: src, Target: dst, Relation: relationSemanticSimilarity, Evidence: evidence},
				GraphEdge{Source: dst, Target: src, Relation: relationSemanticSimilarity, Evidence: evidence},
			)
		}
	}

	return graph
}
