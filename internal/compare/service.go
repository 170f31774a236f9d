package compare

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/graph/neo4j"
	"github.com/autoscholar/backend/internal/metrics"
	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/pkg/logger"
)

// supportThreshold is the minimum similarity for a paper to count as
// supporting a comparison point.
const supportThreshold = 0.45

// maxEvidenceRefs caps the shared-reference evidence attached to one edge.
const maxEvidenceRefs = 10

// Summarizer produces per-paper summaries and the overall comparison text.
type Summarizer interface {
	SummarizePaper(ctx context.Context, title, abstract string) (string, error)
	CompareNarrative(ctx context.Context, summaries []string) (string, error)
}

// EmbeddingProvider embeds abstracts and extracted points.
type EmbeddingProvider interface {
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// CitationGraph answers reference-structure queries for the compared papers.
type CitationGraph interface {
	SharedReferences(ctx context.Context, paperIDs []string, limit int) ([]neo4j.SharedReference, error)
	DirectCitations(ctx context.Context, paperIDs []string) ([]neo4j.Citation, error)
}

// Recorder persists an audit row per comparison.
type Recorder interface {
	InsertCompareRecord(record *models.CompareRecord) error
}

type Service struct {
	summarizer Summarizer
	embeddings EmbeddingProvider
	citations  CitationGraph
	recorder   Recorder
}

func NewService(summarizer Summarizer, embeddings EmbeddingProvider, citations CitationGraph, recorder Recorder) *Service {
	return &Service{
		summarizer: summarizer,
		embeddings: embeddings,
		citations:  citations,
		recorder:   recorder,
	}
}

// Compare builds the full comparison result for the given papers. The
// progress callback, when non-nil, receives stage names as the pipeline
// advances; it drives the streaming endpoint. Degraded backends reduce the
// result instead of failing it: summaries fall back to truncated abstracts,
// and a missing citation graph yields semantic fallback edges.
func (s *Service) Compare(ctx context.Context, papers []models.Paper, progress func(stage string)) (*Result, error) {
	if len(papers) < 2 {
		return nil, fmt.Errorf("need at least 2 papers to compare, got %d", len(papers))
	}

	notify := func(stage string) {
		if progress != nil {
			progress(stage)
		}
	}

	start := time.Now()
	result := &Result{}

	notify("summarizing")
	result.Papers = s.summarize(ctx, papers)

	notify("embedding")
	embeddings := s.embedAbstracts(ctx, papers)

	notify("metrics")
	result.Metrics = computeMetrics(papers, embeddings)

	notify("graph")
	graph, fallback := s.buildGraph(ctx, papers, result.Metrics)
	if fallback {
		metrics.CompareFallbackTotal.Inc()
	}
	result.EvidenceGraph = &graph

	notify("points")
	result.ComparisonPoints = s.comparisonPoints(ctx, papers, embeddings)

	diffs := ComputeDiffs(result, papers)
	result.CommonPoints = diffs.Common
	result.UniquePoints = diffs.Unique

	notify("narrative")
	if s.summarizer != nil {
		summaries := make([]string, len(result.Papers))
		for i, p := range result.Papers {
			summaries[i] = p.Summary
		}
		narrative, err := s.summarizer.CompareNarrative(ctx, summaries)
		if err != nil {
			logger.Warn("Comparison narrative failed", zap.Error(err))
		} else {
			result.Comparison = narrative
		}
	}

	s.record(papers, result, fallback, time.Since(start))

	notify("done")
	return result, nil
}

func (s *Service) summarize(ctx context.Context, papers []models.Paper) []PaperSummary {
	summaries := make([]PaperSummary, len(papers))
	for i, p := range papers {
		summary := ""
		if s.summarizer != nil {
			generated, err := s.summarizer.SummarizePaper(ctx, p.DisplayTitle(), p.Abstract)
			if err != nil {
				logger.Warn("Paper summary failed, using abstract",
					zap.String("paper_id", string(p.ID)),
					zap.Error(err),
				)
			} else {
				summary = generated
			}
		}
		if summary == "" {
			summary = truncate(firstNonEmpty(p.Abstract, p.Summary), 400)
		}
		summaries[i] = PaperSummary{PaperID: p.ID, Summary: summary}
	}
	return summaries
}

func (s *Service) embedAbstracts(ctx context.Context, papers []models.Paper) [][]float32 {
	if s.embeddings == nil {
		return nil
	}

	texts := make([]string, len(papers))
	for i, p := range papers {
		texts[i] = firstNonEmpty(p.Abstract, p.Summary, p.Title)
	}

	embeddings, err := s.embeddings.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		logger.Warn("Abstract embedding failed", zap.Error(err))
		return nil
	}
	if len(embeddings) != len(papers) {
		return nil
	}
	return embeddings
}

// computeMetrics fills the three pairwise matrices. Diagonals are 1.0. The
// embedding matrix is zero off-diagonal when no embeddings are available.
func computeMetrics(papers []models.Paper, embeddings [][]float32) *Metrics {
	n := len(papers)
	m := &Metrics{
		EmbeddingSimilarity: identityMatrix(n),
		CitationOverlap:     identityMatrix(n),
		KeywordOverlap:      identityMatrix(n),
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if embeddings != nil {
				sim := cosine(embeddings[i], embeddings[j])
				m.EmbeddingSimilarity[i][j] = sim
				m.EmbeddingSimilarity[j][i] = sim
			}

			citOverlap := jaccard(papers[i].References, papers[j].References)
			m.CitationOverlap[i][j] = citOverlap
			m.CitationOverlap[j][i] = citOverlap

			kwOverlap := jaccard(papers[i].Keywords, papers[j].Keywords)
			m.KeywordOverlap[i][j] = kwOverlap
			m.KeywordOverlap[j][i] = kwOverlap
		}
	}

	return m
}

// buildGraph assembles the evidence graph from the citation store: shared
// reference edges and direct citation edges. When the store yields nothing,
// semantic fallback edges carry the embedding similarity and shared keywords.
func (s *Service) buildGraph(ctx context.Context, papers []models.Paper, metrics *Metrics) (Graph, bool) {
	graph := Graph{Nodes: []GraphNode{}, Edges: []GraphEdge{}}

	indexByID := make(map[string]int, len(papers))
	ids := make([]string, len(papers))
	for i, p := range papers {
		ids[i] = string(p.ID)
		indexByID[string(p.ID)] = i

		node := GraphNode{
			ID:      string(p.ID),
			Title:   p.DisplayTitle(),
			Authors: p.Authors,
		}
		if p.Year > 0 {
			year := p.Year
			node.Year = &year
		}
		if node.Authors == nil {
			node.Authors = []models.Author{}
		}
		graph.Nodes = append(graph.Nodes, node)
	}

	if s.citations != nil {
		shared, err := s.citations.SharedReferences(ctx, ids, 50)
		if err != nil {
			logger.Warn("Shared reference lookup failed", zap.Error(err))
		} else {
			graph.Edges = append(graph.Edges, sharedReferenceEdges(shared)...)
		}

		direct, err := s.citations.DirectCitations(ctx, ids)
		if err != nil {
			logger.Warn("Direct citation lookup failed", zap.Error(err))
		} else {
			for _, c := range direct {
				graph.Edges = append(graph.Edges, GraphEdge{
					Source:   c.FromID,
					Target:   c.ToID,
					Relation: "cites",
					Evidence: []Evidence{},
				})
			}
		}
	}

	if len(graph.Edges) > 0 {
		return graph, false
	}

	// No citation structure between these papers: synthesize semantic edges.
	for i := 0; i < len(papers); i++ {
		for j := i + 1; j < len(papers); j++ {
			sim := metrics.EmbeddingSimilarity[i][j]
			shared := sharedKeywords(papers[i].Keywords, papers[j].Keywords)

			evidence := []Evidence{{
				RefID: fmt.Sprintf("semantic:%d-%d", i, j),
				Label: fmt.Sprintf("Semantic similarity %.3f", sim),
				Meta: map[string]interface{}{
					"similarity":      sim,
					"shared_keywords": shared,
				},
			}}

			graph.Edges = append(graph.Edges,
				GraphEdge{Source: ids[i], Target: ids[j], Relation: relationSemanticSimilarity, Evidence: evidence},
				GraphEdge{Source: ids[j], Target: ids[i], Relation: relationSemanticSimilarity, Evidence: evidence},
			)
		}
	}

	return graph, true
}

// sharedReferenceEdges emits one edge per pair of comparison papers that cite
// the same reference, accumulating the references as evidence.
func sharedReferenceEdges(shared []neo4j.SharedReference) []GraphEdge {
	type pairKey struct{ a, b string }
	edgesByPair := make(map[pairKey]*GraphEdge)
	var order []pairKey

	for _, sr := range shared {
		label := citationLabel(sr.Reference)
		for x := 0; x < len(sr.CitedBy); x++ {
			for y := x + 1; y < len(sr.CitedBy); y++ {
				a, b := sr.CitedBy[x], sr.CitedBy[y]
				if a > b {
					a, b = b, a
				}
				key := pairKey{a, b}

				edge, ok := edgesByPair[key]
				if !ok {
					edge = &GraphEdge{
						Source:   a,
						Target:   b,
						Relation: "shared_reference",
						Evidence: []Evidence{},
					}
					edgesByPair[key] = edge
					order = append(order, key)
				}

				if len(edge.Evidence) < maxEvidenceRefs {
					edge.Evidence = append(edge.Evidence, Evidence{
						RefID: sr.Reference.ID,
						Label: label,
					})
				}
			}
		}
	}

	edges := make([]GraphEdge, 0, len(order))
	for _, key := range order {
		edges = append(edges, *edgesByPair[key])
	}
	return edges
}

// citationLabel renders a reference as "Lname et al., year".
func citationLabel(ref neo4j.PaperNode) string {
	name := "Unknown"
	if len(ref.Authors) > 0 {
		parts := strings.Fields(ref.Authors[0])
		if len(parts) > 0 {
			name = parts[len(parts)-1]
		}
	}
	if len(ref.Authors) > 1 {
		name += " et al."
	}
	if ref.Year > 0 {
		return fmt.Sprintf("%s, %d", name, ref.Year)
	}
	return name
}

// comparisonPoints extracts claim sentences from every abstract, embeds them,
// and scores each point against every paper's abstract embedding. A paper
// supports a point when the similarity clears the threshold.
func (s *Service) comparisonPoints(ctx context.Context, papers []models.Paper, paperEmbeddings [][]float32) []ComparisonPoint {
	if s.embeddings == nil || paperEmbeddings == nil {
		return nil
	}

	var texts []string
	for _, p := range papers {
		texts = append(texts, ExtractPoints(firstNonEmpty(p.Abstract, p.Summary))...)
	}
	if len(texts) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(texts))
	var points []string
	for _, t := range texts {
		norm := strings.ToLower(strings.TrimSpace(t))
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		points = append(points, t)
	}

	pointEmbeddings, err := s.embeddings.GenerateBatchEmbeddings(ctx, points)
	if err != nil {
		logger.Warn("Point embedding failed", zap.Error(err))
		return nil
	}
	if len(pointEmbeddings) != len(points) {
		return nil
	}

	var result []ComparisonPoint
	for i, point := range points {
		cp := ComparisonPoint{Text: point}
		for j, p := range papers {
			score := cosine(pointEmbeddings[i], paperEmbeddings[j])
			if score >= supportThreshold {
				cp.Supports = append(cp.Supports, PointSupport{
					PaperID: p.ID,
					Score:   round4(score),
				})
			}
		}
		if len(cp.Supports) > 0 {
			result = append(result, cp)
		}
	}

	return result
}

func (s *Service) record(papers []models.Paper, result *Result, fallback bool, elapsed time.Duration) {
	if s.recorder == nil {
		return
	}

	ids := make([]models.PaperID, len(papers))
	for i, p := range papers {
		ids[i] = p.ID
	}

	edgeCount := 0
	if result.EvidenceGraph != nil {
		edgeCount = len(result.EvidenceGraph.Edges)
	}

	err := s.recorder.InsertCompareRecord(&models.CompareRecord{
		ID:        uuid.New().String(),
		PaperIDs:  ids,
		Mode:      "full",
		LatencyMS: int(elapsed.Milliseconds()),
		EdgeCount: edgeCount,
		Fallback:  fallback,
		CreatedAt: time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to record comparison", zap.Error(err))
	}
}

func identityMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1.0
	}
	return m
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	inter := 0
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		key := strings.ToLower(strings.TrimSpace(s))
		if _, dup := setB[key]; dup {
			continue
		}
		setB[key] = struct{}{}
		if _, ok := setA[key]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func sharedKeywords(a, b []string) []string {
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	shared := []string{}
	seen := make(map[string]struct{})
	for _, s := range b {
		key := strings.ToLower(strings.TrimSpace(s))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := setA[key]; ok {
			shared = append(shared, key)
		}
	}
	return shared
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
