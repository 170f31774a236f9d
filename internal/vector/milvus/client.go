package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// PaperVector is one embedded abstract stored in the collection.
type PaperVector struct {
	PaperID   string
	Embedding []float32
	Title     string
	Abstract  string
	Source    string
	Year      int
	Timestamp time.Time
}

type SearchResult struct {
	PaperID  string
	Title    string
	Abstract string
	Source   string
	Year     int
	Score    float32
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Paper abstract embeddings",
		Fields: []*entity.Field{
			{
				Name:       "paper_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "abstract",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "year",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.IP, 1024)
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, vectors []PaperVector) error {
	if len(vectors) == 0 {
		return nil
	}

	paperIDs := make([]string, len(vectors))
	embeddings := make([][]float32, len(vectors))
	titles := make([]string, len(vectors))
	abstracts := make([]string, len(vectors))
	sources := make([]string, len(vectors))
	years := make([]int64, len(vectors))
	timestamps := make([]int64, len(vectors))

	for i, v := range vectors {
		paperIDs[i] = v.PaperID
		embeddings[i] = v.Embedding
		titles[i] = v.Title
		abstracts[i] = v.Abstract
		sources[i] = v.Source
		years[i] = int64(v.Year)
		timestamps[i] = v.Timestamp.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("paper_id", paperIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("abstract", abstracts),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnInt64("year", years),
		entity.NewColumnInt64("timestamp", timestamps),
	)

	if err != nil {
		return fmt.Errorf("failed to insert vectors: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Papers inserted into vector DB", zap.Int("count", len(vectors)))

	return nil
}

// Search returns the topK papers closest to the query embedding. Filters
// support "source" and "year_min"/"year_max" expressions.
func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]string) ([]SearchResult, error) {
	expr := ""
	if source, ok := filters["source"]; ok && source != "" {
		expr = fmt.Sprintf(`source == "%s"`, source)
	}
	if yearMin, ok := filters["year_min"]; ok && yearMin != "" {
		if expr != "" {
			expr += " && "
		}
		expr += fmt.Sprintf("year >= %s", yearMin)
	}
	if yearMax, ok := filters["year_max"]; ok && yearMax != "" {
		if expr != "" {
			expr += " && "
		}
		expr += fmt.Sprintf("year <= %s", yearMax)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"paper_id", "title", "abstract", "source", "year"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			paperIDCol := sr.Fields.GetColumn("paper_id")
			titleCol := sr.Fields.GetColumn("title")
			abstractCol := sr.Fields.GetColumn("abstract")
			sourceCol := sr.Fields.GetColumn("source")
			yearCol := sr.Fields.GetColumn("year")

			paperID, _ := paperIDCol.Get(i)
			title, _ := titleCol.Get(i)
			abstract, _ := abstractCol.Get(i)
			source, _ := sourceCol.Get(i)
			year, _ := yearCol.Get(i)

			results = append(results, SearchResult{
				PaperID:  paperID.(string),
				Title:    title.(string),
				Abstract: abstract.(string),
				Source:   source.(string),
				Year:     int(year.(int64)),
				Score:    sr.Scores[i],
			})
		}
	}

	logger.Info("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
		zap.String("filters", expr),
	)

	return results, nil
}

// Fetch returns the stored embeddings for the given paper ids, keyed by id.
func (m *Client) Fetch(ctx context.Context, paperIDs []string) (map[string][]float32, error) {
	if len(paperIDs) == 0 {
		return nil, nil
	}

	expr := "paper_id in ["
	for i, id := range paperIDs {
		if i > 0 {
			expr += ", "
		}
		expr += fmt.Sprintf("%q", id)
	}
	expr += "]"

	rs, err := m.client.Query(ctx, m.collectionName, []string{}, expr, []string{"paper_id", "embedding"})
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}

	out := make(map[string][]float32, len(paperIDs))

	var idCol *entity.ColumnVarChar
	var vecCol *entity.ColumnFloatVector
	for _, col := range rs {
		switch c := col.(type) {
		case *entity.ColumnVarChar:
			idCol = c
		case *entity.ColumnFloatVector:
			vecCol = c
		}
	}
	if idCol == nil || vecCol == nil {
		return out, nil
	}

	for i := 0; i < idCol.Len(); i++ {
		id, err := idCol.ValueByIdx(i)
		if err != nil {
			continue
		}
		out[id] = vecCol.Data()[i]
	}

	return out, nil
}
