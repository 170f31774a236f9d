package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/pkg/circuitbreaker"
	"github.com/autoscholar/backend/pkg/logger"
	"github.com/autoscholar/backend/pkg/retry"
)

type Client struct {
	driver      neo4j.DriverWithContext
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

// PaperNode is a paper stored in the citation graph.
type PaperNode struct {
	ID      string
	DOI     string
	Title   string
	Authors []string
	Year    int
}

// Citation is a CITES edge between two stored papers.
type Citation struct {
	FromID string
	ToID   string
	Source string
}

func NewClient(uri, username, password string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri))

	return &Client{
		driver:      driver,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: "neo4j"})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

func (c *Client) CreatePaper(ctx context.Context, paper *PaperNode) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: "neo4j"})
	defer session.Close(ctx)

	query := `
		MERGE (p:Paper {id: $id})
		SET p.doi = $doi,
		    p.title = $title,
		    p.authors = $authors,
		    p.year = $year,
		    p.updated_at = timestamp()
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"id":      paper.ID,
		"doi":     paper.DOI,
		"title":   paper.Title,
		"authors": paper.Authors,
		"year":    paper.Year,
	})

	if err != nil {
		return fmt.Errorf("failed to create paper node: %w", err)
	}

	logger.Debug("Paper node created", zap.String("paper_id", paper.ID), zap.String("title", paper.Title))

	return nil
}

func (c *Client) CreateCitation(ctx context.Context, citation *Citation) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: "neo4j"})
	defer session.Close(ctx)

	query := `
		MATCH (a:Paper {id: $from_id})
		MATCH (b:Paper {id: $to_id})
		MERGE (a)-[r:CITES]->(b)
		SET r.source = $source,
		    r.created_at = timestamp()
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"from_id": citation.FromID,
		"to_id":   citation.ToID,
		"source":  citation.Source,
	})

	if err != nil {
		return fmt.Errorf("failed to create citation: %w", err)
	}

	logger.Debug("Citation created",
		zap.String("from", citation.FromID),
		zap.String("to", citation.ToID),
	)

	return nil
}

// References returns the ids of papers the given paper cites.
func (c *Client) References(ctx context.Context, paperID string) ([]string, error) {
	var refs []string

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (p:Paper {id: $id})-[:CITES]->(ref:Paper)
			RETURN ref.id
		`

		result, err := session.Run(ctx, query, map[string]interface{}{"id": paperID})
		if err != nil {
			return fmt.Errorf("failed to get references: %w", err)
		}

		for result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("ref.id")
			if s, ok := id.(string); ok {
				refs = append(refs, s)
			}
		}

		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating results: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return refs, nil
}

// CitingPapers returns papers that cite the given paper.
func (c *Client) CitingPapers(ctx context.Context, paperID string, limit int) ([]PaperNode, error) {
	var papers []PaperNode

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (citing:Paper)-[:CITES]->(p:Paper {id: $id})
			RETURN citing.id, citing.doi, citing.title, citing.authors, citing.year
			ORDER BY citing.year DESC
			LIMIT $limit
		`

		result, err := session.Run(ctx, query, map[string]interface{}{
			"id":    paperID,
			"limit": limit,
		})
		if err != nil {
			return fmt.Errorf("failed to get citing papers: %w", err)
		}

		for result.Next(ctx) {
			papers = append(papers, recordToPaper(result.Record(), "citing"))
		}

		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating results: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	logger.Info("Citing papers retrieved",
		zap.String("paper_id", paperID),
		zap.Int("results", len(papers)),
	)

	return papers, nil
}

// SharedReference is a paper cited by at least two of the papers under
// comparison, with the ids of the comparison papers that cite it.
type SharedReference struct {
	Reference PaperNode
	CitedBy   []string
}

// SharedReferences finds papers cited by two or more of the given papers.
func (c *Client) SharedReferences(ctx context.Context, paperIDs []string, limit int) ([]SharedReference, error) {
	var shared []SharedReference

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (p:Paper)-[:CITES]->(ref:Paper)
			WHERE p.id IN $ids
			WITH ref, collect(DISTINCT p.id) AS citers
			WHERE size(citers) >= 2
			RETURN ref.id, ref.doi, ref.title, ref.authors, ref.year, citers
			ORDER BY size(citers) DESC
			LIMIT $limit
		`

		result, err := session.Run(ctx, query, map[string]interface{}{
			"ids":   paperIDs,
			"limit": limit,
		})
		if err != nil {
			return fmt.Errorf("failed to find shared references: %w", err)
		}

		for result.Next(ctx) {
			record := result.Record()
			ref := recordToPaper(record, "ref")

			var citedBy []string
			if raw, ok := record.Get("citers"); ok {
				if vals, ok := raw.([]interface{}); ok {
					for _, v := range vals {
						if s, ok := v.(string); ok {
							citedBy = append(citedBy, s)
						}
					}
				}
			}

			shared = append(shared, SharedReference{Reference: ref, CitedBy: citedBy})
		}

		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating results: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	logger.Info("Shared references found",
		zap.Int("papers", len(paperIDs)),
		zap.Int("shared", len(shared)),
	)

	return shared, nil
}

// DirectCitations returns CITES edges between the given papers themselves.
func (c *Client) DirectCitations(ctx context.Context, paperIDs []string) ([]Citation, error) {
	var citations []Citation

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (a:Paper)-[r:CITES]->(b:Paper)
			WHERE a.id IN $ids AND b.id IN $ids
			RETURN a.id, b.id, r.source
		`

		result, err := session.Run(ctx, query, map[string]interface{}{"ids": paperIDs})
		if err != nil {
			return fmt.Errorf("failed to get direct citations: %w", err)
		}

		for result.Next(ctx) {
			record := result.Record()
			from, _ := record.Get("a.id")
			to, _ := record.Get("b.id")
			source, _ := record.Get("r.source")

			citation := Citation{
				FromID: from.(string),
				ToID:   to.(string),
			}
			if s, ok := source.(string); ok {
				citation.Source = s
			}
			citations = append(citations, citation)
		}

		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating results: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return citations, nil
}

func recordToPaper(record *neo4j.Record, alias string) PaperNode {
	id, _ := record.Get(alias + ".id")
	doi, _ := record.Get(alias + ".doi")
	title, _ := record.Get(alias + ".title")
	authorsRaw, _ := record.Get(alias + ".authors")
	year, _ := record.Get(alias + ".year")

	p := PaperNode{}
	if s, ok := id.(string); ok {
		p.ID = s
	}
	if s, ok := doi.(string); ok {
		p.DOI = s
	}
	if s, ok := title.(string); ok {
		p.Title = s
	}
	if vals, ok := authorsRaw.([]interface{}); ok {
		for _, v := range vals {
			if s, ok := v.(string); ok {
				p.Authors = append(p.Authors, s)
			}
		}
	}
	if n, ok := year.(int64); ok {
		p.Year = int(n)
	}

	return p
}
