package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/pkg/logger"
	"github.com/autoscholar/backend/pkg/retry"
)

const arxivBaseURL = "http://export.arxiv.org/api/query"

// ArxivClient fetches papers from the arXiv Atom API.
type ArxivClient struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	DOI string `xml:"doi"`
}

func NewArxivClient(baseURL string) *ArxivClient {
	if baseURL == "" {
		baseURL = arxivBaseURL
	}
	return &ArxivClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       5 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			Logger:         logger.GetLogger(),
		},
	}
}

// Fetch queries arXiv and converts the Atom entries to papers.
func (c *ArxivClient) Fetch(ctx context.Context, query string, maxResults int) ([]models.Paper, error) {
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	reqURL := c.baseURL + "?" + params.Encode()

	var body []byte
	err := retry.Do(ctx, c.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call arxiv: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			return fmt.Errorf("arxiv returned status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	papers, err := ParseArxivFeed(body)
	if err != nil {
		return nil, err
	}

	logger.Info("arXiv feed fetched",
		zap.String("query", query),
		zap.Int("results", len(papers)),
	)

	return papers, nil
}

// ParseArxivFeed converts an Atom payload into papers.
func ParseArxivFeed(data []byte) ([]models.Paper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse atom feed: %w", err)
	}

	papers := make([]models.Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		p := models.Paper{
			ID:        models.PaperID(arxivID(e.ID)),
			DOI:       e.DOI,
			Title:     collapseWhitespace(e.Title),
			Abstract:  collapseWhitespace(e.Summary),
			URL:       e.ID,
			Published: e.Published,
			Source:    "arxiv",
		}

		if len(e.Published) >= 4 {
			fmt.Sscanf(e.Published[:4], "%d", &p.Year)
		}

		for _, a := range e.Authors {
			p.Authors = append(p.Authors, models.Author{Name: a.Name})
		}
		for _, cat := range e.Categories {
			p.Keywords = append(p.Keywords, cat.Term)
		}
		for _, link := range e.Links {
			if link.Rel == "alternate" {
				p.URL = link.Href
			}
		}

		papers = append(papers, p)
	}

	return papers, nil
}

// arxivID extracts "2401.01234v1" from the entry id URL.
func arxivID(entryID string) string {
	if i := strings.LastIndex(entryID, "/abs/"); i >= 0 {
		return "arxiv:" + entryID[i+len("/abs/"):]
	}
	return entryID
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
