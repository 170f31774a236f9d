package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/pkg/logger"
	"github.com/autoscholar/backend/pkg/retry"
)

const defaultBaseURL = "https://api.openalex.org"

type Client struct {
	baseURL     string
	mailto      string
	httpClient  *http.Client
	retryConfig retry.Config
}

type work struct {
	ID                    string         `json:"id"`
	DOI                   string         `json:"doi"`
	Title                 string         `json:"title"`
	DisplayName           string         `json:"display_name"`
	PublicationYear       int            `json:"publication_year"`
	PublicationDate       string         `json:"publication_date"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	Authorships           []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PrimaryLocation struct {
		LandingPageURL string `json:"landing_page_url"`
		Source         struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	ReferencedWorks []string `json:"referenced_works"`
	Keywords        []struct {
		DisplayName string `json:"display_name"`
	} `json:"keywords"`
}

func NewClient(baseURL, mailto string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		mailto:  mailto,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   300 * time.Millisecond,
			MaxDelay:       3 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			Logger:         logger.GetLogger(),
		},
	}
}

// ResolveWork fetches a single work by DOI or OpenAlex W-id.
func (c *Client) ResolveWork(ctx context.Context, id string) (*models.Paper, error) {
	path := workPath(id)

	var w work
	err := c.getJSON(ctx, path, nil, &w)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work %s: %w", id, err)
	}

	paper := c.workToPaper(&w)

	logger.Debug("Work resolved",
		zap.String("id", id),
		zap.String("title", paper.Title),
	)

	return paper, nil
}

// CitingWorks returns works that cite the given work.
func (c *Client) CitingWorks(ctx context.Context, id string, limit int) ([]models.Paper, error) {
	resolved, err := c.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("filter", "cites:"+resolved)
	params.Set("per-page", fmt.Sprintf("%d", limit))

	var resp struct {
		Results []work `json:"results"`
	}
	err = c.getJSON(ctx, "/works", params, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch citing works: %w", err)
	}

	papers := make([]models.Paper, 0, len(resp.Results))
	for i := range resp.Results {
		papers = append(papers, *c.workToPaper(&resp.Results[i]))
	}

	logger.Info("Citing works fetched",
		zap.String("work", resolved),
		zap.Int("results", len(papers)),
	)

	return papers, nil
}

// ReferencedWorks returns the works the given work cites, resolved to papers.
func (c *Client) ReferencedWorks(ctx context.Context, id string, limit int) ([]models.Paper, error) {
	path := workPath(id)

	var w work
	err := c.getJSON(ctx, path, nil, &w)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work %s: %w", id, err)
	}

	refs := w.ReferencedWorks
	if len(refs) > limit {
		refs = refs[:limit]
	}
	if len(refs) == 0 {
		return nil, nil
	}

	shortIDs := make([]string, len(refs))
	for i, ref := range refs {
		shortIDs[i] = shortWorkID(ref)
	}

	params := url.Values{}
	params.Set("filter", "openalex_id:"+strings.Join(shortIDs, "|"))
	params.Set("per-page", fmt.Sprintf("%d", len(shortIDs)))

	var resp struct {
		Results []work `json:"results"`
	}
	err = c.getJSON(ctx, "/works", params, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch referenced works: %w", err)
	}

	papers := make([]models.Paper, 0, len(resp.Results))
	for i := range resp.Results {
		papers = append(papers, *c.workToPaper(&resp.Results[i]))
	}

	return papers, nil
}

// SearchWorks runs a relevance-ranked full text search against OpenAlex.
func (c *Client) SearchWorks(ctx context.Context, queryText string, limit int) ([]models.Paper, error) {
	params := url.Values{}
	params.Set("search", queryText)
	params.Set("per-page", fmt.Sprintf("%d", limit))

	var resp struct {
		Results []work `json:"results"`
	}
	err := c.getJSON(ctx, "/works", params, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to search works: %w", err)
	}

	papers := make([]models.Paper, 0, len(resp.Results))
	for i := range resp.Results {
		papers = append(papers, *c.workToPaper(&resp.Results[i]))
	}

	logger.Info("OpenAlex search completed",
		zap.String("query", queryText),
		zap.Int("results", len(papers)),
	)

	return papers, nil
}

// ScrapeAbstract fetches the paper landing page and extracts abstract text.
// Used when OpenAlex has no inverted abstract for a work.
func (c *Client) ScrapeAbstract(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "autoscholar/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	if meta, ok := doc.Find(`meta[name="citation_abstract"]`).Attr("content"); ok && meta != "" {
		return strings.TrimSpace(meta), nil
	}
	if meta, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && meta != "" {
		return strings.TrimSpace(meta), nil
	}

	text := strings.TrimSpace(doc.Find("div.abstract, section.abstract, blockquote.abstract").First().Text())
	if text == "" {
		return "", fmt.Errorf("no abstract found at %s", pageURL)
	}

	return text, nil
}

func (c *Client) resolveID(ctx context.Context, id string) (string, error) {
	if strings.HasPrefix(id, "W") {
		return id, nil
	}

	var w work
	err := c.getJSON(ctx, workPath(id), nil, &w)
	if err != nil {
		return "", fmt.Errorf("failed to resolve id %s: %w", id, err)
	}

	return shortWorkID(w.ID), nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}

	reqURL := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	return retry.Do(ctx, c.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "autoscholar/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call openalex: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			return fmt.Errorf("openalex returned status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}

		return nil
	})
}

func (c *Client) workToPaper(w *work) *models.Paper {
	title := w.Title
	if title == "" {
		title = w.DisplayName
	}

	p := &models.Paper{
		ID:        models.PaperID(shortWorkID(w.ID)),
		DOI:       strings.TrimPrefix(w.DOI, "https://doi.org/"),
		Title:     title,
		Abstract:  reconstructAbstract(w.AbstractInvertedIndex),
		URL:       w.PrimaryLocation.LandingPageURL,
		Journal:   w.PrimaryLocation.Source.DisplayName,
		Year:      w.PublicationYear,
		Published: w.PublicationDate,
		Source:    "openalex",
	}

	for _, a := range w.Authorships {
		p.Authors = append(p.Authors, models.Author{Name: a.Author.DisplayName})
	}
	for _, k := range w.Keywords {
		p.Keywords = append(p.Keywords, k.DisplayName)
	}
	for _, ref := range w.ReferencedWorks {
		p.References = append(p.References, shortWorkID(ref))
	}

	return p
}

// reconstructAbstract rebuilds plain text from OpenAlex's inverted index,
// which maps each token to the positions it occupies.
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}

	var words []posWord
	for word, positions := range index {
		for _, pos := range positions {
			words = append(words, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}

	return strings.Join(parts, " ")
}

func workPath(id string) string {
	if strings.HasPrefix(id, "10.") {
		return "/works/https://doi.org/" + id
	}
	return "/works/" + id
}

func shortWorkID(full string) string {
	if i := strings.LastIndex(full, "/"); i >= 0 {
		return full[i+1:]
	}
	return full
}
