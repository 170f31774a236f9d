package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/pkg/logger"
	"github.com/autoscholar/backend/pkg/retry"
)

const springerBaseURL = "https://api.springernature.com/meta/v2/json"

// SpringerClient fetches papers from the Springer Nature metadata API.
type SpringerClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	retryConfig retry.Config
}

type springerResponse struct {
	Records []springerRecord `json:"records"`
}

type springerRecord struct {
	DOI             string `json:"doi"`
	Title           string `json:"title"`
	PublicationName string `json:"publicationName"`
	PublicationDate string `json:"publicationDate"`
	Volume          string `json:"volume"`
	Number          string `json:"number"`
	StartingPage    string `json:"startingPage"`
	EndingPage      string `json:"endingPage"`
	Publisher       string `json:"publisher"`
	Abstract        string `json:"abstract"`
	Creators        []struct {
		Creator string `json:"creator"`
	} `json:"creators"`
	URL []struct {
		Value string `json:"value"`
	} `json:"url"`
	Subjects []string `json:"subjects"`
}

func NewSpringerClient(baseURL, apiKey string) *SpringerClient {
	if baseURL == "" {
		baseURL = springerBaseURL
	}
	return &SpringerClient{
		baseURL: baseURL,
		apiKey:  apiKey,
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

// Fetch queries the Springer metadata API and converts the records to papers.
func (c *SpringerClient) Fetch(ctx context.Context, query string, maxResults int) ([]models.Paper, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("p", fmt.Sprintf("%d", maxResults))
	params.Set("api_key", c.apiKey)

	reqURL := c.baseURL + "?" + params.Encode()

	var body []byte
	err := retry.Do(ctx, c.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call springer: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			return fmt.Errorf("springer returned status %d", resp.StatusCode)
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

	papers, err := ParseSpringerResponse(body)
	if err != nil {
		return nil, err
	}

	logger.Info("Springer feed fetched",
		zap.String("query", query),
		zap.Int("results", len(papers)),
	)

	return papers, nil
}

// ParseSpringerResponse converts a Springer metadata payload into papers.
func ParseSpringerResponse(data []byte) ([]models.Paper, error) {
	var resp springerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse springer response: %w", err)
	}

	papers := make([]models.Paper, 0, len(resp.Records))
	for _, r := range resp.Records {
		p := models.Paper{
			ID:        models.PaperID("doi:" + r.DOI),
			DOI:       r.DOI,
			Title:     r.Title,
			Abstract:  r.Abstract,
			Journal:   r.PublicationName,
			Volume:    r.Volume,
			Issue:     r.Number,
			Publisher: r.Publisher,
			Published: r.PublicationDate,
			Keywords:  r.Subjects,
			Source:    "springer",
		}

		if r.StartingPage != "" && r.EndingPage != "" {
			p.Pages = r.StartingPage + "-" + r.EndingPage
		} else if r.StartingPage != "" {
			p.Pages = r.StartingPage
		}

		if len(r.PublicationDate) >= 4 {
			fmt.Sscanf(r.PublicationDate[:4], "%d", &p.Year)
		}

		for _, creator := range r.Creators {
			p.Authors = append(p.Authors, models.Author{Name: creator.Creator})
		}
		if len(r.URL) > 0 {
			p.URL = r.URL[0].Value
		}

		papers = append(papers, p)
	}

	return papers, nil
}
