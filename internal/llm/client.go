package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/metrics"
	"github.com/autoscholar/backend/pkg/circuitbreaker"
	"github.com/autoscholar/backend/pkg/logger"
	"github.com/autoscholar/backend/pkg/retry"
	"github.com/autoscholar/backend/pkg/utils"
)

// EmbeddingCache stores embeddings keyed by text hash so repeated abstracts
// skip the embeddings API.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// embeddingCacheTTL bounds staleness; embeddings for the same model are
// deterministic, so a long TTL is safe.
const embeddingCacheTTL = 24 * time.Hour

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	cache          EmbeddingCache
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model, embeddingModel string, temperature float32, maxTokens int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

// SetEmbeddingCache installs a cache for GenerateEmbedding lookups. Without
// one every call goes to the embeddings API.
func (c *Client) SetEmbeddingCache(cache EmbeddingCache) {
	c.cache = cache
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.TotalTokens))

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	textHash := utils.HashString(text)
	if c.cache != nil {
		cached, ok, err := c.cache.GetEmbedding(ctx, textHash)
		if err != nil {
			logger.Debug("Embedding cache lookup failed", zap.Error(err))
		} else if ok {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			return cached, nil
		} else {
			metrics.CacheMisses.WithLabelValues("embedding").Inc()
		}
	}

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.embeddingModel),
				},
			)

			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			metrics.LLMTokensUsed.WithLabelValues(c.embeddingModel, "embedding").Add(float64(resp.Usage.TotalTokens))

			embedding = make([]float32, len(resp.Data[0].Embedding))
			for i, v := range resp.Data[0].Embedding {
				embedding[i] = v
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetEmbedding(ctx, textHash, embedding, embeddingCacheTTL); err != nil {
			logger.Debug("Embedding cache write failed", zap.Error(err))
		}
	}

	return embedding, nil
}

func (c *Client) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var embeddings [][]float32

	batchSize := 100
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := c.client.CreateEmbeddings(
					ctx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(c.embeddingModel),
					},
				)

				if err != nil {
					return fmt.Errorf("failed to generate batch embeddings: %w", err)
				}

				metrics.LLMTokensUsed.WithLabelValues(c.embeddingModel, "embedding").Add(float64(resp.Usage.TotalTokens))

				for _, data := range resp.Data {
					embedding := make([]float32, len(data.Embedding))
					for j, v := range data.Embedding {
						embedding[j] = v
					}
					embeddings = append(embeddings, embedding)
				}

				return nil
			})
		})

		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}

// SummarizePaper generates a short methods-and-findings summary of a paper
// abstract for use in side-by-side comparison views.
func (c *Client) SummarizePaper(ctx context.Context, title, abstract string) (string, error) {
	systemPrompt := `You are an academic research assistant. Generate a concise 2-3 sentence summary of the given paper abstract.
Focus on:
- The research question or problem
- The method or approach used
- The main finding or contribution

Be specific and technical. Do not speculate beyond the abstract.`

	userPrompt := fmt.Sprintf("Title: %s\n\nAbstract:\n%s", title, abstract)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.3,
		MaxTokens:    300,
	})

	if err != nil {
		return "", fmt.Errorf("failed to summarize paper: %w", err)
	}

	logger.Info("Paper summarized",
		zap.String("title", title),
		zap.Int("summary_length", len(resp.Content)),
	)

	return resp.Content, nil
}

// CompareNarrative produces the overall comparison text for a set of paper
// summaries: agreements, disagreements, and methodological differences.
func (c *Client) CompareNarrative(ctx context.Context, summaries []string) (string, error) {
	systemPrompt := `You are an academic research assistant comparing papers.

Given numbered paper summaries, write a structured comparison covering:
1. Shared research goals or claims
2. Where the papers disagree or diverge
3. Methodological differences
4. Which questions remain open across all papers

Be concise. Reference papers by their number.`

	var sb strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&sb, "Paper %d: %s\n\n", i+1, s)
	}

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   sb.String(),
		Temperature:  0.2,
		MaxTokens:    1024,
	})

	if err != nil {
		return "", fmt.Errorf("failed to generate comparison: %w", err)
	}

	logger.Info("Comparison narrative generated",
		zap.Int("papers", len(summaries)),
		zap.Int("response_length", len(resp.Content)),
	)

	return resp.Content, nil
}
