package recommend

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/pkg/logger"
)

// Searcher runs one seed query against the paper index.
type Searcher interface {
	Search(ctx context.Context, query string, size int) ([]models.Paper, error)
}

// PrimarySource is the preferred recommendation backend (content-based,
// vector-driven). Its failure is tolerated and triggers the local fallback.
type PrimarySource interface {
	Recommend(ctx context.Context, profile *models.Profile, limit int) ([]string, []models.Paper, error)
}

type Recommendations struct {
	Topics []string       `json:"topics"`
	Papers []models.Paper `json:"papers"`
}

type Config struct {
	TopicCount int
	SeedCount  int
	Limit      int
}

type Aggregator struct {
	primary  PrimarySource
	searcher Searcher
	topics   int
	seeds    int
	limit    int
}

var stopwords = map[string]struct{}{
	"using":    {},
	"based":    {},
	"paper":    {},
	"study":    {},
	"approach": {},
	"model":    {},
	"method":   {},
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

const historyWindow = 10

func NewAggregator(primary PrimarySource, searcher Searcher, cfg Config) *Aggregator {
	if cfg.TopicCount == 0 {
		cfg.TopicCount = 8
	}
	if cfg.SeedCount == 0 {
		cfg.SeedCount = 4
	}
	if cfg.Limit == 0 {
		cfg.Limit = 10
	}
	return &Aggregator{
		primary:  primary,
		searcher: searcher,
		topics:   cfg.TopicCount,
		seeds:    cfg.SeedCount,
		limit:    cfg.Limit,
	}
}

// Aggregate produces personalized topics and candidate papers for a profile.
// The primary source short-circuits when it answers; any failure falls back to
// term-frequency topics over the profile plus a concurrent per-seed search
// fan-out. Individual seed failures are treated as empty results, so the worst
// case is an empty list, never an error.
func (a *Aggregator) Aggregate(ctx context.Context, profile *models.Profile) Recommendations {
	if profile == nil {
		return Recommendations{Topics: []string{}, Papers: []models.Paper{}}
	}

	if a.primary != nil {
		topics, papers, err := a.primary.Recommend(ctx, profile, a.limit)
		if err == nil {
			return Recommendations{Topics: topics, Papers: papers}
		}
		logger.Warn("Primary recommendation source failed, using local fallback",
			zap.String("profile_id", profile.ID),
			zap.Error(err),
		)
	}

	topics := DeriveTopics(profile, a.topics)

	seedCount := a.seeds
	if seedCount > len(topics) {
		seedCount = len(topics)
	}
	seeds := topics[:seedCount]

	perSeed := make([][]models.Paper, len(seeds))
	var wg sync.WaitGroup
	for i, seed := range seeds {
		wg.Add(1)
		go func(i int, seed string) {
			defer wg.Done()
			papers, err := a.searcher.Search(ctx, seed, a.limit)
			if err != nil {
				logger.Debug("Seed search failed", zap.String("seed", seed), zap.Error(err))
				return
			}
			perSeed[i] = papers
		}(i, seed)
	}
	wg.Wait()

	saved := make(map[string]struct{}, len(profile.SavedPapers))
	for i := range profile.SavedPapers {
		saved[profile.SavedPapers[i].Key()] = struct{}{}
	}

	seen := make(map[string]struct{})
	merged := make([]models.Paper, 0, a.limit)
	for _, papers := range perSeed {
		for _, p := range papers {
			if len(merged) >= a.limit {
				break
			}
			key := p.Key()
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			if _, already := saved[key]; already {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, p)
		}
	}

	logger.Info("Recommendations aggregated locally",
		zap.String("profile_id", profile.ID),
		zap.Int("topics", len(topics)),
		zap.Int("papers", len(merged)),
	)

	return Recommendations{Topics: topics, Papers: merged}
}

// DeriveTopics ranks tokens from saved-paper titles and the most recent
// search-history queries by frequency. Tokens of length <= 3 and a small
// stopword set are ignored. Ties keep first-seen order.
func DeriveTopics(profile *models.Profile, topN int) []string {
	var corpus []string
	for i := range profile.SavedPapers {
		corpus = append(corpus, profile.SavedPapers[i].Title)
	}
	history := profile.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, h := range history {
		corpus = append(corpus, h.Query)
	}

	freq := make(map[string]int)
	var order []string
	for _, text := range corpus {
		for _, tok := range tokenSplit.Split(strings.ToLower(text), -1) {
			if len(tok) <= 3 {
				continue
			}
			if _, stop := stopwords[tok]; stop {
				continue
			}
			if _, ok := freq[tok]; !ok {
				order = append(order, tok)
			}
			freq[tok]++
		}
	}

	ranked := make([]string, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return freq[ranked[i]] > freq[ranked[j]]
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	topics := make([]string, len(ranked))
	copy(topics, ranked)
	return topics
}
