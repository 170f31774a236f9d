package profile

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/storage/models"
	"github.com/autoscholar/backend/pkg/logger"
)

// Storage is the persistence surface the store needs from the SQLite layer.
type Storage interface {
	GetProfile(id string) (*models.Profile, error)
	UpsertProfile(p *models.Profile) error
	SavePaper(profileID string, p *models.Paper) error
	RemoveSavedPaper(profileID, paperKey string) error
	RecordSearch(profileID, query string) error
}

// Store wraps profile persistence and notifies subscribers when a profile
// mutates. Consumers register callbacks instead of polling; the recommendation
// cache uses this to drop stale entries the moment saved papers or history
// change.
type Store struct {
	storage Storage

	mu          sync.RWMutex
	subscribers []func(profileID string)
}

func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// Subscribe registers a callback invoked after every profile mutation with
// the id of the changed profile. Callbacks run synchronously in registration
// order and must not block.
func (s *Store) Subscribe(fn func(profileID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) notify(profileID string) {
	s.mu.RLock()
	subs := make([]func(string), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(profileID)
	}
}

func (s *Store) Get(id string) (*models.Profile, error) {
	p, err := s.storage.GetProfile(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

func (s *Store) Upsert(p *models.Profile) error {
	if p.ID == "" {
		return fmt.Errorf("profile id is required")
	}

	if err := s.storage.UpsertProfile(p); err != nil {
		return err
	}

	s.notify(p.ID)
	return nil
}

func (s *Store) SavePaper(profileID string, paper *models.Paper) error {
	if paper.Key() == "" {
		return fmt.Errorf("paper has no identity")
	}

	if err := s.storage.SavePaper(profileID, paper); err != nil {
		return err
	}

	logger.Debug("Paper saved to profile",
		zap.String("profile_id", profileID),
		zap.String("paper_key", paper.Key()),
	)

	s.notify(profileID)
	return nil
}

func (s *Store) RemoveSavedPaper(profileID, paperKey string) error {
	if err := s.storage.RemoveSavedPaper(profileID, paperKey); err != nil {
		return err
	}

	s.notify(profileID)
	return nil
}

func (s *Store) RecordSearch(profileID, query string) error {
	if err := s.storage.RecordSearch(profileID, query); err != nil {
		return err
	}

	s.notify(profileID)
	return nil
}
