package profile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoscholar/backend/internal/storage/models"
)

type fakeStorage struct {
	profiles map[string]*models.Profile
	err      error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{profiles: map[string]*models.Profile{}}
}

func (f *fakeStorage) GetProfile(id string) (*models.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

func (f *fakeStorage) UpsertProfile(p *models.Profile) error {
	if f.err != nil {
		return f.err
	}
	f.profiles[p.ID] = p
	return nil
}

func (f *fakeStorage) SavePaper(profileID string, _ *models.Paper) error {
	return f.err
}

func (f *fakeStorage) RemoveSavedPaper(profileID, paperKey string) error {
	return f.err
}

func (f *fakeStorage) RecordSearch(profileID, query string) error {
	return f.err
}

func TestStoreUpsertRequiresID(t *testing.T) {
	store := NewStore(newFakeStorage())

	err := store.Upsert(&models.Profile{Name: "anonymous"})
	assert.Error(t, err)
}

func TestStoreSavePaperRequiresIdentity(t *testing.T) {
	store := NewStore(newFakeStorage())

	err := store.SavePaper("u1", &models.Paper{})
	assert.Error(t, err)
}

func TestStoreGet(t *testing.T) {
	storage := newFakeStorage()
	storage.profiles["u1"] = &models.Profile{ID: "u1", Name: "Ada"}
	store := NewStore(storage)

	p, err := store.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)

	_, err = store.Get("missing")
	assert.Error(t, err)
}

func TestStoreNotifiesOnEachMutation(t *testing.T) {
	store := NewStore(newFakeStorage())

	var notified []string
	store.Subscribe(func(profileID string) {
		notified = append(notified, profileID)
	})

	require.NoError(t, store.Upsert(&models.Profile{ID: "u1"}))
	require.NoError(t, store.SavePaper("u1", &models.Paper{ID: "p1"}))
	require.NoError(t, store.RemoveSavedPaper("u1", "p1"))
	require.NoError(t, store.RecordSearch("u1", "query"))

	assert.Equal(t, []string{"u1", "u1", "u1", "u1"}, notified)
}

func TestStoreSkipsNotifyOnStorageFailure(t *testing.T) {
	storage := newFakeStorage()
	storage.err = errors.New("disk full")
	store := NewStore(storage)

	notified := 0
	store.Subscribe(func(string) { notified++ })

	assert.Error(t, store.Upsert(&models.Profile{ID: "u1"}))
	assert.Error(t, store.SavePaper("u1", &models.Paper{ID: "p1"}))
	assert.Error(t, store.RemoveSavedPaper("u1", "p1"))
	assert.Error(t, store.RecordSearch("u1", "query"))

	assert.Zero(t, notified)
}

func TestStoreMultipleSubscribersRunInOrder(t *testing.T) {
	store := NewStore(newFakeStorage())

	var order []int
	store.Subscribe(func(string) { order = append(order, 1) })
	store.Subscribe(func(string) { order = append(order, 2) })

	require.NoError(t, store.RecordSearch("u1", "query"))

	assert.Equal(t, []int{1, 2}, order)
}
