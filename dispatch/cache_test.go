package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sagip-cad/emergency-dispatch-api/databases/mocks"
	"github.com/sagip-cad/emergency-dispatch-api/models"
)

func TestIdentityCache_BatchesMissesAndServesHits(t *testing.T) {
	udb := &mocks.UserDatabase{}
	udb.On("FindByIDs", mock.Anything, []string{"u1", "u2"}).
		Return([]models.UserSummary{
			{ID: "u1", Name: "Ana"},
			{ID: "u2", Name: "Ben"},
		}, nil).Once()

	cache := NewIdentityCache(udb, time.Minute)

	found, err := cache.Lookup(context.Background(), []string{"u1", "u2", "u1", ""})
	assert.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "Ana", found["u1"].Name)

	// the second pass is served entirely from cache
	found, err = cache.Lookup(context.Background(), []string{"u1", "u2"})
	assert.NoError(t, err)
	assert.Len(t, found, 2)
	udb.AssertNumberOfCalls(t, "FindByIDs", 1)
}

func TestIdentityCache_NegativeCachesUnknownIDs(t *testing.T) {
	udb := &mocks.UserDatabase{}
	udb.On("FindByIDs", mock.Anything, []string{"ghost"}).
		Return([]models.UserSummary{}, nil).Once()

	cache := NewIdentityCache(udb, time.Minute)

	found, err := cache.Lookup(context.Background(), []string{"ghost"})
	assert.NoError(t, err)
	assert.Empty(t, found)

	// the unknown id does not trigger another directory round trip
	found, err = cache.Lookup(context.Background(), []string{"ghost"})
	assert.NoError(t, err)
	assert.Empty(t, found)
	udb.AssertNumberOfCalls(t, "FindByIDs", 1)
}

func TestIdentityCache_FetchFailureStillReturnsHits(t *testing.T) {
	udb := &mocks.UserDatabase{}
	udb.On("FindByIDs", mock.Anything, []string{"u1"}).
		Return([]models.UserSummary{{ID: "u1", Name: "Ana"}}, nil).Once()
	udb.On("FindByIDs", mock.Anything, []string{"u2"}).
		Return(nil, errors.New("directory down")).Once()

	cache := NewIdentityCache(udb, time.Minute)

	_, err := cache.Lookup(context.Background(), []string{"u1"})
	assert.NoError(t, err)

	found, err := cache.Lookup(context.Background(), []string{"u1", "u2"})
	assert.Error(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, "Ana", found["u1"].Name)
}

func TestIdentityCache_SweepDropsExpiredEntries(t *testing.T) {
	udb := &mocks.UserDatabase{}
	udb.On("FindByIDs", mock.Anything, mock.Anything).
		Return([]models.UserSummary{{ID: "u1", Name: "Ana"}}, nil)

	cache := NewIdentityCache(udb, 10*time.Millisecond)

	_, err := cache.Lookup(context.Background(), []string{"u1"})
	assert.NoError(t, err)
	assert.Equal(t, 0, cache.Sweep())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, cache.Sweep())

	// expired entry refetches
	_, err = cache.Lookup(context.Background(), []string{"u1"})
	assert.NoError(t, err)
	udb.AssertNumberOfCalls(t, "FindByIDs", 2)
}

func TestNewIdentityCacheDefaultsTTL(t *testing.T) {
	cache := NewIdentityCache(nil, 0)
	assert.Equal(t, DefaultIdentityTTL, cache.ttl)
}
