package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusflow/campus-flow-api/utils/cache"
)

// StateTTL is how long an abandoned onboarding session is kept
const StateTTL = 24 * time.Hour

// Store keeps flow snapshots between requests
type Store interface {
	Load(ctx context.Context, userID uint) (*State, error)
	Save(ctx context.Context, userID uint, state State) error
	Delete(ctx context.Context, userID uint) error
}

// CacheStore stores snapshots as JSON under onboarding:<user id>
type CacheStore struct {
	cache cache.Cache
}

func NewCacheStore(c cache.Cache) *CacheStore {
	return &CacheStore{cache: c}
}

func key(userID uint) string {
	return fmt.Sprintf("onboarding:%d", userID)
}

// Load returns nil without error when nothing is stored
func (s *CacheStore) Load(ctx context.Context, userID uint) (*State, error) {
	var state State
	if err := s.cache.GetJSON(ctx, key(userID), &state); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load onboarding state: %w", err)
	}
	return &state, nil
}

func (s *CacheStore) Save(ctx context.Context, userID uint, state State) error {
	if err := s.cache.SetJSON(ctx, key(userID), state, StateTTL); err != nil {
		return fmt.Errorf("failed to save onboarding state: %w", err)
	}
	return nil
}

func (s *CacheStore) Delete(ctx context.Context, userID uint) error {
	return s.cache.Delete(ctx, key(userID))
}
