package crawler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/config"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/errors"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/logger"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/retry"
)

// ProfileCache memoizes owner-profile lookups for the duration of one
// collection run. Lookups are keyed by owner id and guarded by a
// singleflight group, so concurrent feeds sharing the cache issue at most
// one fetch per owner. Rate-limited fetches are retried a bounded number of
// times with linearly growing backoff; after the budget runs out the error
// propagates to the caller, which treats it as fatal for the current post
// only. NotFound is never cached: absence can be a transient glitch rather
// than a true deletion, so later references re-attempt the fetch.
type ProfileCache struct {
	fetcher       ProfileFetcher
	maxAttempts   int
	backoffBase   time.Duration
	courtesyDelay time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	logger        logger.Logger

	mu       sync.RWMutex
	profiles map[string]*models.Profile
	group    singleflight.Group
}

// NewProfileCache builds a cache for one run.
func NewProfileCache(fetcher ProfileFetcher, cfg *config.RateLimitConfig, log logger.Logger) *ProfileCache {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ProfileCache{
		fetcher:       fetcher,
		maxAttempts:   cfg.ProfileMaxAttempts,
		backoffBase:   cfg.ProfileBackoffBase,
		courtesyDelay: cfg.CourtesyDelay,
		sleep:         retry.Wait,
		logger:        log,
	}
}

// SetSleep replaces the wait function. Tests use this to avoid real sleeps.
func (pc *ProfileCache) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	pc.sleep = sleep
}

// Contains reports whether the owner's profile is already memoized.
func (pc *ProfileCache) Contains(ownerID string) bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	_, ok := pc.profiles[ownerID]
	return ok
}

// Get returns the owner's profile, fetching and memoizing it on first
// reference.
func (pc *ProfileCache) Get(ctx context.Context, ownerID string) (*models.Profile, error) {
	pc.mu.RLock()
	profile, ok := pc.profiles[ownerID]
	pc.mu.RUnlock()
	if ok {
		return profile, nil
	}

	result, err, _ := pc.group.Do(ownerID, func() (interface{}, error) {
		// A concurrent caller may have populated the entry while this
		// call waited on the group.
		pc.mu.RLock()
		cached, ok := pc.profiles[ownerID]
		pc.mu.RUnlock()
		if ok {
			return cached, nil
		}

		fetched, err := pc.fetchWithRetry(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		pc.mu.Lock()
		if pc.profiles == nil {
			pc.profiles = make(map[string]*models.Profile)
		}
		pc.profiles[ownerID] = fetched
		pc.mu.Unlock()

		return fetched, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*models.Profile), nil
}

// fetchWithRetry issues the profile fetch under the bounded retry policy:
// only rate limiting is retried, with delays of base, 2*base, ... between
// attempts. A courtesy delay precedes every attempt, win or lose.
func (pc *ProfileCache) fetchWithRetry(ctx context.Context, ownerID string) (*models.Profile, error) {
	cfg := &retry.Config{
		MaxAttempts: pc.maxAttempts,
		Backoff: &retry.LinearBackoff{
			BaseDelay: pc.backoffBase,
			Increment: pc.backoffBase,
		},
		RetryIf: errors.IsRateLimited,
		Sleep:   pc.sleep,
		Logger:  pc.logger,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			pc.logger.WarnWithFields("rate limited fetching profile", map[string]interface{}{
				"owner_id": ownerID,
				"attempt":  attempt,
				"wait":     delay,
			})
		},
	}

	return retry.DoWithResult(ctx, func() (*models.Profile, error) {
		if err := pc.sleep(ctx, pc.courtesyDelay); err != nil {
			return nil, err
		}
		return pc.fetcher.FetchProfileByID(ctx, ownerID)
	}, cfg)
}
