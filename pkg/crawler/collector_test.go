package crawler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/config"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/errors"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/logger"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
)

func newTestCollector(feed FeedClient, profiles *fakeProfiles) *FeedCollector {
	cache := NewProfileCache(profiles, testRateLimit(), logger.Nop())
	cache.SetSleep(noopSleep)
	collector := NewFeedCollector(feed, cache, testRateLimit(), logger.Nop())
	collector.SetSleep(noopSleep)
	return collector
}

func collectCfg(max int) config.CollectionConfig {
	return config.CollectionConfig{OutputDir: "/tmp/out", MinRecords: 0, MaxRecords: max}
}

func TestCollectWalksPages(t *testing.T) {
	now := time.Now()
	p1 := imagePost("A", now, "food")
	p2 := imagePost("B", now.Add(-time.Minute), "food")
	p3 := imagePost("C", now.Add(-2*time.Minute), "food")

	feed := newScriptedFeed()
	feed.addPage("food", "", feedPage(3, "next-1", p1, p2))
	feed.addPage("food", "next-1", feedPage(3, "", p3))
	profiles := newFakeProfiles()
	registerOwners(profiles, p1, p2, p3)

	result, err := newTestCollector(feed, profiles).Collect(context.Background(), "food", collectCfg(10), nil)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 3, result.TotalAvailable)
	assert.Equal(t, StopExhausted, result.StopReason)
	require.Len(t, result.Records, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{
		result.Records[0].Shortcode,
		result.Records[1].Shortcode,
		result.Records[2].Shortcode,
	})
}

func TestCollectStopsAtCapacityWithoutFetchingMore(t *testing.T) {
	now := time.Now()
	p1 := imagePost("A", now)
	p2 := imagePost("B", now)

	feed := newScriptedFeed()
	// The first page fills the quota; the scripted next page would error
	// if it were ever requested.
	feed.addPage("food", "", feedPage(100, "next-1", p1, p2))
	profiles := newFakeProfiles()
	registerOwners(profiles, p1, p2)

	result, err := newTestCollector(feed, profiles).Collect(context.Background(), "food", collectCfg(2), nil)

	require.NoError(t, err)
	assert.Equal(t, StopCapacity, result.StopReason)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, 1, feed.fetches)
}

func TestCollectCapacityMidPage(t *testing.T) {
	now := time.Now()
	p1 := imagePost("A", now)
	p2 := imagePost("B", now)
	p3 := imagePost("C", now)

	feed := newScriptedFeed()
	feed.addPage("food", "", feedPage(3, "next-1", p1, p2, p3))
	profiles := newFakeProfiles()
	registerOwners(profiles, p1, p2, p3)

	result, err := newTestCollector(feed, profiles).Collect(context.Background(), "food", collectCfg(2), nil)

	require.NoError(t, err)
	assert.Equal(t, StopCapacity, result.StopReason)
	require.Len(t, result.Records, 2)
	// The third item never triggers a profile fetch.
	assert.Equal(t, 0, profiles.callCount("owner-C"))
}

func TestCollectKeepsFeedOrderUpToCapacity(t *testing.T) {
	now := time.Now()
	posts := make([]*models.Post, 0, 10)
	for i := 0; i < 10; i++ {
		posts = append(posts, imagePost(fmt.Sprintf("P%d", i), now))
	}

	feed := newScriptedFeed()
	feed.addPage("food", "", feedPage(10, "", posts...))
	profiles := newFakeProfiles()
	registerOwners(profiles, posts...)

	result, err := newTestCollector(feed, profiles).Collect(context.Background(), "food", collectCfg(3), nil)

	require.NoError(t, err)
	require.Len(t, result.Records, 3)
	for i, rec := range result.Records {
		assert.Equal(t, fmt.Sprintf("P%d", i), rec.Shortcode)
	}
}

func TestCollectTimeCutoff(t *testing.T) {
	cutoff := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	fresh := imagePost("A", cutoff.Add(2*time.Hour))
	stale := imagePost("B", cutoff.Add(-time.Hour))
	never := imagePost("C", cutoff.Add(-2*time.Hour))

	feed := newScriptedFeed()
	feed.addPage("food", "", feedPage(3, "next-1", fresh, stale, never))
	profiles := newFakeProfiles()
	registerOwners(profiles, fresh, stale, never)

	cfg := collectCfg(10)
	cfg.MinTimestamp = cutoff
	result, err := newTestCollector(feed, profiles).Collect(context.Background(), "food", cfg, nil)

	require.NoError(t, err)
	assert.Equal(t, StopTimeCutoff, result.StopReason)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "A", result.Records[0].Shortcode)
	assert.Equal(t, 1, feed.fetches)
}

func TestCollectDeduplicatesAcrossPages(t *testing.T) {
	now := time.Now()
	p1 := imagePost("A", now)
	p2 := imagePost("B", now)
	p1again := imagePost("A", now)

	feed := newScriptedFeed()
	feed.addPage("food", "", feedPage(3, "next-1", p1, p2))
	feed.addPage("food", "next-1", feedPage(3, "", p1again))
	profiles := newFakeProfiles()
	registerOwners(profiles, p1, p2)

	result, err := newTestCollector(feed, profiles).Collect(context.Background(), "food", collectCfg(10), nil)

	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
	// Duplicates are silent, not counted as skipped.
	assert.Equal(t, 0, result.Skipped)
}

func TestCollectSkipsNonImages(t *testing.T) {
	now := time.Now()
	image := imagePost("A", now)
	video := imagePost("B", now)
	video.Type = models.MediaTypeVideo

	feed := newScriptedFeed()
	feed.addPage("food", "", feedPage(2, "", image, video))
	profiles := newFakeProfiles()
	registerOwners(profiles, image)

	result, err := newTestCollector(feed, profiles).Collect(context.Background(), "food", collectCfg(10), nil)

	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.Skipped)
}

func TestCollectRetriesRateLimitedPageOnce(t *testing.T) {
	now := time.Now()
	post := imagePost("A", now)

	feed := newScriptedFeed()
	feed.queueError(errors.New(errors.ErrorTypeRateLimit, "429"))
	feed.addPage("food", "", feedPage(1, "", post))
	profiles := newFakeProfiles()
	registerOwners(profiles, post)

	result, err := newTestCollector(feed, profiles).Collect(context.Background(), "food", collectCfg(10), nil)

	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, 2, feed.fetches)
}

func TestCollectFailsAfterSecondRateLimit(t *testing.T) {
	feed := newScriptedFeed()
	feed.queueError(
		errors.New(errors.ErrorTypeRateLimit, "429"),
		errors.New(errors.ErrorTypeRateLimit, "429"),
	)
	profiles := newFakeProfiles()

	result, err := newTestCollector(feed, profiles).Collect(context.Background(), "food", collectCfg(10), nil)

	require.Error(t, err)
	assert.True(t, errors.IsRateLimited(err))
	assert.Equal(t, StopFatalError, result.StopReason)
	assert.Equal(t, 2, feed.fetches)
}

func TestCollectDropsPostOnEnrichmentFailure(t *testing.T) {
	now := time.Now()
	good := imagePost("A", now)
	bad := imagePost("B", now)

	feed := newScriptedFeed()
	feed.addPage("food", "", feedPage(2, "", good, bad))
	profiles := newFakeProfiles()
	registerOwners(profiles, good)
	// owner-B stays unknown, so its fetch reports not found

	result, err := newTestCollector(feed, profiles).Collect(context.Background(), "food", collectCfg(10), nil)

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "A", result.Records[0].Shortcode)
	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, StopExhausted, result.StopReason)
}

func TestCollectHonorsCancellationBetweenPages(t *testing.T) {
	now := time.Now()
	post := imagePost("A", now)

	feed := newScriptedFeed()
	feed.addPage("food", "", feedPage(2, "next-1", post))
	profiles := newFakeProfiles()
	registerOwners(profiles, post)

	ctx, cancel := context.WithCancel(context.Background())

	// Cancellation lands while the first page is being processed; the
	// loop must notice it before fetching the second page.
	fetcher := &cancelAfterFetch{inner: profiles, cancel: cancel}
	cache := NewProfileCache(fetcher, testRateLimit(), logger.Nop())
	cache.SetSleep(func(ctx context.Context, d time.Duration) error { return nil })
	collector := NewFeedCollector(feed, cache, testRateLimit(), logger.Nop())
	collector.SetSleep(noopSleep)

	result, err := collector.Collect(ctx, "food", collectCfg(10), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StopFatalError, result.StopReason)
	// The first page's record is retained in the partial result.
	assert.Len(t, result.Records, 1)
	assert.Equal(t, 1, feed.fetches)
}

type cancelAfterFetch struct {
	inner  ProfileFetcher
	cancel context.CancelFunc
}

func (c *cancelAfterFetch) FetchProfileByID(ctx context.Context, ownerID string) (*models.Profile, error) {
	profile, err := c.inner.FetchProfileByID(ctx, ownerID)
	c.cancel()
	return profile, err
}
