package crawler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/config"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/errors"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/instagram"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/logger"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
)

// scriptedFeed serves pre-built pages keyed by hashtag and cursor. Errors
// queued in errs are returned first, one per call; a nil entry means the
// call goes through to the page lookup.
type scriptedFeed struct {
	mu      sync.Mutex
	pages   map[string]map[string]*instagram.HashtagPage
	errs    []error
	fetches int
}

func newScriptedFeed() *scriptedFeed {
	return &scriptedFeed{pages: make(map[string]map[string]*instagram.HashtagPage)}
}

func (s *scriptedFeed) addPage(tag, cursor string, page *instagram.HashtagPage) {
	if s.pages[tag] == nil {
		s.pages[tag] = make(map[string]*instagram.HashtagPage)
	}
	s.pages[tag][cursor] = page
}

func (s *scriptedFeed) queueError(errs ...error) {
	s.errs = append(s.errs, errs...)
}

func (s *scriptedFeed) FetchHashtagPage(ctx context.Context, tag, cursor string) (*instagram.HashtagPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}

	page, ok := s.pages[tag][cursor]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "no page scripted for %s@%q", tag, cursor)
	}
	return page, nil
}

// fakeProfiles serves profiles by owner id, with optional per-owner error
// queues consumed one entry per fetch.
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	errs     map[string][]error
	calls    map[string]int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		profiles: make(map[string]*models.Profile),
		errs:     make(map[string][]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeProfiles) add(ownerID string) {
	f.profiles[ownerID] = &models.Profile{
		OwnerID:  ownerID,
		Username: "user_" + ownerID,
		FullName: "User " + ownerID,
	}
}

func (f *fakeProfiles) queueError(ownerID string, errs ...error) {
	f.errs[ownerID] = append(f.errs[ownerID], errs...)
}

func (f *fakeProfiles) callCount(ownerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ownerID]
}

func (f *fakeProfiles) FetchProfileByID(ctx context.Context, ownerID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ownerID]++

	if queue := f.errs[ownerID]; len(queue) > 0 {
		err := queue[0]
		f.errs[ownerID] = queue[1:]
		if err != nil {
			return nil, err
		}
	}

	profile, ok := f.profiles[ownerID]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "no profile for %s", ownerID)
	}
	return profile, nil
}

// captureSink records writes instead of touching the filesystem.
type captureSink struct {
	mu     sync.Mutex
	writes map[string][]models.EnrichedRecord
}

func newCaptureSink() *captureSink {
	return &captureSink{writes: make(map[string][]models.EnrichedRecord)}
}

func (c *captureSink) Write(records []models.EnrichedRecord, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes[path] = records
	return nil
}

func feedPage(total int, next string, posts ...*models.Post) *instagram.HashtagPage {
	return &instagram.HashtagPage{TotalCount: total, Posts: posts, NextCursor: next}
}

// registerOwners makes every post's owner resolvable.
func registerOwners(profiles *fakeProfiles, posts ...*models.Post) {
	for _, post := range posts {
		profiles.add(post.OwnerID)
	}
}

func testRateLimit() *config.RateLimitConfig {
	return &config.RateLimitConfig{
		RequestsPerMinute:  600,
		ProfileMaxAttempts: 3,
		ProfileBackoffBase: 5 * time.Second,
		FeedRetryWait:      60 * time.Second,
		CourtesyDelay:      50 * time.Millisecond,
		RequestTimeout:     time.Second,
	}
}

func noopSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func newTestCrawler(feed FeedClient, profiles ProfileFetcher, sink Sink) *Crawler {
	c := New(feed, profiles, sink, testRateLimit(), logger.Nop())
	c.SetSleep(noopSleep)
	return c
}

func TestCrawlWritesRecords(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	posts := []*models.Post{
		imagePost("A", now, "food"),
		imagePost("B", now.Add(-time.Minute), "food"),
	}

	feed := newScriptedFeed()
	feed.addPage("food", "", feedPage(2, "", posts...))
	profiles := newFakeProfiles()
	registerOwners(profiles, posts...)
	sink := newCaptureSink()

	c := newTestCrawler(feed, profiles, sink)
	ok, err := c.Crawl(context.Background(), "food", config.CollectionConfig{
		OutputDir:  "/tmp/out",
		MinRecords: 1,
		MaxRecords: 10,
	})

	require.NoError(t, err)
	assert.True(t, ok)

	path := filepath.Join("/tmp/out", "food.json")
	records, found := sink.writes[path]
	require.True(t, found)
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].Shortcode)
	assert.Equal(t, "user_owner-A", records[0].Username)
}

func TestCrawlNormalizesHashtag(t *testing.T) {
	post := imagePost("A", time.Now(), "food")
	feed := newScriptedFeed()
	feed.addPage("food", "", feedPage(1, "", post))
	profiles := newFakeProfiles()
	registerOwners(profiles, post)
	sink := newCaptureSink()

	c := newTestCrawler(feed, profiles, sink)
	ok, err := c.Crawl(context.Background(), "#Food", config.CollectionConfig{
		OutputDir:  "/tmp/out",
		MinRecords: 1,
		MaxRecords: 10,
	})

	require.NoError(t, err)
	assert.True(t, ok)
	_, found := sink.writes[filepath.Join("/tmp/out", "food.json")]
	assert.True(t, found)
}

func TestCrawlRejectsEmptyHashtag(t *testing.T) {
	c := newTestCrawler(newScriptedFeed(), newFakeProfiles(), newCaptureSink())

	_, err := c.Crawl(context.Background(), "#", config.CollectionConfig{
		OutputDir:  "/tmp/out",
		MinRecords: 1,
		MaxRecords: 10,
	})

	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestCrawlInsufficientRecordsWritesNothing(t *testing.T) {
	post := imagePost("A", time.Now())
	feed := newScriptedFeed()
	feed.addPage("food", "", feedPage(1, "", post))
	profiles := newFakeProfiles()
	registerOwners(profiles, post)
	sink := newCaptureSink()

	c := newTestCrawler(feed, profiles, sink)
	ok, err := c.Crawl(context.Background(), "food", config.CollectionConfig{
		OutputDir:  "/tmp/out",
		MinRecords: 5,
		MaxRecords: 10,
	})

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, sink.writes)
}

func TestCrawlRejectsInvalidConfig(t *testing.T) {
	c := newTestCrawler(newScriptedFeed(), newFakeProfiles(), newCaptureSink())

	_, err := c.Crawl(context.Background(), "food", config.CollectionConfig{
		OutputDir:  "/tmp/out",
		MinRecords: 20,
		MaxRecords: 10,
	})

	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestCrawlPropagatesFatalFeedError(t *testing.T) {
	feed := newScriptedFeed()
	feed.queueError(errors.New(errors.ErrorTypeAuth, "session expired"))
	sink := newCaptureSink()

	c := newTestCrawler(feed, newFakeProfiles(), sink)
	_, err := c.Crawl(context.Background(), "food", config.CollectionConfig{
		OutputDir:  "/tmp/out",
		MinRecords: 1,
		MaxRecords: 10,
	})

	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
	assert.Empty(t, sink.writes)
}

func TestCrawlFreshProfileCachePerRun(t *testing.T) {
	now := time.Now()
	post := imagePost("A", now, "food")

	feed := newScriptedFeed()
	feed.addPage("food", "", feedPage(1, "", post))
	profiles := newFakeProfiles()
	registerOwners(profiles, post)

	c := newTestCrawler(feed, profiles, newCaptureSink())
	cfg := config.CollectionConfig{OutputDir: "/tmp/out", MinRecords: 1, MaxRecords: 10}

	_, err := c.Crawl(context.Background(), "food", cfg)
	require.NoError(t, err)
	_, err = c.Crawl(context.Background(), "food", cfg)
	require.NoError(t, err)

	// Two runs, two fetches: the cache does not survive across runs.
	assert.Equal(t, 2, profiles.callCount("owner-A"))
}
