package crawler

import (
	"context"
	"path/filepath"
	"time"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/config"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/errors"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/logger"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
)

// Crawler ties the feed collector, the profile cache, and the result sink
// together. One Crawler can serve many runs; the profile cache is created
// fresh per run so profile data never leaks across runs.
type Crawler struct {
	feed      FeedClient
	profiles  ProfileFetcher
	sink      Sink
	rateLimit *config.RateLimitConfig
	logger    logger.Logger

	// test hook propagated to every run's cache and collector
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Crawler.
func New(feed FeedClient, profiles ProfileFetcher, sink Sink, rateLimit *config.RateLimitConfig, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Crawler{
		feed:      feed,
		profiles:  profiles,
		sink:      sink,
		rateLimit: rateLimit,
		logger:    log,
	}
}

// SetSleep replaces the wait function used by runs. Tests use this to
// avoid real sleeps.
func (c *Crawler) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	c.sleep = sleep
}

// newRun builds the per-run collaborators: a fresh profile cache and a
// collector sharing it.
func (c *Crawler) newRun() *FeedCollector {
	cache := NewProfileCache(c.profiles, c.rateLimit, c.logger)
	collector := NewFeedCollector(c.feed, cache, c.rateLimit, c.logger)
	if c.sleep != nil {
		cache.SetSleep(c.sleep)
		collector.SetSleep(c.sleep)
	}
	return collector
}

// Crawl collects a single hashtag and writes the result to
// <output_dir>/<tag>.json. The hashtag is normalized first, so "#Food" and
// "food" address the same feed and output file. It returns false, with no
// output written, when fewer than MinRecords qualifying posts were found.
func (c *Crawler) Crawl(ctx context.Context, hashtag string, cfg config.CollectionConfig) (bool, error) {
	if err := cfg.Validate(); err != nil {
		return false, errors.Newf(errors.ErrorTypeInvalidArgument, "invalid collection config: %v", err)
	}
	hashtag = models.NormalizeTag(hashtag)
	if hashtag == "" {
		return false, errors.New(errors.ErrorTypeInvalidArgument, "empty hashtag")
	}

	collector := c.newRun()
	result, err := collector.Collect(ctx, hashtag, cfg, nil)
	if err != nil {
		return false, err
	}

	if len(result.Records) < cfg.MinRecords {
		c.logger.WarnWithFields("insufficient records collected", map[string]interface{}{
			"hashtag":   hashtag,
			"collected": len(result.Records),
			"required":  cfg.MinRecords,
		})
		return false, nil
	}

	path := filepath.Join(cfg.OutputDir, hashtag+".json")
	if err := c.sink.Write(result.Records, path); err != nil {
		return false, err
	}

	c.logger.InfoWithFields("crawl complete", map[string]interface{}{
		"hashtag": hashtag,
		"records": len(result.Records),
		"output":  path,
	})
	return true, nil
}
