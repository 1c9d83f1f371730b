package crawler

import (
	"context"
	"time"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/config"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/errors"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/instagram"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/logger"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/retry"
)

// CollectResult is what one feed collection produced, plus the counts the
// caller needs to judge it. Low counts are not an error here; whether they
// matter is the caller's decision.
type CollectResult struct {
	Hashtag string
	Records []models.EnrichedRecord
	// Skipped counts items excluded by type or tag filtering.
	Skipped int
	// Dropped counts items lost to enrichment failures.
	Dropped int
	// Pages is the number of feed pages fetched.
	Pages int
	// TotalAvailable is the remote system's reported post count for the
	// hashtag, when known.
	TotalAvailable int
	StopReason     StopReason
}

// FeedCollector walks one hashtag's feed cursor by cursor, filters each raw
// item, and enriches the survivors with owner profiles.
type FeedCollector struct {
	feed          FeedClient
	profiles      *ProfileCache
	feedRetryWait time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	logger        logger.Logger
}

// NewFeedCollector builds a collector sharing the given profile cache.
func NewFeedCollector(feed FeedClient, profiles *ProfileCache, cfg *config.RateLimitConfig, log logger.Logger) *FeedCollector {
	if log == nil {
		log = logger.GetLogger()
	}
	return &FeedCollector{
		feed:          feed,
		profiles:      profiles,
		feedRetryWait: cfg.FeedRetryWait,
		sleep:         retry.Wait,
		logger:        log,
	}
}

// SetSleep replaces the wait function. Tests use this to avoid real sleeps.
func (fc *FeedCollector) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	fc.sleep = sleep
}

// Collect drives the pagination loop for one hashtag. requiredTags is nil
// outside intersection mode. The loop stops on capacity, on the time
// cutoff, when the feed is exhausted, or on an unrecoverable fetch error;
// the stop reason is recorded on the result. A fetch error also returns the
// partial result alongside the error so the caller can report counts.
//
// Cancellation is honored between pages, never mid-page.
func (fc *FeedCollector) Collect(ctx context.Context, hashtag string, cfg config.CollectionConfig, requiredTags map[string]struct{}) (*CollectResult, error) {
	log := fc.logger.WithField("hashtag", hashtag)
	result := &CollectResult{Hashtag: hashtag}
	filter := NewFilterPipeline(cfg, requiredTags)

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			result.StopReason = StopFatalError
			return result, err
		}

		page, err := fc.fetchPage(ctx, hashtag, cursor)
		if err != nil {
			log.WithError(err).Error("feed page fetch failed")
			result.StopReason = StopFatalError
			return result, err
		}
		result.Pages++
		if page.TotalCount > 0 {
			result.TotalAvailable = page.TotalCount
		}
		if result.Pages == 1 {
			log.InfoWithFields("hashtag feed opened", map[string]interface{}{
				"total_posts": page.TotalCount,
			})
		}

		stopped := false
		for _, post := range page.Posts {
			decision := filter.Evaluate(post, len(result.Records))

			switch decision.Verdict {
			case VerdictStop:
				result.StopReason = decision.Stop
				stopped = true
			case VerdictSkip:
				result.Skipped++
			case VerdictDuplicate:
				// silent: repeats are expected from cursor overlap
			case VerdictKeep:
				record, err := fc.enrich(ctx, post)
				if err != nil {
					if ctx.Err() != nil {
						result.StopReason = StopFatalError
						return result, ctx.Err()
					}
					// A single bad post never aborts the feed.
					log.WithError(err).WarnWithFields("dropping post after enrichment failure", map[string]interface{}{
						"shortcode": post.Shortcode,
						"owner_id":  post.OwnerID,
					})
					result.Dropped++
					continue
				}
				result.Records = append(result.Records, record)
				if len(result.Records)%10 == 0 {
					log.InfoWithFields("collection progress", map[string]interface{}{
						"collected": len(result.Records),
					})
				}
			}
			if stopped {
				break
			}
		}
		if stopped {
			break
		}

		// Don't request another page when this one filled the quota.
		if len(result.Records) >= cfg.MaxRecords {
			result.StopReason = StopCapacity
			break
		}

		if page.NextCursor == "" {
			result.StopReason = StopExhausted
			break
		}
		cursor = page.NextCursor
	}

	log.InfoWithFields("hashtag collection finished", map[string]interface{}{
		"collected":   len(result.Records),
		"skipped":     result.Skipped,
		"dropped":     result.Dropped,
		"pages":       result.Pages,
		"stop_reason": string(result.StopReason),
	})

	return result, nil
}

// fetchPage fetches one feed page. A rate-limit signal triggers a single
// retry of the same page after a fixed wait; every other error is fatal to
// the collection call.
func (fc *FeedCollector) fetchPage(ctx context.Context, hashtag, cursor string) (*instagram.HashtagPage, error) {
	cfg := &retry.Config{
		MaxAttempts: 2,
		Backoff:     &retry.ConstantBackoff{Delay: fc.feedRetryWait},
		RetryIf:     errors.IsRateLimited,
		Sleep:       fc.sleep,
		Logger:      fc.logger,
	}

	return retry.DoWithResult(ctx, func() (*instagram.HashtagPage, error) {
		return fc.feed.FetchHashtagPage(ctx, hashtag, cursor)
	}, cfg)
}

// enrich joins a post with its owner's profile.
func (fc *FeedCollector) enrich(ctx context.Context, post *models.Post) (models.EnrichedRecord, error) {
	profile, err := fc.profiles.Get(ctx, post.OwnerID)
	if err != nil {
		return models.EnrichedRecord{}, err
	}
	return models.NewEnrichedRecord(post, profile), nil
}
