package crawler

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/config"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/errors"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
)

// SearchAll collects posts carrying ALL of the given hashtags.
//
// Every hashtag's feed is queried, not just the rarest one: the remote
// ranking surfaces different subsets per feed, so a post tagged with all
// required tags may rank low in one feed and high in another. Each feed is
// filtered by full tag containment and the per-feed results are merged by
// shortcode, first occurrence winning. Once the merge reaches MaxRecords no
// further feeds are queried.
//
// A fatal error in one feed does not abort the siblings; collection
// continues best-effort and the error surfaces only if every feed failed.
func (c *Crawler) SearchAll(ctx context.Context, hashtags []string, cfg config.CollectionConfig) ([]models.EnrichedRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "invalid collection config: %v", err)
	}

	tags, required, err := normalizeTagSet(hashtags)
	if err != nil {
		return nil, err
	}

	collector := c.newRun()

	merged := make(map[string]struct{})
	var records []models.EnrichedRecord
	var feedErrs []error

	for _, tag := range tags {
		if len(records) >= cfg.MaxRecords {
			break
		}

		c.logger.InfoWithFields("intersection search: querying feed", map[string]interface{}{
			"hashtag":  tag,
			"required": sortedTags(required),
		})

		result, err := collector.Collect(ctx, tag, cfg, required)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			c.logger.WithError(err).WarnWithFields("feed failed, continuing with remaining hashtags", map[string]interface{}{
				"hashtag": tag,
			})
			feedErrs = append(feedErrs, err)
			continue
		}

		for _, record := range result.Records {
			if _, ok := merged[record.Shortcode]; ok {
				continue
			}
			merged[record.Shortcode] = struct{}{}
			records = append(records, record)
		}
	}

	if len(feedErrs) == len(tags) && len(feedErrs) > 0 {
		return nil, feedErrs[0]
	}

	if len(records) > cfg.MaxRecords {
		records = records[:cfg.MaxRecords]
	}

	c.logger.InfoWithFields("intersection search finished", map[string]interface{}{
		"hashtags": tags,
		"records":  len(records),
	})

	return records, nil
}

// CrawlAll runs an intersection search and writes the merged result to
// <output_dir>/<tags joined by _AND_>.json. Like Crawl it returns false,
// with no output written, when fewer than MinRecords posts were found.
func (c *Crawler) CrawlAll(ctx context.Context, hashtags []string, cfg config.CollectionConfig) (bool, error) {
	records, err := c.SearchAll(ctx, hashtags, cfg)
	if err != nil {
		return false, err
	}

	if len(records) < cfg.MinRecords {
		c.logger.WarnWithFields("insufficient records collected", map[string]interface{}{
			"hashtags":  hashtags,
			"collected": len(records),
			"required":  cfg.MinRecords,
		})
		return false, nil
	}

	path := filepath.Join(cfg.OutputDir, IntersectionFilename(hashtags))
	if err := c.sink.Write(records, path); err != nil {
		return false, err
	}

	c.logger.InfoWithFields("intersection crawl complete", map[string]interface{}{
		"hashtags": hashtags,
		"records":  len(records),
		"output":   path,
	})
	return true, nil
}

// IntersectionFilename names the output of an AND search: the normalized
// tags, sorted, joined by "_AND_". Sorting makes the name independent of
// the query order.
func IntersectionFilename(hashtags []string) string {
	tags := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		tags = append(tags, models.NormalizeTag(tag))
	}
	sort.Strings(tags)
	return strings.Join(tags, "_AND_") + ".json"
}

// normalizeTagSet lowercases the hashtags and builds the required tag set.
// Intersection search needs at least two distinct tags.
func normalizeTagSet(hashtags []string) ([]string, map[string]struct{}, error) {
	required := make(map[string]struct{}, len(hashtags))
	tags := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		normalized := models.NormalizeTag(tag)
		if normalized == "" {
			continue
		}
		if _, ok := required[normalized]; ok {
			continue
		}
		required[normalized] = struct{}{}
		tags = append(tags, normalized)
	}

	if len(tags) < 2 {
		return nil, nil, errors.New(errors.ErrorTypeInvalidArgument, "intersection search requires at least 2 distinct hashtags")
	}

	return tags, required, nil
}

func sortedTags(set map[string]struct{}) []string {
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
