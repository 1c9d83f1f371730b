package crawler

import (
	"github.com/simonseo/instagram-hashtag-crawler/pkg/config"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
)

// StopReason says why a pagination loop ended.
type StopReason string

const (
	StopCapacity   StopReason = "capacity"
	StopTimeCutoff StopReason = "time_cutoff"
	StopExhausted  StopReason = "exhausted"
	StopFatalError StopReason = "fatal_error"
)

// Verdict is the outcome of running one feed item through the filter chain.
type Verdict int

const (
	// VerdictKeep passes the item on to enrichment.
	VerdictKeep Verdict = iota
	// VerdictSkip excludes the item and counts it as skipped.
	VerdictSkip
	// VerdictDuplicate drops a repeated shortcode silently. Repeats are
	// expected from cursor overlap, so they are not counted as skipped.
	VerdictDuplicate
	// VerdictStop terminates the pagination loop entirely.
	VerdictStop
)

// Decision is a Verdict plus, for VerdictStop, the reason.
type Decision struct {
	Verdict Verdict
	Stop    StopReason
}

func keep() Decision             { return Decision{Verdict: VerdictKeep} }
func skip() Decision             { return Decision{Verdict: VerdictSkip} }
func duplicate() Decision        { return Decision{Verdict: VerdictDuplicate} }
func stop(r StopReason) Decision { return Decision{Verdict: VerdictStop, Stop: r} }

// FilterPipeline applies the per-item decision chain of one collection
// call. It is stateful only in the dedup set; everything else is pure. The
// checks run in a fixed order and short-circuit:
//
//  1. capacity reached → stop
//  2. older than the time cutoff → stop (feeds are newest-first)
//  3. not a single image → skip
//  4. shortcode already seen this call → silent drop
//  5. intersection mode: tags not a superset of the required set → skip
type FilterPipeline struct {
	cfg          config.CollectionConfig
	requiredTags map[string]struct{}
	seen         map[string]struct{}
}

// NewFilterPipeline builds the filter chain for one collection call.
// requiredTags is nil outside intersection mode.
func NewFilterPipeline(cfg config.CollectionConfig, requiredTags map[string]struct{}) *FilterPipeline {
	return &FilterPipeline{
		cfg:          cfg,
		requiredTags: requiredTags,
		seen:         make(map[string]struct{}),
	}
}

// Evaluate runs one item through the chain. keptCount is the number of
// records the caller has accumulated so far.
func (f *FilterPipeline) Evaluate(post *models.Post, keptCount int) Decision {
	if keptCount >= f.cfg.MaxRecords {
		return stop(StopCapacity)
	}

	// Feeds are newest-first, so everything after the first under-cutoff
	// item is older still.
	if !f.cfg.MinTimestamp.IsZero() && post.TakenAt.Before(f.cfg.MinTimestamp) {
		return stop(StopTimeCutoff)
	}

	if post.Type != models.MediaTypeImage {
		return skip()
	}

	if _, ok := f.seen[post.Shortcode]; ok {
		return duplicate()
	}
	f.seen[post.Shortcode] = struct{}{}

	if f.requiredTags != nil && !post.HasAllTags(f.requiredTags) {
		return skip()
	}

	return keep()
}
