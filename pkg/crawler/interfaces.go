package crawler

import (
	"context"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/instagram"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
)

// FeedClient provides paginated access to a hashtag's feed.
type FeedClient interface {
	FetchHashtagPage(ctx context.Context, tag, cursor string) (*instagram.HashtagPage, error)
}

// ProfileFetcher resolves a post owner's profile.
type ProfileFetcher interface {
	FetchProfileByID(ctx context.Context, ownerID string) (*models.Profile, error)
}

// Sink durably persists a completed record collection.
type Sink interface {
	Write(records []models.EnrichedRecord, path string) error
}
