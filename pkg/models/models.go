package models

import (
	"sort"
	"time"
)

// MediaType classifies a feed item by its remote __typename.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeOther MediaType = "other"
)

// MediaTypeFromTypename maps the remote GraphQL __typename to a MediaType.
func MediaTypeFromTypename(typename string) MediaType {
	switch typename {
	case "GraphImage":
		return MediaTypeImage
	case "GraphVideo":
		return MediaTypeVideo
	default:
		return MediaTypeOther
	}
}

// Post is a single feed item. Identity is the shortcode, which is globally
// unique on the remote system. Posts are constructed once per fetched item
// and never mutated afterwards; when the same shortcode shows up twice the
// first-seen instance wins.
type Post struct {
	Shortcode    string
	OwnerID      string
	Type         MediaType
	Caption      string
	Tags         map[string]struct{}
	TakenAt      time.Time
	MediaURL     string
	LikeCount    int
	CommentCount int
}

// HasAllTags reports whether the post's tag set is a superset of required.
func (p *Post) HasAllTags(required map[string]struct{}) bool {
	for tag := range required {
		if _, ok := p.Tags[tag]; !ok {
			return false
		}
	}
	return true
}

// SortedTags returns the post's tags in lexical order, each with a leading
// '#'. This is the serialized form used by the sink and CSV export.
func (p *Post) SortedTags() []string {
	tags := make([]string, 0, len(p.Tags))
	for tag := range p.Tags {
		tags = append(tags, "#"+tag)
	}
	sort.Strings(tags)
	return tags
}

// Profile holds the owner metadata a post is enriched with. Profiles are
// fetched lazily on first reference and cached for the duration of a run;
// the data is assumed fresh enough not to warrant re-fetching.
type Profile struct {
	OwnerID        string `json:"owner_id"`
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	ProfilePicURL  string `json:"profile_pic_url"`
	MediaCount     int    `json:"media_count"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
}

// EnrichedRecord is a Post joined with its owner's Profile at collection
// time. It is the unit written to the result sink. The JSON field names are
// the canonical output schema.
type EnrichedRecord struct {
	Shortcode      string   `json:"shortcode"`
	UserID         string   `json:"user_id"`
	Username       string   `json:"username"`
	FullName       string   `json:"full_name"`
	ProfilePicURL  string   `json:"profile_pic_url"`
	MediaCount     int      `json:"media_count"`
	FollowerCount  int      `json:"follower_count"`
	FollowingCount int      `json:"following_count"`
	Date           int64    `json:"date"`
	PicURL         string   `json:"pic_url"`
	LikeCount      int      `json:"like_count"`
	CommentCount   int      `json:"comment_count"`
	Caption        string   `json:"caption"`
	Tags           []string `json:"tags"`
}

// NewEnrichedRecord joins a post with its owner's profile.
func NewEnrichedRecord(post *Post, profile *Profile) EnrichedRecord {
	return EnrichedRecord{
		Shortcode:      post.Shortcode,
		UserID:         post.OwnerID,
		Username:       profile.Username,
		FullName:       profile.FullName,
		ProfilePicURL:  profile.ProfilePicURL,
		MediaCount:     profile.MediaCount,
		FollowerCount:  profile.FollowerCount,
		FollowingCount: profile.FollowingCount,
		Date:           post.TakenAt.Unix(),
		PicURL:         post.MediaURL,
		LikeCount:      post.LikeCount,
		CommentCount:   post.CommentCount,
		Caption:        post.Caption,
		Tags:           post.SortedTags(),
	}
}
