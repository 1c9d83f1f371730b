package instagram

import (
	"time"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
)

// HashtagResponse is the GraphQL envelope for a hashtag feed page.
type HashtagResponse struct {
	Data   HashtagData `json:"data"`
	Status string      `json:"status"`
}

type HashtagData struct {
	Hashtag Hashtag `json:"hashtag"`
}

type Hashtag struct {
	Name               string             `json:"name"`
	EdgeHashtagToMedia EdgeHashtagToMedia `json:"edge_hashtag_to_media"`
}

type EdgeHashtagToMedia struct {
	Count    int      `json:"count"`
	PageInfo PageInfo `json:"page_info"`
	Edges    []Edge   `json:"edges"`
}

type PageInfo struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

type Edge struct {
	Node Node `json:"node"`
}

// Node is one raw feed item as the remote system reports it.
type Node struct {
	ID                 string             `json:"id"`
	Typename           string             `json:"__typename"`
	Shortcode          string             `json:"shortcode"`
	DisplayURL         string             `json:"display_url"`
	TakenAtTimestamp   int64              `json:"taken_at_timestamp"`
	Owner              Owner              `json:"owner"`
	EdgeMediaToCaption EdgeMediaToCaption `json:"edge_media_to_caption"`
	EdgeLikedBy        Count              `json:"edge_liked_by"`
	EdgeMediaToComment Count              `json:"edge_media_to_comment"`
}

type Owner struct {
	ID string `json:"id"`
}

type EdgeMediaToCaption struct {
	Edges []CaptionEdge `json:"edges"`
}

type CaptionEdge struct {
	Node CaptionNode `json:"node"`
}

type CaptionNode struct {
	Text string `json:"text"`
}

type Count struct {
	Count int `json:"count"`
}

// Caption returns the node's caption text, or "" when the post has none.
func (n *Node) Caption() string {
	if len(n.EdgeMediaToCaption.Edges) == 0 {
		return ""
	}
	return n.EdgeMediaToCaption.Edges[0].Node.Text
}

// ToPost materializes the raw node into an immutable Post. The tag set is
// derived from the caption so it is always re-derivable by re-parsing.
func (n *Node) ToPost() *models.Post {
	caption := n.Caption()
	return &models.Post{
		Shortcode:    n.Shortcode,
		OwnerID:      n.Owner.ID,
		Type:         models.MediaTypeFromTypename(n.Typename),
		Caption:      caption,
		Tags:         models.ExtractTags(caption),
		TakenAt:      time.Unix(n.TakenAtTimestamp, 0).UTC(),
		MediaURL:     n.DisplayURL,
		LikeCount:    n.EdgeLikedBy.Count,
		CommentCount: n.EdgeMediaToComment.Count,
	}
}

// HashtagPage is one page of a hashtag's feed: the materialized posts plus
// the opaque continuation cursor. An empty NextCursor means the feed is
// exhausted.
type HashtagPage struct {
	TotalCount int
	Posts      []*models.Post
	NextCursor string
}

// ProfileResponse is the envelope for an owner profile lookup.
type ProfileResponse struct {
	User   ProfileUser `json:"user"`
	Status string      `json:"status"`
}

type ProfileUser struct {
	ID             string `json:"pk"`
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	ProfilePicURL  string `json:"profile_pic_url"`
	MediaCount     int    `json:"media_count"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
}

// ToProfile converts the remote user payload to the domain profile.
func (u *ProfileUser) ToProfile() *models.Profile {
	return &models.Profile{
		OwnerID:        u.ID,
		Username:       u.Username,
		FullName:       u.FullName,
		ProfilePicURL:  u.ProfilePicURL,
		MediaCount:     u.MediaCount,
		FollowerCount:  u.FollowerCount,
		FollowingCount: u.FollowingCount,
	}
}
