package instagram

import (
	"fmt"
	"net/url"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// GraphQLEndpoint is the endpoint for GraphQL queries
	GraphQLEndpoint = "/graphql/query/"

	// HashtagQueryHash is the query hash for fetching a hashtag's feed
	HashtagQueryHash = "9b498c08113f1e09617a1703c22b2f32"

	// ProfileEndpoint is the endpoint pattern for owner profile lookups
	ProfileEndpoint = "/api/v1/users/%s/info/"

	// SessionProbeEndpoint answers with the logged-in account and is used
	// to verify a session before any collection starts
	SessionProbeEndpoint = "/api/v1/accounts/current_user/"

	// DefaultPageSize is the number of feed items requested per page
	DefaultPageSize = 50
)

// GetHashtagFeedURL constructs the URL for one page of a hashtag's feed.
// An empty cursor requests the first page.
func GetHashtagFeedURL(baseURL, tag, cursor string) string {
	variables := fmt.Sprintf(`{"tag_name":%q,"first":%d,"after":%q}`, tag, DefaultPageSize, cursor)

	params := url.Values{}
	params.Set("query_hash", HashtagQueryHash)
	params.Set("variables", variables)

	return fmt.Sprintf("%s%s?%s", baseURL, GraphQLEndpoint, params.Encode())
}

// GetProfileURL constructs the URL for fetching an owner's profile by id.
func GetProfileURL(baseURL, ownerID string) string {
	return baseURL + fmt.Sprintf(ProfileEndpoint, url.PathEscape(ownerID))
}

// GetSessionProbeURL constructs the URL used to validate a session.
func GetSessionProbeURL(baseURL string) string {
	return baseURL + SessionProbeEndpoint
}
