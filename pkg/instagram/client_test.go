package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/config"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/errors"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/logger"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
)

func newTestClient(serverURL string) *Client {
	c := NewClient(5*time.Second, 0, logger.Nop())
	c.SetBaseURL(serverURL)
	return c
}

func feedResponse(count int, hasNext bool, cursor string, nodes ...Node) HashtagResponse {
	edges := make([]Edge, 0, len(nodes))
	for _, n := range nodes {
		edges = append(edges, Edge{Node: n})
	}
	return HashtagResponse{
		Status: "ok",
		Data: HashtagData{
			Hashtag: Hashtag{
				Name: "food",
				EdgeHashtagToMedia: EdgeHashtagToMedia{
					Count:    count,
					PageInfo: PageInfo{HasNextPage: hasNext, EndCursor: cursor},
					Edges:    edges,
				},
			},
		},
	}
}

func imageNode(shortcode, ownerID, caption string, takenAt int64) Node {
	return Node{
		ID:               "id_" + shortcode,
		Typename:         "GraphImage",
		Shortcode:        shortcode,
		DisplayURL:       "https://cdn.example.com/" + shortcode + ".jpg",
		TakenAtTimestamp: takenAt,
		Owner:            Owner{ID: ownerID},
		EdgeMediaToCaption: EdgeMediaToCaption{
			Edges: []CaptionEdge{{Node: CaptionNode{Text: caption}}},
		},
		EdgeLikedBy:        Count{Count: 7},
		EdgeMediaToComment: Count{Count: 2},
	}
}

func TestFetchHashtagPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, GraphQLEndpoint, r.URL.Path)
		assert.Equal(t, HashtagQueryHash, r.URL.Query().Get("query_hash"))
		assert.Contains(t, r.URL.Query().Get("variables"), `"tag_name":"food"`)

		resp := feedResponse(250, true, "cursor-2",
			imageNode("AAA", "1", "lunch #food", 1700000000),
			imageNode("BBB", "2", "dinner #food #pizza", 1700000100),
		)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	page, err := client.FetchHashtagPage(context.Background(), "food", "")

	require.NoError(t, err)
	assert.Equal(t, 250, page.TotalCount)
	assert.Equal(t, "cursor-2", page.NextCursor)
	require.Len(t, page.Posts, 2)

	post := page.Posts[1]
	assert.Equal(t, "BBB", post.Shortcode)
	assert.Equal(t, "2", post.OwnerID)
	assert.Equal(t, models.MediaTypeImage, post.Type)
	assert.Equal(t, "dinner #food #pizza", post.Caption)
	assert.Contains(t, post.Tags, "pizza")
	assert.Equal(t, time.Unix(1700000100, 0).UTC(), post.TakenAt)
	assert.Equal(t, 7, post.LikeCount)
	assert.Equal(t, 2, post.CommentCount)
}

func TestFetchHashtagPageLastPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// has_next_page false means the cursor must come back empty even
		// when the payload still carries one
		json.NewEncoder(w).Encode(feedResponse(10, false, "stale-cursor"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	page, err := client.FetchHashtagPage(context.Background(), "food", "cursor-1")

	require.NoError(t, err)
	assert.Empty(t, page.NextCursor)
	assert.Empty(t, page.Posts)
}

func TestFetchHashtagPageErrorMapping(t *testing.T) {
	tests := []struct {
		status   int
		wantType errors.ErrorType
	}{
		{http.StatusTooManyRequests, errors.ErrorTypeRateLimit},
		{http.StatusUnauthorized, errors.ErrorTypeAuth},
		{http.StatusForbidden, errors.ErrorTypeAuth},
		{http.StatusNotFound, errors.ErrorTypeNotFound},
		{http.StatusInternalServerError, errors.ErrorTypeServerError},
		{http.StatusBadGateway, errors.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.FetchHashtagPage(context.Background(), "food", "")

			require.Error(t, err)
			assert.Equal(t, tt.wantType, errors.TypeOf(err))
		})
	}
}

func TestFetchHashtagPageParsingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>login page</html>"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchHashtagPage(context.Background(), "food", "")

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeParsing, errors.TypeOf(err))
}

func TestFetchProfileByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/42/info/", r.URL.Path)
		json.NewEncoder(w).Encode(ProfileResponse{
			Status: "ok",
			User: ProfileUser{
				ID:             "42",
				Username:       "chef",
				FullName:       "Chef Person",
				ProfilePicURL:  "https://cdn.example.com/chef.jpg",
				MediaCount:     10,
				FollowerCount:  500,
				FollowingCount: 100,
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	profile, err := client.FetchProfileByID(context.Background(), "42")

	require.NoError(t, err)
	assert.Equal(t, "42", profile.OwnerID)
	assert.Equal(t, "chef", profile.Username)
	assert.Equal(t, 500, profile.FollowerCount)
}

func TestFetchProfileByIDFillsOwnerID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ProfileResponse{
			Status: "ok",
			User:   ProfileUser{Username: "chef"},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	profile, err := client.FetchProfileByID(context.Background(), "42")

	require.NoError(t, err)
	assert.Equal(t, "42", profile.OwnerID)
}

func TestVerifySession(t *testing.T) {
	t.Run("valid session", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, SessionProbeEndpoint, r.URL.Path)
			w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		assert.NoError(t, client.VerifySession(context.Background()))
	})

	t.Run("rejected session", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		err := client.VerifySession(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsAuth(err))
	})

	t.Run("bad status field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"fail"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		err := client.VerifySession(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsAuth(err))
	})
}

func TestClientSendsSessionHeaders(t *testing.T) {
	var gotCookie, gotCSRF string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotCSRF = r.Header.Get("x-csrftoken")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	session := &Session{SessionID: "sess-1", CSRFToken: "csrf-1", UserID: "42"}
	session.Apply(client)

	require.NoError(t, client.VerifySession(context.Background()))
	assert.Contains(t, gotCookie, "sessionid=sess-1")
	assert.Contains(t, gotCookie, "csrftoken=csrf-1")
	assert.Contains(t, gotCookie, "ds_user_id=42")
	assert.Equal(t, "csrf-1", gotCSRF)
}

func TestNewClientFromConfigAppliesSession(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Instagram.SessionID = "sess-1"
	cfg.Instagram.CSRFToken = "csrf-1"
	cfg.Instagram.UserID = "42"
	cfg.Instagram.UserAgent = "custom-agent"

	c := NewClientFromConfig(cfg, logger.Nop())
	assert.Contains(t, c.headers["Cookie"], "sessionid=sess-1")
	assert.Contains(t, c.headers["Cookie"], "csrftoken=csrf-1")
	assert.Contains(t, c.headers["Cookie"], "ds_user_id=42")
	assert.Equal(t, "csrf-1", c.headers["x-csrftoken"])
	assert.Equal(t, "custom-agent", c.headers["User-Agent"])
}

func TestSessionApplySkipsEmptyFields(t *testing.T) {
	c := NewClient(5*time.Second, 0, logger.Nop())
	session := &Session{SessionID: "sess-1"}
	session.Apply(c)

	assert.Equal(t, "sessionid=sess-1", c.headers["Cookie"])
	assert.NotContains(t, c.headers, "x-csrftoken")
}

func TestNewClientConfiguresPacing(t *testing.T) {
	c := NewClient(5*time.Second, 60, logger.Nop())
	require.NotNil(t, c.limiter)
	assert.Equal(t, rate.Every(time.Second), c.limiter.Limit())

	unpaced := NewClient(5*time.Second, 0, logger.Nop())
	assert.Nil(t, unpaced.limiter)
}

func TestPacedRequestHonorsContext(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(feedResponse(0, false, ""))
	}))
	defer server.Close()

	c := NewClient(5*time.Second, 60, logger.Nop())
	c.SetBaseURL(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchHashtagPage(ctx, "food", "")
	require.Error(t, err)
	assert.Equal(t, 0, hits)
}

func TestGetHashtagFeedURL(t *testing.T) {
	url := GetHashtagFeedURL(BaseURL, "food", "abc")
	assert.Contains(t, url, GraphQLEndpoint)
	assert.Contains(t, url, "query_hash="+HashtagQueryHash)

	first := GetHashtagFeedURL(BaseURL, "food", "")
	assert.Contains(t, first, "%22after%22%3A%22%22")
}
