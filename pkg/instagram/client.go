package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/config"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/errors"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/logger"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
)

// Client talks to the remote feed and profile endpoints. All failures are
// reported as *errors.Error with a type the caller can branch on.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    *rate.Limiter
	logger     logger.Logger
}

// NewClient creates a client with the given timeout and request pacing.
// requestsPerMinute <= 0 disables client-side pacing.
func NewClient(timeout time.Duration, requestsPerMinute int, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":          "application/json",
			"Accept-Language": "en-US,en;q=0.9",
			"X-IG-App-ID":     "936619743392459",
		},
		baseURL: BaseURL,
		limiter: limiter,
		logger:  log,
	}
}

// NewClientFromConfig builds a client and applies the session material from
// the configuration (cookie header, CSRF token, user agent).
func NewClientFromConfig(cfg *config.Config, log logger.Logger) *Client {
	c := NewClient(cfg.RateLimit.RequestTimeout, cfg.RateLimit.RequestsPerMinute, log)

	session := Session{
		SessionID: cfg.Instagram.SessionID,
		CSRFToken: cfg.Instagram.CSRFToken,
		UserID:    cfg.Instagram.UserID,
	}
	session.Apply(c)

	if cfg.Instagram.UserAgent != "" {
		c.SetHeader("User-Agent", cfg.Instagram.UserAgent)
	}

	return c
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetBaseURL points the client at a different host. Used by tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// doRequest performs an HTTP request with the configured headers and pacing
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, errors.Newf(errors.ErrorTypeUnknown, "request pacing interrupted: %v", err)
		}
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.Newf(errors.ErrorTypeNetwork, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Newf(errors.ErrorTypeUnknown, "failed to create request: %v", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return nil
}

// checkResponseStatus maps HTTP status codes onto the error taxonomy
func (c *Client) checkResponseStatus(resp *http.Response) error {
	newErr := func(t errors.ErrorType, msg string) error {
		return &errors.Error{Type: t, Message: msg, Code: resp.StatusCode}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return newErr(errors.ErrorTypeAuth, "authentication required")
	case http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return newErr(errors.ErrorTypeNotFound, "resource not found")
	case http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return newErr(errors.ErrorTypeRateLimit, "rate limit exceeded")
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return newErr(errors.ErrorTypeServerError, "server error")
	default:
		if resp.StatusCode >= 400 {
			return newErr(errors.ErrorTypeUnknown, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
		}
		return nil
	}
}

// FetchHashtagPage fetches one page of a hashtag's feed. An empty cursor
// requests the first page; the returned page carries the next cursor, or ""
// when the feed is exhausted.
func (c *Client) FetchHashtagPage(ctx context.Context, tag, cursor string) (*HashtagPage, error) {
	url := GetHashtagFeedURL(c.baseURL, tag, cursor)

	c.logger.DebugWithFields("fetching hashtag feed page", map[string]interface{}{
		"hashtag": tag,
		"cursor":  cursor,
	})

	var response HashtagResponse
	if err := c.GetJSON(ctx, url, &response); err != nil {
		c.logger.ErrorWithFields("failed to fetch hashtag feed page", map[string]interface{}{
			"hashtag": tag,
			"cursor":  cursor,
			"error":   err.Error(),
		})
		return nil, err
	}

	media := response.Data.Hashtag.EdgeHashtagToMedia
	posts := make([]*models.Post, 0, len(media.Edges))
	for _, edge := range media.Edges {
		posts = append(posts, edge.Node.ToPost())
	}

	nextCursor := ""
	if media.PageInfo.HasNextPage {
		nextCursor = media.PageInfo.EndCursor
	}

	c.logger.DebugWithFields("hashtag feed page fetched", map[string]interface{}{
		"hashtag":       tag,
		"item_count":    len(posts),
		"has_next_page": media.PageInfo.HasNextPage,
	})

	return &HashtagPage{
		TotalCount: media.Count,
		Posts:      posts,
		NextCursor: nextCursor,
	}, nil
}

// FetchProfileByID fetches the profile of a post owner.
func (c *Client) FetchProfileByID(ctx context.Context, ownerID string) (*models.Profile, error) {
	url := GetProfileURL(c.baseURL, ownerID)

	c.logger.DebugWithFields("fetching owner profile", map[string]interface{}{
		"owner_id": ownerID,
	})

	var response ProfileResponse
	if err := c.GetJSON(ctx, url, &response); err != nil {
		return nil, err
	}

	profile := response.User.ToProfile()
	if profile.OwnerID == "" {
		profile.OwnerID = ownerID
	}

	return profile, nil
}

// VerifySession probes an authenticated endpoint and reports whether the
// session material is usable. Auth failures come back typed so the caller
// can abort the run before any collection starts.
func (c *Client) VerifySession(ctx context.Context) error {
	var probe struct {
		Status string `json:"status"`
	}
	if err := c.GetJSON(ctx, GetSessionProbeURL(c.baseURL), &probe); err != nil {
		return err
	}
	if probe.Status != "ok" {
		return errors.New(errors.ErrorTypeAuth, "session rejected by remote")
	}
	return nil
}
