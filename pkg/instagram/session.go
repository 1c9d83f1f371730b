package instagram

import (
	"bufio"
	"os"
	"strings"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/errors"
)

// RequiredCookies are the cookies a usable session must carry.
var RequiredCookies = []string{"sessionid", "csrftoken", "ds_user_id"}

// Session is the authenticated session material extracted from a browser
// cookie export. Acquisition of the underlying login is out of scope; the
// crawler only consumes the resulting cookies.
type Session struct {
	SessionID string
	CSRFToken string
	UserID    string
}

// LoadNetscapeCookies parses a Netscape-format cookies.txt export and
// returns the session material for the Instagram domain. Lines prefixed
// with "#HttpOnly_" are cookie lines, not comments. Missing required
// cookies are an auth error: the run must not start without them.
func LoadNetscapeCookies(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeAuth, "cannot open cookies file: %v", err)
	}
	defer f.Close()

	cookies := make(map[string]string)

	s := bufio.NewScanner(f)
	for s.Scan() {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			continue
		}

		if strings.HasPrefix(raw, "#HttpOnly_") {
			raw = strings.TrimSpace(strings.TrimPrefix(raw, "#HttpOnly_"))
		} else if strings.HasPrefix(raw, "#") {
			continue
		}

		// domain, include-subdomains, path, secure, expiry, name, value
		parts := strings.Fields(raw)
		if len(parts) < 7 {
			continue
		}

		domain := strings.TrimPrefix(parts[0], ".")
		if !strings.HasSuffix(domain, "instagram.com") {
			continue
		}

		name := parts[5]
		value := strings.Join(parts[6:], " ")
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			value = strings.TrimSuffix(strings.TrimPrefix(value, `"`), `"`)
		}
		cookies[name] = value
	}
	if err := s.Err(); err != nil {
		return nil, errors.Newf(errors.ErrorTypeAuth, "failed to read cookies file: %v", err)
	}

	var missing []string
	for _, name := range RequiredCookies {
		if cookies[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Newf(errors.ErrorTypeAuth,
			"cookies file is missing required cookies: %s (log into instagram.com in your browser and re-export)",
			strings.Join(missing, ", "))
	}

	return &Session{
		SessionID: cookies["sessionid"],
		CSRFToken: cookies["csrftoken"],
		UserID:    cookies["ds_user_id"],
	}, nil
}

// Apply installs the session material onto the client. Empty fields are
// left off the cookie header.
func (s *Session) Apply(c *Client) {
	var cookies []string
	if s.SessionID != "" {
		cookies = append(cookies, "sessionid="+s.SessionID)
	}
	if s.CSRFToken != "" {
		cookies = append(cookies, "csrftoken="+s.CSRFToken)
		c.SetHeader("x-csrftoken", s.CSRFToken)
	}
	if s.UserID != "" {
		cookies = append(cookies, "ds_user_id="+s.UserID)
	}
	if len(cookies) > 0 {
		c.SetHeader("Cookie", strings.Join(cookies, "; "))
	}
}
