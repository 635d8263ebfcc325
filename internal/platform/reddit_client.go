package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/flavumhive/hivemind/internal/config"
)

// RedditItem is one submission fetched from a subreddit listing.
type RedditItem struct {
	ID        string
	Author    string
	Subreddit string
	Title     string
	Body      string
	Created   time.Time
}

// RedditClient is the external Reddit session boundary. The core only needs
// stable external ids for dedup; everything else is opaque.
type RedditClient interface {
	Username() string
	SubmitPost(ctx context.Context, subreddit, title, body string) (string, error)
	SubmitComment(ctx context.Context, postID, body string) (string, error)
	FetchNewest(ctx context.Context, subreddit string, limit int) ([]RedditItem, error)
}

const (
	redditTokenURL = "https://www.reddit.com/api/v1/access_token"
	redditOAuthAPI = "https://oauth.reddit.com"
)

// redditAPI talks to the Reddit JSON API with an OAuth2 password grant.
type redditAPI struct {
	creds  config.RedditCredentials
	http   *http.Client
	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewRedditClient builds the live API client and verifies credentials are
// present. Missing credentials are a construction-time (fatal) error.
func NewRedditClient(creds config.RedditCredentials) (RedditClient, error) {
	if missing := creds.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return &redditAPI{
		creds: creds,
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *redditAPI) Username() string { return c.creds.Username }

func (c *redditAPI) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expiry) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.creds.Username},
		"password":   {c.creds.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, redditTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request reddit token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reddit token request failed: %s", resp.Status)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode reddit token: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("reddit token response empty (check credentials)")
	}
	c.token = body.AccessToken
	c.expiry = time.Now().Add(time.Duration(body.ExpiresIn-60) * time.Second)
	return c.token, nil
}

func (c *redditAPI) do(ctx context.Context, method, path string, form url.Values, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	var reqBody *strings.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	} else {
		reqBody = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, redditOAuthAPI+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.creds.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reddit api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return &ThrottledError{Platform: "reddit", Status: resp.Status}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reddit api %s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ThrottledError marks an external rate-limit response: retry later, the
// surrounding retry policy decides how often.
type ThrottledError struct {
	Platform string
	Status   string
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s throttled the request: %s", e.Platform, e.Status)
}

func (c *redditAPI) SubmitPost(ctx context.Context, subreddit, title, body string) (string, error) {
	form := url.Values{
		"sr":       {subreddit},
		"kind":     {"self"},
		"title":    {title},
		"text":     {body},
		"api_type": {"json"},
	}
	// Some subreddits reject unflaired submissions. Pick the first available
	// template when one exists; a flair lookup failure is not fatal.
	if flairID, err := c.firstFlairID(ctx, subreddit); err == nil && flairID != "" {
		form.Set("flair_id", flairID)
	}
	var out struct {
		JSON struct {
			Errors [][]any `json:"errors"`
			Data   struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/submit", form, &out); err != nil {
		return "", err
	}
	if len(out.JSON.Errors) > 0 {
		return "", redditAPIError("submit", out.JSON.Errors)
	}
	if out.JSON.Data.ID == "" {
		return "", fmt.Errorf("reddit submit returned no post id")
	}
	return out.JSON.Data.ID, nil
}

// firstFlairID returns the first link flair template for a subreddit, or ""
// when the subreddit has none.
func (c *redditAPI) firstFlairID(ctx context.Context, subreddit string) (string, error) {
	var flairs []struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/r/%s/api/link_flair_v2", url.PathEscape(subreddit))
	if err := c.do(ctx, http.MethodGet, path, nil, &flairs); err != nil {
		return "", err
	}
	if len(flairs) == 0 {
		return "", nil
	}
	return flairs[0].ID, nil
}

func (c *redditAPI) SubmitComment(ctx context.Context, postID, body string) (string, error) {
	form := url.Values{
		"thing_id": {"t3_" + strings.TrimPrefix(postID, "t3_")},
		"text":     {body},
		"api_type": {"json"},
	}
	var out struct {
		JSON struct {
			Errors [][]any `json:"errors"`
			Data   struct {
				Things []struct {
					Data struct {
						ID string `json:"id"`
					} `json:"data"`
				} `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/comment", form, &out); err != nil {
		return "", err
	}
	if len(out.JSON.Errors) > 0 {
		return "", redditAPIError("comment", out.JSON.Errors)
	}
	if len(out.JSON.Data.Things) == 0 || out.JSON.Data.Things[0].Data.ID == "" {
		return "", fmt.Errorf("reddit comment returned no comment id")
	}
	return out.JSON.Data.Things[0].Data.ID, nil
}

func (c *redditAPI) FetchNewest(ctx context.Context, subreddit string, limit int) ([]RedditItem, error) {
	if limit <= 0 {
		limit = 10
	}
	var out struct {
		Data struct {
			Children []struct {
				Data struct {
					ID         string  `json:"id"`
					Author     string  `json:"author"`
					Subreddit  string  `json:"subreddit"`
					Title      string  `json:"title"`
					Selftext   string  `json:"selftext"`
					CreatedUTC float64 `json:"created_utc"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/r/%s/new.json?limit=%d", url.PathEscape(subreddit), limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	items := make([]RedditItem, 0, len(out.Data.Children))
	for _, child := range out.Data.Children {
		d := child.Data
		items = append(items, RedditItem{
			ID:        d.ID,
			Author:    d.Author,
			Subreddit: d.Subreddit,
			Title:     d.Title,
			Body:      d.Selftext,
			Created:   time.Unix(int64(d.CreatedUTC), 0),
		})
	}
	return items, nil
}

func redditAPIError(op string, errs [][]any) error {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		strs := make([]string, 0, len(e))
		for _, v := range e {
			strs = append(strs, fmt.Sprint(v))
		}
		parts = append(parts, strings.Join(strs, " "))
		// RATELIMIT errors come back in-band with HTTP 200.
		if len(e) > 0 && fmt.Sprint(e[0]) == "RATELIMIT" {
			return &ThrottledError{Platform: "reddit", Status: strings.Join(strs, " ")}
		}
	}
	return fmt.Errorf("reddit %s rejected: %s", op, strings.Join(parts, "; "))
}
