// Package github fetches the raw upstream resources for a handle: the
// user record, the recently updated repositories, the public events
// feed, and (when a token is configured) the pinned repositories via
// the GraphQL API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/chillgits/chillgits/profile"
)

const (
	defaultBaseURL    = "https://api.github.com"
	defaultGraphQLURL = "https://api.github.com/graphql"
	userAgent         = "chillgits/1.0"

	// Page sizes for the list endpoints. Ten recently updated repos is
	// enough to survive fork filtering and still fill six summaries.
	reposPerPage  = 10
	eventsPerPage = 10

	maxBodySize = 1 << 20
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,39}$`)

// ValidHandle reports whether s is a well-formed GitHub handle.
func ValidHandle(s string) bool {
	return handlePattern.MatchString(s)
}

// RawUser mirrors the upstream user record. Only the fields the
// normalizer consumes are declared; upstream shape drift elsewhere is
// invisible here.
type RawUser struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatar_url"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// RawRepo mirrors one entry of the repository listing.
type RawRepo struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Fork        bool   `json:"fork"`
	Stars       int    `json:"stargazers_count"`
	HTMLURL     string `json:"html_url"`
	Language    string `json:"language"`
	UpdatedAt   string `json:"updated_at"`
}

// RawEvent mirrors one entry of the public events feed.
type RawEvent struct {
	Type string `json:"type"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	CreatedAt string `json:"created_at"`
}

// Client issues read requests against the GitHub API.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	token      string
	baseURL    string
	graphqlURL string
}

// Option configures a Client.
type Option func(*config)

type config struct {
	httpClient *http.Client
	logger     *slog.Logger
	token      string
	baseURL    string
	graphqlURL string
}

// WithToken sets the bearer token attached to every request. Without
// it requests go out unauthenticated and carry lower rate limits.
func WithToken(token string) Option {
	return func(c *config) { c.token = token }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithBaseURL overrides the REST endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// WithGraphQLURL overrides the GraphQL endpoint (used by tests).
func WithGraphQLURL(u string) Option {
	return func(c *config) { c.graphqlURL = u }
}

// New creates a GitHub client.
func New(opts ...Option) *Client {
	cfg := &config{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     slog.Default(),
		baseURL:    defaultBaseURL,
		graphqlURL: defaultGraphQLURL,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		httpClient: cfg.httpClient,
		logger:     cfg.logger,
		token:      cfg.token,
		baseURL:    cfg.baseURL,
		graphqlURL: cfg.graphqlURL,
	}
}

// Authenticated reports whether the client carries a bearer token.
// Pinned-item queries require one.
func (c *Client) Authenticated() bool { return c.token != "" }

// FetchUser retrieves the user record for a handle.
func (c *Client) FetchUser(ctx context.Context, handle string) (RawUser, error) {
	var user RawUser
	body, err := c.get(ctx, handle, c.baseURL+"/users/"+url.PathEscape(handle))
	if err != nil {
		return RawUser{}, err
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return RawUser{}, &profile.UpstreamError{Detail: "malformed user body: " + err.Error()}
	}
	return user, nil
}

// FetchRepos retrieves the most recently updated repositories.
func (c *Client) FetchRepos(ctx context.Context, handle string) ([]RawRepo, error) {
	u := fmt.Sprintf("%s/users/%s/repos?sort=updated&per_page=%d", c.baseURL, url.PathEscape(handle), reposPerPage)
	body, err := c.get(ctx, handle, u)
	if err != nil {
		return nil, err
	}
	var repos []RawRepo
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, &profile.UpstreamError{Detail: "malformed repo listing: " + err.Error()}
	}
	return repos, nil
}

// FetchEvents retrieves the public events feed.
func (c *Client) FetchEvents(ctx context.Context, handle string) ([]RawEvent, error) {
	u := fmt.Sprintf("%s/users/%s/events/public?per_page=%d", c.baseURL, url.PathEscape(handle), eventsPerPage)
	body, err := c.get(ctx, handle, u)
	if err != nil {
		return nil, err
	}
	var events []RawEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, &profile.UpstreamError{Detail: "malformed events feed: " + err.Error()}
	}
	return events, nil
}

const pinnedQuery = `query($login: String!) {
  user(login: $login) {
    pinnedItems(first: 6, types: REPOSITORY) {
      nodes {
        ... on Repository {
          name
          nameWithOwner
          description
          stargazerCount
          url
          primaryLanguage { name }
        }
      }
    }
  }
}`

// FetchPinned retrieves the curated pinned repositories via GraphQL.
// The endpoint rejects unauthenticated calls, so callers should check
// Authenticated first.
func (c *Client) FetchPinned(ctx context.Context, handle string) ([]RawRepo, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     pinnedQuery,
		"variables": map[string]string{"login": handle},
	})
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, handle, http.MethodPost, c.graphqlURL, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			User *struct {
				PinnedItems struct {
					Nodes []struct {
						Name          string `json:"name"`
						NameWithOwner string `json:"nameWithOwner"`
						Description   string `json:"description"`
						Stars         int    `json:"stargazerCount"`
						URL           string `json:"url"`
						Language      *struct {
							Name string `json:"name"`
						} `json:"primaryLanguage"`
					} `json:"nodes"`
				} `json:"pinnedItems"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &profile.UpstreamError{Detail: "malformed pinned items body: " + err.Error()}
	}
	if resp.Data.User == nil {
		return nil, &profile.NotFoundError{Handle: handle}
	}

	repos := make([]RawRepo, 0, len(resp.Data.User.PinnedItems.Nodes))
	for _, n := range resp.Data.User.PinnedItems.Nodes {
		r := RawRepo{
			Name:        n.Name,
			FullName:    n.NameWithOwner,
			Description: n.Description,
			Stars:       n.Stars,
			HTMLURL:     n.URL,
		}
		if n.Language != nil {
			r.Language = n.Language.Name
		}
		repos = append(repos, r)
	}
	return repos, nil
}

func (c *Client) get(ctx context.Context, handle, rawURL string) ([]byte, error) {
	return c.do(ctx, handle, http.MethodGet, rawURL, nil)
}

// do issues one request with a single jittered retry for transient
// failures and maps the upstream failure modes onto the error taxonomy.
func (c *Client) do(ctx context.Context, handle, method, rawURL string, payload []byte) ([]byte, error) {
	body, err := retry.DoWithData(
		func() ([]byte, error) {
			return c.roundTrip(ctx, handle, method, rawURL, payload)
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying upstream request", "attempt", n+1, "url", rawURL, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, handle, method, rawURL string, payload []byte) ([]byte, error) {
	var reqBody io.Reader = http.NoBody
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, &profile.UpstreamError{Detail: err.Error()}
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &profile.UpstreamError{Detail: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // error ignored intentionally

	if err := mapStatus(resp, handle); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &profile.UpstreamError{Detail: "reading body: " + err.Error()}
	}
	return body, nil
}

// mapStatus converts a non-2xx response into the matching typed error.
func mapStatus(resp *http.Response, handle string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &profile.NotFoundError{Handle: handle}
	case http.StatusForbidden, http.StatusTooManyRequests:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			var reset time.Time
			if v, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
				reset = time.Unix(v, 0)
			}
			return &profile.RateLimitError{Reset: reset}
		}
	}
	return &profile.UpstreamError{Detail: "HTTP " + resp.Status}
}

// isRetryable returns true for transient failures worth one more try.
// The typed NotFound and RateLimit errors are permanent from the
// pipeline's point of view.
func isRetryable(err error) bool {
	var nf *profile.NotFoundError
	var rl *profile.RateLimitError
	if errors.As(err, &nf) || errors.As(err, &rl) {
		return false
	}
	var up *profile.UpstreamError
	if errors.As(err, &up) {
		// 4xx statuses other than 429 are permanent.
		for _, s := range []string{"HTTP 400", "HTTP 401", "HTTP 403", "HTTP 404", "HTTP 410", "HTTP 422"} {
			if len(up.Detail) >= len(s) && up.Detail[:len(s)] == s {
				return false
			}
		}
	}
	return true
}
