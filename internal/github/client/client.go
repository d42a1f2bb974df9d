package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glitchidea/glichflow/internal/observability/metrics"
	obstracing "github.com/glitchidea/glichflow/internal/observability/tracing"
	"go.uber.org/zap"
)

const (
	DefaultTimeout       = 15 * time.Second
	defaultWarnThreshold = 100
	maxErrorBody         = 4 << 10
)

var (
	ErrUnauthorized = errors.New("github_unauthorized")
	ErrNotFound     = errors.New("github_not_found")
)

// APIError is a non-2xx answer from the GitHub API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// TokenSource hands out the access token for one credential. Refresh is
// called at most once per request, after a 401.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Log        *zap.Logger
	Metrics    *metrics.GitHubMetrics
	// WarnThreshold is read on every response so a reloaded value applies
	// without rebuilding the client.
	WarnThreshold func() int
}

type Client struct {
	baseURL       string
	http          *http.Client
	tokens        TokenSource
	log           *zap.Logger
	metrics       *metrics.GitHubMetrics
	warnThreshold func() int

	mu        sync.Mutex
	rateLimit *RateLimit
}

func New(opts Options, tokens TokenSource) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient = obstracing.WrapHTTPClient(httpClient)
	httpClient.Timeout = timeout

	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	threshold := opts.WarnThreshold
	if threshold == nil {
		threshold = func() int { return defaultWarnThreshold }
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}

	return &Client{
		baseURL:       baseURL,
		http:          httpClient,
		tokens:        tokens,
		log:           log.Named("github.client"),
		metrics:       opts.Metrics,
		warnThreshold: threshold,
	}
}

func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	var issue Issue
	if err := c.do(ctx, http.MethodGet, issuePath(owner, repo, number), nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) CreateIssue(ctx context.Context, owner, repo string, input IssueInput) (*Issue, error) {
	var issue Issue
	path := fmt.Sprintf("/repos/%s/%s/issues", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.do(ctx, http.MethodPost, path, input, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) UpdateIssue(ctx context.Context, owner, repo string, number int, input IssueInput) (*Issue, error) {
	var issue Issue
	if err := c.do(ctx, http.MethodPatch, issuePath(owner, repo, number), input, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) ListIssues(ctx context.Context, owner, repo string, opts ListIssuesOptions) ([]Issue, error) {
	query := url.Values{}
	if opts.State != "" {
		query.Set("state", opts.State)
	}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		query.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	path := fmt.Sprintf("/repos/%s/%s/issues?%s", url.PathEscape(owner), url.PathEscape(repo), query.Encode())

	var issues []Issue
	if err := c.do(ctx, http.MethodGet, path, nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func (c *Client) ListComments(ctx context.Context, owner, repo string, number, page, perPage int) ([]Comment, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		query.Set("per_page", strconv.Itoa(perPage))
	}
	path := issuePath(owner, repo, number) + "/comments?" + query.Encode()

	var comments []Comment
	if err := c.do(ctx, http.MethodGet, path, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) (*Comment, error) {
	var comment Comment
	payload := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPost, issuePath(owner, repo, number)+"/comments", payload, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// LastRateLimit returns the budget seen on the most recent response, or nil
// before any response carried rate limit headers.
func (c *Client) LastRateLimit() *RateLimit {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rateLimit == nil {
		return nil
	}
	rl := *c.rateLimit
	return &rl
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		token, err = c.tokens.Refresh(ctx)
		c.metrics.IncTokenRefresh(err == nil)
		if err != nil {
			c.log.Warn("github token refresh failed", zap.String("path", path), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		resp, err = c.send(ctx, method, path, payload, token)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.IncRequest(0)
		return nil, err
	}
	c.metrics.IncRequest(resp.StatusCode)
	c.observeRateLimit(resp.Header)
	return resp, nil
}

func (c *Client) observeRateLimit(header http.Header) {
	raw := strings.TrimSpace(header.Get("X-RateLimit-Remaining"))
	if raw == "" {
		return
	}
	remaining, err := strconv.Atoi(raw)
	if err != nil {
		return
	}
	rl := RateLimit{Remaining: remaining}
	if reset, err := strconv.ParseInt(strings.TrimSpace(header.Get("X-RateLimit-Reset")), 10, 64); err == nil {
		rl.Reset = time.Unix(reset, 0).UTC()
	}

	c.mu.Lock()
	c.rateLimit = &rl
	c.mu.Unlock()

	c.metrics.SetRateLimitRemaining(remaining)
	if remaining < c.warnThreshold() {
		c.log.Warn("github rate limit running low",
			zap.Int("remaining", remaining),
			zap.Time("reset_at", rl.Reset),
		)
	}
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Message string `json:"message"`
	}
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		message = payload.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

func issuePath(owner, repo string, number int) string {
	return fmt.Sprintf("/repos/%s/%s/issues/%d", url.PathEscape(owner), url.PathEscape(repo), number)
}
