package collector

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
	"strings"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"

	"github.com/arthurcm/sitegen/internal/domain"
	apperrors "github.com/arthurcm/sitegen/internal/errors"
)

// githubCollector implements Collector using GitHub API
type githubCollector struct {
	client      *github.Client
	rateLimiter RateLimiter
	logger      *slog.Logger
}

// Options configures a GitHub collector
type Options struct {
	// Token is optional; unauthenticated requests get a lower rate limit.
	Token string
	// BaseURL overrides https://api.github.com/ (GitHub Enterprise, tests).
	BaseURL string
	// HTTPClient is used when Token is empty.
	HTTPClient *http.Client
	// RateLimiter is shared with the caller so it can report the remaining
	// quota; a fresh one is created when nil.
	RateLimiter RateLimiter
	Logger      *slog.Logger
}

// NewGitHubCollector creates a new GitHub collector
func NewGitHubCollector(opts Options) (Collector, error) {
	httpClient := opts.HTTPClient
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: opts.Token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	client := github.NewClient(httpClient)

	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		client.BaseURL = base
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rl := opts.RateLimiter
	if rl == nil {
		rl = NewRateLimiter(logger)
	}

	return &githubCollector{
		client:      client,
		rateLimiter: rl,
		logger:      logger,
	}, nil
}

// FetchRepositories issues a single GET users/{username}/repos request
func (c *githubCollector) FetchRepositories(ctx context.Context, username string, opts FetchOptions) ([]*domain.Repository, error) {
	opts = opts.withDefaults()
	endpoint := fmt.Sprintf("%susers/%s/repos?sort=%s&per_page=%d", c.client.BaseURL, username, opts.Sort, opts.PageSize)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, &apperrors.FetchError{URL: endpoint, Err: err}
	}

	req, err := c.client.NewRequest(http.MethodGet, fmt.Sprintf("users/%s/repos?sort=%s&per_page=%d", url.PathEscape(username), url.QueryEscape(opts.Sort), opts.PageSize), nil)
	if err != nil {
		return nil, &apperrors.FetchError{URL: endpoint, Err: err}
	}

	resp, err := c.client.BareDo(ctx, req)
	c.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, classify(endpoint, resp, err)
	}
	defer resp.Body.Close()

	repos, err := decodeRepositories(resp.Body)
	if err != nil {
		return nil, &apperrors.ParseError{URL: endpoint, Err: err}
	}

	c.logger.Debug("fetched repositories", "username", username, "count", len(repos))

	records := make([]*domain.Repository, 0, len(repos))
	for _, repo := range repos {
		records = append(records, toRecord(repo))
	}
	return records, nil
}

// classify maps a go-github failure onto the fetch error taxonomy: a
// non-success status is a FetchError with that status, a success status with
// an undecodable body is a ParseError, anything else is a transport failure.
func classify(endpoint string, resp *github.Response, err error) error {
	if resp == nil || resp.Response == nil {
		return &apperrors.FetchError{URL: endpoint, Err: err}
	}
	code := resp.StatusCode
	if code < http.StatusOK || code >= http.StatusMultipleChoices {
		fetchErr := apperrors.NewStatusError(endpoint, code, resp.Status)
		fetchErr.Err = err
		return fetchErr
	}
	return &apperrors.ParseError{URL: endpoint, Err: err}
}

// decodeRepositories reads exactly one JSON array from r. An empty body, a
// top-level value other than an array, or trailing data is an error.
func decodeRepositories(r io.Reader) ([]*github.Repository, error) {
	dec := json.NewDecoder(r)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty response body")
		}
		return nil, err
	}
	if trimmed := bytes.TrimLeft(raw, " \t\r\n"); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("expected a JSON array, got %.20s", raw)
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON array")
	}

	var repos []*github.Repository
	if err := json.Unmarshal(raw, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func toRecord(repo *github.Repository) *domain.Repository {
	return &domain.Repository{
		Name:            repo.GetName(),
		URL:             repo.GetHTMLURL(),
		Description:     repo.Description,
		StarCount:       repo.GetStargazersCount(),
		ForkCount:       repo.GetForksCount(),
		PrimaryLanguage: repo.Language,
		UpdatedAt:       repo.GetUpdatedAt().Time,
		IsFork:          repo.GetFork(),
	}
}

// updateRateLimitFromResponse updates the rate limiter from API response
func (c *githubCollector) updateRateLimitFromResponse(resp *github.Response) {
	if resp != nil && resp.Rate.Limit > 0 {
		c.rateLimiter.UpdateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}
