// Package client is a Go client for the preview server API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arthurcm/sitegen/internal/builder"
	"github.com/arthurcm/sitegen/internal/domain"
	apperrors "github.com/arthurcm/sitegen/internal/errors"
)

// Client is the API client for the preview server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Health is the preview server status
type Health struct {
	Status   string    `json:"status"`
	Build    string    `json:"build"`
	LoadedAt time.Time `json:"loadedAt"`
	Error    string    `json:"error"`
}

// Repositories is the response of the repository listing
type Repositories struct {
	Username     string                `json:"username"`
	Repositories []*domain.Repository  `json:"data"`
	Summary      domain.ProfileSummary `json:"summary"`
	Warning      string                `json:"warning"`
}

// AuthorPosts is an author with the ids of their posts
type AuthorPosts struct {
	Author *domain.Author `json:"data"`
	Posts  []string       `json:"posts"`
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListPosts retrieves the resolved posts of the current build. limit <= 0
// returns all of them.
func (c *Client) ListPosts(ctx context.Context, limit int) ([]*builder.PostView, error) {
	var response struct {
		Data []*builder.PostView `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/posts", limitParams(limit), &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetPost retrieves one post with its author and related posts
func (c *Client) GetPost(ctx context.Context, id string) (*builder.PostView, error) {
	var response struct {
		Data *builder.PostView `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/posts/"+id, nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetAuthor retrieves an author and the ids of their posts
func (c *Client) GetAuthor(ctx context.Context, id string) (*AuthorPosts, error) {
	var response AuthorPosts
	if err := c.get(ctx, "/api/v1/authors/"+url.PathEscape(id), nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// ListRepositories retrieves the showcase of username, or of the configured
// user when username is empty
func (c *Client) ListRepositories(ctx context.Context, username string, limit int) (*Repositories, error) {
	params := limitParams(limit)
	if username != "" {
		if params == nil {
			params = url.Values{}
		}
		params.Set("username", username)
	}

	var response Repositories
	if err := c.get(ctx, "/api/v1/repos", params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// HealthCheck checks the health of the preview server. A stale server, one
// whose last rebuild failed, is reported as an error.
func (c *Client) HealthCheck(ctx context.Context) (*Health, error) {
	var response Health
	if err := c.get(ctx, "/health", nil, &response); err != nil {
		return nil, err
	}
	if response.Status != "ok" {
		return &response, fmt.Errorf("unhealthy status: %s: %s", response.Status, response.Error)
	}
	return &response, nil
}

func limitParams(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": []string{strconv.Itoa(limit)}}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apperrors.FetchError{URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fetchErr := apperrors.NewStatusError(u.String(), resp.StatusCode, resp.Status)
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error.Message != "" {
			fetchErr.Err = fmt.Errorf("%s", body.Error.Message)
		}
		return fetchErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &apperrors.ParseError{URL: u.String(), Err: err}
	}
	return nil
}
