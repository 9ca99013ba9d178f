package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurcm/sitegen/internal/aggregator"
	"github.com/arthurcm/sitegen/internal/domain"
	apperrors "github.com/arthurcm/sitegen/internal/errors"
)

const reposBody = `[
  {"name": "site", "html_url": "https://github.com/ada/site", "description": "My site",
   "stargazers_count": 5, "forks_count": 1, "language": "Go", "fork": false,
   "updated_at": "2024-03-01T10:00:00Z"},
  {"name": "forked", "html_url": "https://github.com/ada/forked", "description": null,
   "stargazers_count": 100, "forks_count": 0, "language": null, "fork": true,
   "updated_at": "2024-02-01T10:00:00Z"}
]`

func newTestCollector(t *testing.T, handler http.HandlerFunc) Collector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewGitHubCollector(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestFetchRepositories(t *testing.T) {
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/ada/repos", r.URL.Path)
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reposBody))
	})

	repos, err := c.FetchRepositories(context.Background(), "ada", FetchOptions{})
	require.NoError(t, err)
	require.Len(t, repos, 2)

	desc, lang := "My site", "Go"
	assert.Equal(t, &domain.Repository{
		Name:            "site",
		URL:             "https://github.com/ada/site",
		Description:     &desc,
		StarCount:       5,
		ForkCount:       1,
		PrimaryLanguage: &lang,
		UpdatedAt:       time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}, repos[0])

	assert.True(t, repos[1].IsFork)
	assert.Nil(t, repos[1].Description)
	assert.Nil(t, repos[1].PrimaryLanguage)
}

func TestFetchRepositories_ShowcaseDropsForks(t *testing.T) {
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name": "a", "fork": true, "stargazers_count": 5},
			{"name": "b", "fork": false, "stargazers_count": 10}]`))
	})

	repos, err := c.FetchRepositories(context.Background(), "ada", FetchOptions{})
	require.NoError(t, err)

	showcase := aggregator.SortByStars(aggregator.FilterNonForks(repos))
	require.Len(t, showcase, 1)
	assert.Equal(t, "b", showcase[0].Name)
	assert.Equal(t, 10, showcase[0].StarCount)
}

func TestFetchRepositories_Cancelled(t *testing.T) {
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchRepositories(ctx, "ada", FetchOptions{})

	var fetchErr *apperrors.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.StatusCode)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchRepositories_EmptyList(t *testing.T) {
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	repos, err := c.FetchRepositories(context.Background(), "ada", FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestFetchRepositories_NotFound(t *testing.T) {
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
	})

	_, err := c.FetchRepositories(context.Background(), "nobody", FetchOptions{})

	var fetchErr *apperrors.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.False(t, fetchErr.Temporary())
	assert.True(t, apperrors.IsExternal(err))
}

func TestFetchRepositories_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"object", `{"not": "a list"}`},
		{"empty", ``},
		{"whitespace only", "  \n"},
		{"null", `null`},
		{"string", `"repos"`},
		{"trailing data", `[] trailing`},
		{"second array", `[] []`},
		{"truncated", `[{"name": "site"`},
		{"wrong field type", `[{"name": 1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			repos, err := c.FetchRepositories(context.Background(), "ada", FetchOptions{})

			assert.Nil(t, repos)
			var parseErr *apperrors.ParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.True(t, apperrors.IsExternal(err))
		})
	}
}

func TestFetchRepositories_TrailingWhitespace(t *testing.T) {
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[{\"name\": \"site\"}]\n\n"))
	})

	repos, err := c.FetchRepositories(context.Background(), "ada", FetchOptions{})
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "site", repos[0].Name)
}

func TestFetchRepositories_KeepsResponseStatus(t *testing.T) {
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "Forbidden"}`))
	})

	_, err := c.FetchRepositories(context.Background(), "ada", FetchOptions{})

	var fetchErr *apperrors.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusForbidden, fetchErr.StatusCode)
	assert.Equal(t, "Forbidden", fetchErr.Status)
}

func TestFetchRepositories_CustomOptions(t *testing.T) {
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pushed", r.URL.Query().Get("sort"))
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.FetchRepositories(context.Background(), "ada", FetchOptions{Sort: "pushed", PageSize: 10})
	require.NoError(t, err)
}

func TestWithRetry_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	retrying := WithRetry(c, RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}, nil)
	repos, err := retrying.FetchRepositories(context.Background(), "ada", FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, repos)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWithRetry_GivesUp(t *testing.T) {
	var calls atomic.Int32
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	retrying := WithRetry(c, RetryPolicy{MaxAttempts: 2, Backoff: time.Millisecond}, nil)
	_, err := retrying.FetchRepositories(context.Background(), "ada", FetchOptions{})

	var fetchErr *apperrors.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWithRetry_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	retrying := WithRetry(c, RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}, nil)
	_, err := retrying.FetchRepositories(context.Background(), "ada", FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWithRetry_DoesNotRetryParseErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`garbage`))
	})

	retrying := WithRetry(c, RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}, nil)
	_, err := retrying.FetchRepositories(context.Background(), "ada", FetchOptions{})

	var parseErr *apperrors.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter(nil)
	rl.UpdateLimit(0, time.Now().Add(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	remaining, reset, err := rl.CheckLimit()
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
	assert.True(t, reset.After(time.Now()))
}

func TestFetchRepositories_UpdatesSharedRateLimiter(t *testing.T) {
	reset := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "42")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	rl := NewRateLimiter(nil)
	c, err := NewGitHubCollector(Options{BaseURL: srv.URL, HTTPClient: srv.Client(), RateLimiter: rl})
	require.NoError(t, err)

	_, err = c.FetchRepositories(context.Background(), "ada", FetchOptions{})
	require.NoError(t, err)

	remaining, gotReset, err := rl.CheckLimit()
	require.NoError(t, err)
	assert.Equal(t, 42, remaining)
	assert.True(t, reset.Equal(gotReset))
}
