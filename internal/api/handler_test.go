package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurcm/sitegen/internal/builder"
	"github.com/arthurcm/sitegen/internal/config"
	"github.com/arthurcm/sitegen/internal/content"
	"github.com/arthurcm/sitegen/internal/domain"
	apperrors "github.com/arthurcm/sitegen/internal/errors"
	"github.com/arthurcm/sitegen/internal/feed"
	"github.com/arthurcm/sitegen/internal/schema"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testConfig = &config.Config{
	Site:   config.Site{Title: "arthurcm.com", Description: "Blog", BaseURL: "https://arthurcm.com"},
	GitHub: config.GitHubConfig{Username: "ada"},
}

func testResult(t *testing.T) *builder.Result {
	t.Helper()
	fsys := fstest.MapFS{
		"authors/arthur.json": {Data: []byte(`{"name": "Arthur", "portfolio": "https://arthurcm.com"}`)},
		"blog/a.md":           {Data: []byte("---\ntitle: A\npubDate: 2024-01-01\nauthor: arthur\nrelatedPosts: [2024/b]\n---\nBody A\n")},
		"blog/2024/b.md":      {Data: []byte("---\ntitle: B\npubDate: 2024-02-01\nauthor: arthur\nrelatedPosts: [a]\n---\nBody B\n")},
	}
	store, err := content.Load(fsys, schema.Default(), content.DefaultSources())
	require.NoError(t, err)

	posts, err := builder.ResolvePosts(store, testConfig.Site.BaseURL)
	require.NoError(t, err)
	f, err := feed.Generate(store.Posts().All(), testConfig.Site)
	require.NoError(t, err)

	return &builder.Result{
		Build:        &domain.Build{ID: "build-1", Status: domain.BuildStatusCompleted},
		Store:        store,
		Feed:         f,
		Posts:        posts,
		Repositories: []*domain.Repository{{Name: "cached", StarCount: 1}},
	}
}

type stubFetcher struct {
	repos []*domain.Repository
	err   error
	calls *int
}

func (s stubFetcher) FetchShowcase(context.Context, string) ([]*domain.Repository, error) {
	if s.calls != nil {
		*s.calls++
	}
	return s.repos, s.err
}

type stubRebuilder struct {
	result *builder.Result
	err    error
	opts   *[]builder.RunOptions
}

func (s stubRebuilder) Run(_ context.Context, opts builder.RunOptions) (*builder.Result, error) {
	if s.opts != nil {
		*s.opts = append(*s.opts, opts)
	}
	return s.result, s.err
}

func newRouter(t *testing.T, fetcher ShowcaseFetcher) (*gin.Engine, *State) {
	t.Helper()
	state := NewState(stubRebuilder{result: testResult(t)}, builder.RunOptions{})
	require.NoError(t, state.Reload(context.Background()))
	return SetupRoutes(NewHandler(state, fetcher, testConfig, nil), "", nil), state
}

func get(router http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHealthCheck(t *testing.T) {
	router, _ := newRouter(t, nil)

	w, body := get(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "build-1", body["build"])
}

func TestListPosts(t *testing.T) {
	router, _ := newRouter(t, nil)

	w, body := get(router, "/api/v1/posts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"], 2)
	assert.Equal(t, float64(2), body["total"])

	_, body = get(router, "/api/v1/posts?limit=1")
	assert.Len(t, body["data"], 1)

	w, _ = get(router, "/api/v1/posts?limit=x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPost(t *testing.T) {
	router, _ := newRouter(t, nil)

	w, body := get(router, "/api/v1/posts/2024/b")
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]any)
	assert.Equal(t, "B", data["title"])
	assert.Equal(t, "https://arthurcm.com/blog/2024/b/", data["url"])
	assert.Equal(t, "Arthur", data["author"].(map[string]any)["name"])
	related := data["relatedPosts"].([]any)
	require.Len(t, related, 1)
	assert.Equal(t, "a", related[0].(map[string]any)["id"])

	w, body = get(router, "/api/v1/posts/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperrors.ErrCodeNotFound), body["error"].(map[string]any)["code"])
}

func TestGetAuthor(t *testing.T) {
	router, _ := newRouter(t, nil)

	w, body := get(router, "/api/v1/authors/arthur")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Arthur", body["data"].(map[string]any)["name"])
	assert.ElementsMatch(t, []any{"a", "2024/b"}, body["posts"])

	w, _ = get(router, "/api/v1/authors/nobody")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRepos(t *testing.T) {
	router, _ := newRouter(t, stubFetcher{repos: []*domain.Repository{{Name: "live", StarCount: 4}, {Name: "other", StarCount: 2}}})

	w, body := get(router, "/api/v1/repos?username=ada&limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "live", data[0].(map[string]any)["name"])
	assert.Equal(t, float64(6), body["summary"].(map[string]any)["stars"])
	assert.Nil(t, body["warning"])
}

func TestListRepos_DegradesOnFetchError(t *testing.T) {
	router, _ := newRouter(t, stubFetcher{err: apperrors.NewStatusError("https://api.github.com/users/ada/repos", 404, "")})

	w, body := get(router, "/api/v1/repos?username=ada")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["data"])
	assert.NotNil(t, body["data"])
	assert.Contains(t, body["warning"], "404")
}

func TestListRepos_FromBuildWithoutFetcher(t *testing.T) {
	router, _ := newRouter(t, nil)

	_, body := get(router, "/api/v1/repos")
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "cached", data[0].(map[string]any)["name"])
}

func TestListRepos_DefaultServesBuildWithoutFetching(t *testing.T) {
	calls := 0
	router, _ := newRouter(t, stubFetcher{repos: []*domain.Repository{{Name: "live"}}, calls: &calls})

	for i := 0; i < 3; i++ {
		w, body := get(router, "/api/v1/repos")
		require.Equal(t, http.StatusOK, w.Code)
		data := body["data"].([]any)
		require.Len(t, data, 1)
		assert.Equal(t, "cached", data[0].(map[string]any)["name"])
		assert.Equal(t, "ada", body["username"])
	}
	assert.Zero(t, calls)

	_, body := get(router, "/api/v1/repos?username=grace")
	assert.Equal(t, "live", body["data"].([]any)[0].(map[string]any)["name"])
	assert.Equal(t, "grace", body["username"])
	assert.Equal(t, 1, calls)
}

func TestState_ReloadReusesShowcase(t *testing.T) {
	var seen []builder.RunOptions
	result := testResult(t)
	state := NewState(stubRebuilder{result: result, opts: &seen}, builder.RunOptions{})

	require.NoError(t, state.Reload(context.Background()))
	require.NoError(t, state.Reload(context.Background()))

	require.Len(t, seen, 2)
	assert.Nil(t, seen[0].Repositories)
	assert.Equal(t, result.Repositories, seen[1].Repositories)
}

func TestState_ReloadRefetchesAfterFailedShowcase(t *testing.T) {
	var seen []builder.RunOptions
	result := testResult(t)
	result.RepoErr = &apperrors.FetchError{URL: "u", StatusCode: http.StatusBadGateway}
	state := NewState(stubRebuilder{result: result, opts: &seen}, builder.RunOptions{})

	require.NoError(t, state.Reload(context.Background()))
	require.NoError(t, state.Reload(context.Background()))

	require.Len(t, seen, 2)
	assert.Nil(t, seen[1].Repositories)
}

func TestGetFeed(t *testing.T) {
	router, _ := newRouter(t, nil)

	w, _ := get(router, "/rss.xml")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/rss+xml")
	assert.Contains(t, w.Body.String(), "https://arthurcm.com/blog/2024/b/")
}

func TestState_FailedReloadKeepsPreviousBuild(t *testing.T) {
	router, state := newRouter(t, nil)

	state.rebuilder = stubRebuilder{err: errors.New("broken front matter")}
	require.Error(t, state.Reload(context.Background()))

	_, body := get(router, "/health")
	assert.Equal(t, "stale", body["status"])
	assert.Equal(t, "broken front matter", body["error"])

	w, _ := get(router, "/api/v1/posts")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNoBuildYet(t *testing.T) {
	state := NewState(stubRebuilder{err: errors.New("no content")}, builder.RunOptions{})
	_ = state.Reload(context.Background())
	router := SetupRoutes(NewHandler(state, nil, testConfig, nil), "", nil)

	w, body := get(router, "/api/v1/posts")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "no content", body["error"].(map[string]any)["message"])
}
