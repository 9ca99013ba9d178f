// Package builder runs the content pipeline: load and validate collections,
// verify references, write the feed and the template indexes, fetch the
// repository showcase and record a snapshot of the build.
package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/arthurcm/sitegen/internal/aggregator"
	"github.com/arthurcm/sitegen/internal/collector"
	"github.com/arthurcm/sitegen/internal/config"
	"github.com/arthurcm/sitegen/internal/content"
	"github.com/arthurcm/sitegen/internal/domain"
	apperrors "github.com/arthurcm/sitegen/internal/errors"
	"github.com/arthurcm/sitegen/internal/feed"
	"github.com/arthurcm/sitegen/internal/reference"
	"github.com/arthurcm/sitegen/internal/schema"
	"github.com/arthurcm/sitegen/internal/storage"
)

// Output file names inside the output directory
const (
	FeedFile  = "rss.xml"
	PostsFile = "posts.json"
	ReposFile = "repos.json"
)

// Deps are the collaborators of a Builder. Collector and Storage are
// optional: without a collector the showcase is empty, without storage no
// snapshot is recorded.
type Deps struct {
	Collector collector.Collector
	Storage   storage.Storage
	Logger    *slog.Logger
}

// RunOptions control a single build
type RunOptions struct {
	// Strict fails the build when the repository fetch fails.
	Strict bool
	// SkipRepos leaves the showcase empty without calling GitHub.
	SkipRepos bool
	// Repositories, when non-nil, is used as the showcase instead of
	// fetching it again.
	Repositories []*domain.Repository
}

// Result is everything one build produced
type Result struct {
	Build        *domain.Build
	Store        *content.Store
	Feed         *domain.Feed
	Posts        []*PostView
	Repositories []*domain.Repository
	Summary      domain.ProfileSummary
	// RepoErr is the fetch failure the showcase degraded around, if any.
	RepoErr error
}

// Showcase is the content of repos.json
type Showcase struct {
	Username     string                `json:"username"`
	Summary      domain.ProfileSummary `json:"summary"`
	Repositories []*domain.Repository  `json:"repositories"`
	Warning      string                `json:"warning,omitempty"`
}

// Builder runs builds for one configuration
type Builder struct {
	cfg       *config.Config
	validator *schema.Validator
	collector collector.Collector
	storage   storage.Storage
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a builder
func New(cfg *config.Config, deps Deps) *Builder {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		cfg:       cfg,
		validator: schema.Default(),
		collector: deps.Collector,
		storage:   deps.Storage,
		logger:    logger.With("component", "builder"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Sources returns the collection sources from the configuration
func (b *Builder) Sources() content.Sources {
	return content.Sources{
		Blog:    content.Source{Base: b.cfg.Content.Blog.Base, Pattern: b.cfg.Content.Blog.Pattern},
		Authors: content.Source{Base: b.cfg.Content.Authors.Base, Pattern: b.cfg.Content.Authors.Pattern},
	}
}

// LoadContent loads both collections from the content directory and
// verifies every reference between them
func (b *Builder) LoadContent() (*content.Store, error) {
	store, err := content.Load(os.DirFS(b.cfg.Content.Dir), b.validator, b.Sources())
	if err != nil {
		return nil, err
	}
	if err := reference.NewResolver(store).Verify(store.Posts().All()); err != nil {
		return nil, err
	}
	b.logger.Debug("content loaded", "posts", store.Posts().Len(), "authors", store.Authors().Len())
	return store, nil
}

// FetchShowcase fetches the configured user's repositories and returns the
// non-fork ones ordered by stars
func (b *Builder) FetchShowcase(ctx context.Context, username string) ([]*domain.Repository, error) {
	if b.collector == nil {
		return nil, apperrors.NewBadRequestError("no GitHub collector configured")
	}
	repos, err := b.collector.FetchRepositories(ctx, username, collector.FetchOptions{
		Sort:     b.cfg.GitHub.Sort,
		PageSize: b.cfg.GitHub.PerPage,
	})
	if err != nil {
		return nil, err
	}
	return aggregator.Showcase(repos), nil
}

// Run executes a full build and writes its outputs
func (b *Builder) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	build := &domain.Build{
		ID:        uuid.NewString(),
		Status:    domain.BuildStatusInProgress,
		StartedAt: b.now(),
	}
	logger := b.logger.With("build", build.ID)
	logger.Info("build started")

	if err := b.saveBuild(ctx, build); err != nil {
		return nil, err
	}

	result, err := b.run(ctx, build, opts, logger)
	if err != nil {
		b.finish(ctx, build, domain.BuildStatusFailed)
		logger.Error("build failed", "error", err)
		return nil, err
	}

	if err := b.saveSnapshot(ctx, result); err != nil {
		b.finish(ctx, build, domain.BuildStatusFailed)
		return nil, err
	}
	b.finish(ctx, build, domain.BuildStatusCompleted)

	logger.Info("build completed",
		"posts", build.Posts,
		"authors", build.Authors,
		"repositories", build.Repositories,
		"duration", build.FinishedAt.Sub(build.StartedAt))
	return result, nil
}

func (b *Builder) run(ctx context.Context, build *domain.Build, opts RunOptions, logger *slog.Logger) (*Result, error) {
	store, err := b.LoadContent()
	if err != nil {
		return nil, err
	}

	f, err := feed.Generate(store.Posts().All(), b.cfg.Site)
	if err != nil {
		return nil, err
	}
	posts, err := ResolvePosts(store, b.cfg.Site.BaseURL)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Build:        build,
		Store:        store,
		Feed:         f,
		Posts:        posts,
		Repositories: []*domain.Repository{},
	}

	switch {
	case opts.SkipRepos || b.cfg.GitHub.Username == "":
	case opts.Repositories != nil:
		logger.Debug("reusing showcase from previous build", "count", len(opts.Repositories))
		result.Repositories = opts.Repositories
	default:
		repos, err := b.FetchShowcase(ctx, b.cfg.GitHub.Username)
		switch {
		case err == nil:
			result.Repositories = repos
		case opts.Strict || !apperrors.IsExternal(err):
			return nil, fmt.Errorf("failed to fetch repositories: %w", err)
		default:
			logger.Warn("repository fetch failed, showcase left empty", "username", b.cfg.GitHub.Username, "error", err)
			result.RepoErr = err
		}
	}
	result.Summary = aggregator.Summarize(result.Repositories)

	build.Posts = store.Posts().Len()
	build.Authors = store.Authors().Len()
	build.Repositories = len(result.Repositories)

	if err := b.writeOutputs(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (b *Builder) writeOutputs(result *Result) error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rss, err := os.Create(filepath.Join(b.cfg.OutputDir, FeedFile))
	if err != nil {
		return err
	}
	if err := feed.WriteRSS(rss, result.Feed, b.cfg.Site.Author); err != nil {
		_ = rss.Close()
		return fmt.Errorf("failed to write feed: %w", err)
	}
	if err := rss.Close(); err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(b.cfg.OutputDir, PostsFile), result.Posts); err != nil {
		return err
	}

	showcase := Showcase{
		Username:     b.cfg.GitHub.Username,
		Summary:      result.Summary,
		Repositories: result.Repositories,
	}
	if result.RepoErr != nil {
		showcase.Warning = result.RepoErr.Error()
	}
	return writeJSON(filepath.Join(b.cfg.OutputDir, ReposFile), showcase)
}

func (b *Builder) saveSnapshot(ctx context.Context, result *Result) error {
	if b.storage == nil {
		return nil
	}
	id := result.Build.ID
	if err := b.storage.SaveAuthors(ctx, id, result.Store.Authors().All()); err != nil {
		return fmt.Errorf("failed to save authors: %w", err)
	}
	if err := b.storage.SavePosts(ctx, id, result.Store.Posts().All()); err != nil {
		return fmt.Errorf("failed to save posts: %w", err)
	}
	if err := b.storage.SaveRepositories(ctx, id, result.Repositories); err != nil {
		return fmt.Errorf("failed to save repositories: %w", err)
	}
	return nil
}

func (b *Builder) saveBuild(ctx context.Context, build *domain.Build) error {
	if b.storage == nil {
		return nil
	}
	if err := b.storage.SaveBuild(ctx, build); err != nil {
		return fmt.Errorf("failed to save build: %w", err)
	}
	return nil
}

func (b *Builder) finish(ctx context.Context, build *domain.Build, status domain.BuildStatus) {
	finished := b.now()
	build.Status = status
	build.FinishedAt = &finished
	if err := b.saveBuild(ctx, build); err != nil {
		b.logger.Error("failed to record build status", "build", build.ID, "error", err)
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
