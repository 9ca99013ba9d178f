package storage

import (
	"context"

	"github.com/arthurcm/sitegen/internal/domain"
)

// Storage persists build snapshots: every build's posts, authors and
// repositories keyed by build id
type Storage interface {
	// Build operations
	SaveBuild(ctx context.Context, build *domain.Build) error
	GetBuild(ctx context.Context, id string) (*domain.Build, error)
	GetLatestBuild(ctx context.Context) (*domain.Build, error)
	ListBuilds(ctx context.Context, limit int) ([]*domain.Build, error)

	// Content operations
	SaveAuthors(ctx context.Context, buildID string, authors []*domain.Author) error
	GetAuthors(ctx context.Context, buildID string) ([]*domain.Author, error)
	SavePosts(ctx context.Context, buildID string, posts []*domain.Post) error
	GetPosts(ctx context.Context, buildID string) ([]*domain.Post, error)

	// Repository operations
	SaveRepositories(ctx context.Context, buildID string, repos []*domain.Repository) error
	GetRepositories(ctx context.Context, buildID string) ([]*domain.Repository, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
