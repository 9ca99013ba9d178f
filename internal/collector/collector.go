package collector

import (
	"context"

	"github.com/arthurcm/sitegen/internal/domain"
)

// Default listing parameters
const (
	DefaultSort     = "updated"
	DefaultPageSize = 100
)

// FetchOptions controls the repository listing request
type FetchOptions struct {
	// Sort is one of created, updated, pushed or full_name
	Sort     string
	PageSize int
}

func (o FetchOptions) withDefaults() FetchOptions {
	if o.Sort == "" {
		o.Sort = DefaultSort
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	return o
}

// Collector defines the interface for collecting GitHub data
type Collector interface {
	// FetchRepositories retrieves one page of a user's public repositories.
	// Failures are *errors.FetchError or *errors.ParseError.
	FetchRepositories(ctx context.Context, username string, opts FetchOptions) ([]*domain.Repository, error)
}
