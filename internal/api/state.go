package api

import (
	"context"
	"sync"
	"time"

	"github.com/arthurcm/sitegen/internal/builder"
)

// Rebuilder produces a fresh build
type Rebuilder interface {
	Run(ctx context.Context, opts builder.RunOptions) (*builder.Result, error)
}

// State holds the build currently served. A reload swaps the whole result;
// a failed reload keeps the previous one and records the error.
type State struct {
	mu       sync.RWMutex
	current  *builder.Result
	lastErr  error
	loadedAt time.Time

	rebuilder Rebuilder
	opts      builder.RunOptions
}

// NewState creates an empty state that reloads through rebuilder
func NewState(rebuilder Rebuilder, opts builder.RunOptions) *State {
	return &State{rebuilder: rebuilder, opts: opts}
}

// Reload runs a build and swaps it in on success. The showcase of the served
// build is carried over unless its fetch had failed.
func (s *State) Reload(ctx context.Context) error {
	opts := s.opts
	if prev := s.Current(); prev != nil && prev.RepoErr == nil {
		opts.Repositories = prev.Repositories
	}
	result, err := s.rebuilder.Run(ctx, opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		return err
	}
	s.current = result
	s.loadedAt = time.Now()
	return nil
}

// Set swaps in a result directly
func (s *State) Set(result *builder.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = result
	s.lastErr = nil
	s.loadedAt = time.Now()
}

// Current returns the served result, nil before the first successful build
func (s *State) Current() *builder.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Status reports the last reload error and when the served result was built
func (s *State) Status() (lastErr error, loadedAt time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr, s.loadedAt
}
