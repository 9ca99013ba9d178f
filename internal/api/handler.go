package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/arthurcm/sitegen/internal/aggregator"
	"github.com/arthurcm/sitegen/internal/builder"
	"github.com/arthurcm/sitegen/internal/config"
	"github.com/arthurcm/sitegen/internal/domain"
	apperrors "github.com/arthurcm/sitegen/internal/errors"
	"github.com/arthurcm/sitegen/internal/feed"
	"github.com/arthurcm/sitegen/internal/reference"
)

// ShowcaseFetcher fetches a user's showcase repositories
type ShowcaseFetcher interface {
	FetchShowcase(ctx context.Context, username string) ([]*domain.Repository, error)
}

// Handler handles API requests
type Handler struct {
	state    *State
	fetcher  ShowcaseFetcher
	site     config.Site
	username string
	logger   *slog.Logger
}

// NewHandler creates a new API handler. fetcher may be nil, in which case
// repositories are served from the current build.
func NewHandler(state *State, fetcher ShowcaseFetcher, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		state:    state,
		fetcher:  fetcher,
		site:     cfg.Site,
		username: cfg.GitHub.Username,
		logger:   logger.With("component", "api"),
	}
}

// HealthCheck returns the health status of the preview server
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	lastErr, loadedAt := h.state.Status()
	body := gin.H{"status": "ok"}
	if result := h.state.Current(); result != nil {
		body["build"] = result.Build.ID
		body["loadedAt"] = loadedAt
	}
	if lastErr != nil {
		body["status"] = "stale"
		body["error"] = lastErr.Error()
	}
	c.JSON(http.StatusOK, body)
}

// GetFeed renders the current feed
// GET /rss.xml
func (h *Handler) GetFeed(c *gin.Context) {
	result, ok := h.current(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.Status(http.StatusOK)
	if err := feed.WriteRSS(c.Writer, result.Feed, h.site.Author); err != nil {
		h.logger.Error("failed to write feed", "error", err)
	}
}

// ListPosts returns every post with resolved references
// GET /api/v1/posts?limit=N
func (h *Handler) ListPosts(c *gin.Context) {
	result, ok := h.current(c)
	if !ok {
		return
	}

	posts := result.Posts
	if limit, err := parseLimit(c); err != nil {
		respondError(c, err)
		return
	} else if limit > 0 && limit < len(posts) {
		posts = posts[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  posts,
		"total": len(result.Posts),
	})
}

// GetPost returns one post with its author and related posts resolved
// GET /api/v1/posts/*id
func (h *Handler) GetPost(c *gin.Context) {
	result, ok := h.current(c)
	if !ok {
		return
	}

	id := strings.Trim(c.Param("id"), "/")
	post, err := result.Store.Posts().Get(id)
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := builder.ResolvePost(reference.NewResolver(result.Store), post, h.site.BaseURL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": view,
	})
}

// GetAuthor returns an author and the ids of their posts
// GET /api/v1/authors/:id
func (h *Handler) GetAuthor(c *gin.Context) {
	result, ok := h.current(c)
	if !ok {
		return
	}

	author, err := result.Store.Authors().Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	posts := lo.FilterMap(result.Store.Posts().All(), func(p *domain.Post, _ int) (string, bool) {
		return p.ID, p.Author.ID == author.ID
	})

	c.JSON(http.StatusOK, gin.H{
		"data":  author,
		"posts": posts,
	})
}

// ListRepos returns the showcase repositories. A failed fetch degrades to an
// empty list with a warning.
// GET /api/v1/repos?username=NAME&limit=N
func (h *Handler) ListRepos(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		respondError(c, err)
		return
	}

	username := c.Query("username")
	repos, warning, err := h.repositories(c, username)
	if username == "" {
		username = h.username
	}
	if err != nil {
		respondError(c, err)
		return
	}

	summary := aggregator.Summarize(repos)
	if limit > 0 && limit < len(repos) {
		repos = repos[:limit]
	}

	body := gin.H{
		"data":     repos,
		"summary":  summary,
		"username": username,
	}
	if warning != "" {
		body["warning"] = warning
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) repositories(c *gin.Context, username string) ([]*domain.Repository, string, error) {
	if h.fetcher == nil || username == "" {
		result := h.state.Current()
		if result == nil {
			return []*domain.Repository{}, "", nil
		}
		warning := ""
		if result.RepoErr != nil {
			warning = result.RepoErr.Error()
		}
		return result.Repositories, warning, nil
	}

	repos, err := h.fetcher.FetchShowcase(c.Request.Context(), username)
	if err != nil {
		if !apperrors.IsExternal(err) {
			return nil, "", err
		}
		h.logger.Warn("repository fetch failed", "username", username, "error", err)
		return []*domain.Repository{}, err.Error(), nil
	}
	return repos, "", nil
}

func (h *Handler) current(c *gin.Context) (*builder.Result, bool) {
	result := h.state.Current()
	if result == nil {
		msg := "no successful build yet"
		if lastErr, _ := h.state.Status(); lastErr != nil {
			msg = lastErr.Error()
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": gin.H{
				"code":    apperrors.ErrCodeInternal,
				"message": msg,
			},
		})
		return nil, false
	}
	return result, true
}

func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperrors.NewBadRequestError(fmt.Sprintf("invalid limit %q", raw))
	}
	return limit, nil
}

type coded interface {
	Code() apperrors.ErrCode
}

func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	code := apperrors.ErrCodeInternal
	status := http.StatusInternalServerError
	var typed coded
	if errors.As(err, &typed) {
		code = typed.Code()
		if apperrors.IsExternal(err) {
			status = http.StatusBadGateway
		}
	}
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": err.Error(),
		},
	})
}
