package builder

import (
	"time"

	"github.com/arthurcm/sitegen/internal/content"
	"github.com/arthurcm/sitegen/internal/domain"
	"github.com/arthurcm/sitegen/internal/feed"
	"github.com/arthurcm/sitegen/internal/reference"
)

// PostView is a post with its references resolved one level deep, as handed
// to page templates
type PostView struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	URL          string         `json:"url"`
	PubDate      time.Time      `json:"pubDate"`
	UpdatedDate  *time.Time     `json:"updatedDate,omitempty"`
	Author       *domain.Author `json:"author"`
	RelatedPosts []RelatedPost  `json:"relatedPosts"`
	HTML         string         `json:"html"`
}

// RelatedPost is the summary of a related post. Its own references are not
// followed.
type RelatedPost struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	PubDate time.Time `json:"pubDate"`
}

// ResolvePosts builds a view of every post in source order
func ResolvePosts(store *content.Store, baseURL string) ([]*PostView, error) {
	resolver := reference.NewResolver(store)
	views := make([]*PostView, 0, store.Posts().Len())
	for _, post := range store.Posts().All() {
		view, err := ResolvePost(resolver, post, baseURL)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// ResolvePost builds the view of one post
func ResolvePost(resolver *reference.Resolver, post *domain.Post, baseURL string) (*PostView, error) {
	author, err := resolver.Author(post)
	if err != nil {
		return nil, err
	}
	related, err := resolver.Related(post)
	if err != nil {
		return nil, err
	}
	html, err := feed.RenderMarkdown(post.Body)
	if err != nil {
		return nil, err
	}

	view := &PostView{
		ID:           post.ID,
		Title:        post.Title,
		Description:  post.Description,
		URL:          feed.Link(baseURL, post.ID),
		PubDate:      post.PubDate,
		UpdatedDate:  post.UpdatedDate,
		Author:       author,
		RelatedPosts: make([]RelatedPost, 0, len(related)),
		HTML:         html,
	}
	for _, r := range related {
		view.RelatedPosts = append(view.RelatedPosts, RelatedPost{
			ID:      r.ID,
			Title:   r.Title,
			URL:     feed.Link(baseURL, r.ID),
			PubDate: r.PubDate,
		})
	}
	return view, nil
}
