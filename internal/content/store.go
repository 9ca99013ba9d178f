package content

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/arthurcm/sitegen/internal/domain"
	apperrors "github.com/arthurcm/sitegen/internal/errors"
	"github.com/arthurcm/sitegen/internal/schema"
)

type collection interface {
	Name() string
	lookup(id string) (any, error)
	values() []any
}

// Sources locates the site's collections
type Sources struct {
	Blog    Source
	Authors Source
}

// DefaultSources mirrors the conventional content layout
func DefaultSources() Sources {
	return Sources{
		Blog:    Source{Base: "blog", Pattern: "**/[^_]*.md"},
		Authors: Source{Base: "authors", Pattern: "**/[^_]*.{json,yaml,yml}"},
	}
}

// Store is the loaded, read-only view of every collection
type Store struct {
	collections map[string]collection
	posts       *Collection[domain.Post]
	authors     *Collection[domain.Author]
}

// Load reads the blog and authors collections from fsys. Errors from both
// collections are reported together; no store is returned if either fails.
func Load(fsys fs.FS, v *schema.Validator, src Sources) (*Store, error) {
	authors, authorsErr := LoadCollection(fsys, v, Definition{
		Name:   domain.CollectionAuthors,
		Source: src.Authors,
		Parse:  ParseData,
	}, decodeAuthor)

	posts, postsErr := LoadCollection(fsys, v, Definition{
		Name:    domain.CollectionBlog,
		Source:  src.Blog,
		Parse:   ParseMarkdown,
		IDField: "slug",
	}, decodePost)

	if err := errors.Join(authorsErr, postsErr); err != nil {
		return nil, err
	}
	return NewStore(posts, authors), nil
}

// NewStore builds a store from already loaded collections
func NewStore(posts *Collection[domain.Post], authors *Collection[domain.Author]) *Store {
	return &Store{
		collections: map[string]collection{
			posts.Name():   posts,
			authors.Name(): authors,
		},
		posts:   posts,
		authors: authors,
	}
}

// Posts returns the blog collection
func (s *Store) Posts() *Collection[domain.Post] { return s.posts }

// Authors returns the authors collection
func (s *Store) Authors() *Collection[domain.Author] { return s.authors }

// Get looks up a record by collection and id
func (s *Store) Get(collectionName, id string) (any, error) {
	c, ok := s.collections[collectionName]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("collection %s", collectionName))
	}
	return c.lookup(id)
}

// All returns every record of a collection in source order
func (s *Store) All(collectionName string) ([]any, error) {
	c, ok := s.collections[collectionName]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("collection %s", collectionName))
	}
	return c.values(), nil
}

// Get is the typed form of Store.Get
func Get[T any](s *Store, collectionName, id string) (*T, error) {
	c, err := typed[T](s, collectionName)
	if err != nil {
		return nil, err
	}
	return c.Get(id)
}

// All is the typed form of Store.All
func All[T any](s *Store, collectionName string) ([]*T, error) {
	c, err := typed[T](s, collectionName)
	if err != nil {
		return nil, err
	}
	return c.All(), nil
}

func typed[T any](s *Store, collectionName string) (*Collection[T], error) {
	c, ok := s.collections[collectionName]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("collection %s", collectionName))
	}
	tc, ok := c.(*Collection[T])
	if !ok {
		var zero T
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("collection %s does not hold %T", collectionName, zero))
	}
	return tc, nil
}

func decodePost(e Entry) *domain.Post {
	pub, _ := e.Data.Time("pubDate")
	post := &domain.Post{
		ID:           e.ID,
		Title:        e.Data.String("title"),
		Description:  e.Data.String("description"),
		PubDate:      pub,
		Author:       e.Data.Reference("author"),
		RelatedPosts: e.Data.References("relatedPosts"),
		Body:         e.Body,
		SourcePath:   e.Path,
	}
	if updated, ok := e.Data.Time("updatedDate"); ok {
		post.UpdatedDate = &updated
	}
	return post
}

func decodeAuthor(e Entry) *domain.Author {
	return &domain.Author{
		ID:         e.ID,
		Name:       e.Data.String("name"),
		Portfolio:  e.Data.String("portfolio"),
		SourcePath: e.Path,
	}
}
