// Package reference resolves cross-collection references against a loaded
// content store. Resolution is one keyed lookup; it never follows the
// references of the resolved record.
package reference

import (
	"errors"
	"fmt"

	"github.com/arthurcm/sitegen/internal/domain"
	apperrors "github.com/arthurcm/sitegen/internal/errors"
)

// Lookup is the keyed read the resolver needs from a store
type Lookup interface {
	Get(collection, id string) (any, error)
}

// Resolver resolves references against a Lookup
type Resolver struct {
	lookup Lookup
}

// NewResolver creates a resolver backed by lookup
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the record ref points at, or a *errors.ReferenceError
func (r *Resolver) Resolve(ref domain.Reference) (any, error) {
	return r.resolve("", "", ref)
}

func (r *Resolver) resolve(from, field string, ref domain.Reference) (any, error) {
	item, err := r.lookup.Get(ref.Collection, ref.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, &apperrors.ReferenceError{
				From:       from,
				Field:      field,
				Collection: ref.Collection,
				ID:         ref.ID,
				Err:        err,
			}
		}
		return nil, err
	}
	return item, nil
}

// ResolveAs resolves ref and asserts the record type
func ResolveAs[T any](r *Resolver, ref domain.Reference) (*T, error) {
	item, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	typed, ok := item.(*T)
	if !ok {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("%s is a %T, not a %T", ref, item, typed))
	}
	return typed, nil
}

// Author resolves the author of a post
func (r *Resolver) Author(post *domain.Post) (*domain.Author, error) {
	item, err := r.resolve(postKey(post), "author", post.Author)
	if err != nil {
		return nil, err
	}
	author, ok := item.(*domain.Author)
	if !ok {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("%s: author %s is not an author", postKey(post), post.Author))
	}
	return author, nil
}

// Related resolves the related posts of a post in declared order. The
// related posts' own references are not followed.
func (r *Resolver) Related(post *domain.Post) ([]*domain.Post, error) {
	related := make([]*domain.Post, 0, len(post.RelatedPosts))
	for i, ref := range post.RelatedPosts {
		item, err := r.resolve(postKey(post), fmt.Sprintf("relatedPosts[%d]", i), ref)
		if err != nil {
			return nil, err
		}
		p, ok := item.(*domain.Post)
		if !ok {
			return nil, apperrors.NewBadRequestError(fmt.Sprintf("%s: related %s is not a post", postKey(post), ref))
		}
		related = append(related, p)
	}
	return related, nil
}

// Verify resolves every reference of every post and returns all dangling
// references joined into one error.
func (r *Resolver) Verify(posts []*domain.Post) error {
	var errs []error
	for _, post := range posts {
		if _, err := r.resolve(postKey(post), "author", post.Author); err != nil {
			errs = append(errs, err)
		}
		for i, ref := range post.RelatedPosts {
			if _, err := r.resolve(postKey(post), fmt.Sprintf("relatedPosts[%d]", i), ref); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func postKey(post *domain.Post) string {
	return domain.CollectionBlog + "/" + post.ID
}
