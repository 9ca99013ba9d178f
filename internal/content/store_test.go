package content

import (
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurcm/sitegen/internal/domain"
	apperrors "github.com/arthurcm/sitegen/internal/errors"
	"github.com/arthurcm/sitegen/internal/schema"
)

func fixture() fstest.MapFS {
	return fstest.MapFS{
		"authors/arthur.json": {Data: []byte(`{"name": "Arthur Campbell", "portfolio": "https://arthurcm.com"}`)},
		"authors/guest.yaml":  {Data: []byte("name: Guest\nportfolio: https://guest.example.com/\n")},
		"authors/_draft.json": {Data: []byte(`{"name": 1}`)},
		"blog/first-post.md": {Data: []byte(`---
title: First post
pubDate: 2024-01-10
author: arthur
relatedPosts:
  - second-post
---
Hello **world**.
`)},
		"blog/second-post.md": {Data: []byte(`---
title: Second post
description: The sequel
pubDate: 2024-02-01
updatedDate: 2024-02-03
author: guest
relatedPosts: [first-post]
---
More text.
`)},
		"blog/2024/Year In Review.md": {Data: []byte(`---
title: Year in review
pubDate: 2024-12-31
author: arthur
---
`)},
		"blog/_unpublished.md": {Data: []byte("not even front matter")},
		"blog/notes.txt":       {Data: []byte("ignored")},
	}
}

func TestLoad_ValidContent(t *testing.T) {
	store, err := Load(fixture(), schema.Default(), DefaultSources())
	require.NoError(t, err)

	assert.Equal(t, []string{"2024/year-in-review", "first-post", "second-post"}, store.Posts().IDs())
	assert.Equal(t, []string{"arthur", "guest"}, store.Authors().IDs())

	post, err := Get[domain.Post](store, domain.CollectionBlog, "second-post")
	require.NoError(t, err)
	updated := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, &domain.Post{
		ID:           "second-post",
		Title:        "Second post",
		Description:  "The sequel",
		PubDate:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		UpdatedDate:  &updated,
		Author:       domain.Reference{Collection: "authors", ID: "guest"},
		RelatedPosts: []domain.Reference{{Collection: "blog", ID: "first-post"}},
		Body:         "More text.",
		SourcePath:   "second-post.md",
	}, post)

	author, err := Get[domain.Author](store, domain.CollectionAuthors, "arthur")
	require.NoError(t, err)
	assert.Equal(t, "Arthur Campbell", author.Name)
	assert.Equal(t, "https://arthurcm.com", author.Portfolio)
}

func TestLoad_GetMissing(t *testing.T) {
	store, err := Load(fixture(), schema.Default(), DefaultSources())
	require.NoError(t, err)

	_, err = store.Get(domain.CollectionBlog, "nope")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = store.Get("pages", "x")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = Get[domain.Author](store, domain.CollectionBlog, "first-post")
	require.Error(t, err)
	assert.False(t, apperrors.IsNotFound(err))
}

func TestLoad_AllPreservesSourceOrder(t *testing.T) {
	store, err := Load(fixture(), schema.Default(), DefaultSources())
	require.NoError(t, err)

	all, err := store.All(domain.CollectionBlog)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024/year-in-review", all[0].(*domain.Post).ID)

	typedPosts, err := All[domain.Post](store, domain.CollectionBlog)
	require.NoError(t, err)
	assert.Equal(t, store.Posts().All(), typedPosts)
}

func TestLoad_InvalidRecordFailsWholeCollection(t *testing.T) {
	fsys := fixture()
	fsys["blog/bad.md"] = &fstest.MapFile{Data: []byte("---\ntitle: 3\n---\nbody\n")}
	fsys["authors/broken.json"] = &fstest.MapFile{Data: []byte(`{"name": "X", "portfolio": "nope"}`)}

	store, err := Load(fsys, schema.Default(), DefaultSources())
	require.Error(t, err)
	assert.Nil(t, store)

	var colErr *apperrors.CollectionError
	require.True(t, errors.As(err, &colErr))

	var vErr *apperrors.ValidationError
	require.True(t, errors.As(err, &vErr))

	var entries []string
	for _, c := range collectionErrors(err) {
		for _, r := range c.Records {
			entries = append(entries, r.Collection+"/"+r.Entry)
		}
	}
	assert.ElementsMatch(t, []string{"authors/broken", "blog/bad"}, entries)
}

func TestLoad_DuplicateSlug(t *testing.T) {
	fsys := fixture()
	fsys["blog/copy.md"] = &fstest.MapFile{Data: []byte("---\ntitle: Copy\npubDate: 2024-01-01\nauthor: arthur\nslug: first-post\n---\n")}

	_, err := Load(fsys, schema.Default(), DefaultSources())
	require.Error(t, err)

	var vErr *apperrors.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "first-post", vErr.Entry)
	assert.Equal(t, "id", vErr.Fields[0].Field)
}

func TestLoad_SlugOverrideIsNormalized(t *testing.T) {
	fsys := fixture()
	fsys["blog/draft.md"] = &fstest.MapFile{Data: []byte("---\ntitle: Mine\npubDate: 2024-03-01\nauthor: arthur\nslug: \"My  Post\"\n---\n")}
	fsys["blog/nested.md"] = &fstest.MapFile{Data: []byte("---\ntitle: Nested\npubDate: 2024-03-02\nauthor: arthur\nslug: /Notes/Deep Dive/\n---\n")}

	store, err := Load(fsys, schema.Default(), DefaultSources())
	require.NoError(t, err)

	post, err := Get[domain.Post](store, domain.CollectionBlog, "my-post")
	require.NoError(t, err)
	assert.Equal(t, "Mine", post.Title)
	assert.Equal(t, "draft.md", post.SourcePath)

	_, err = Get[domain.Post](store, domain.CollectionBlog, "notes/deep-dive")
	require.NoError(t, err)
	assert.NotContains(t, store.Posts().IDs(), "My  Post")
}

func TestLoad_MalformedSource(t *testing.T) {
	fsys := fixture()
	fsys["authors/garbled.json"] = &fstest.MapFile{Data: []byte(`{"name": `)}

	_, err := Load(fsys, schema.Default(), DefaultSources())

	var vErr *apperrors.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "garbled", vErr.Entry)
	assert.Equal(t, "(source)", vErr.Fields[0].Field)
}

func TestDeriveID(t *testing.T) {
	assert.Equal(t, "hello-world", deriveID("Hello World.md"))
	assert.Equal(t, "2024/notes/a-b", deriveID("2024/Notes/a  b.md"))
	assert.Equal(t, "arthur", deriveID("arthur.json"))
	assert.Equal(t, "my-post", normalizeID("My Post"))
	assert.Equal(t, "a/b-c", normalizeID("A/B\tC"))
}

func collectionErrors(err error) []*apperrors.CollectionError {
	var out []*apperrors.CollectionError
	if colErr, ok := err.(*apperrors.CollectionError); ok {
		return append(out, colErr)
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, collectionErrors(e)...)
		}
	}
	return out
}
