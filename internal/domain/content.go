package domain

import "time"

// Collection names
const (
	CollectionBlog    = "blog"
	CollectionAuthors = "authors"
)

// Reference points at a record of another collection by id
type Reference struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func (r Reference) String() string {
	return r.Collection + "/" + r.ID
}

// Post is a blog entry loaded from a markdown file
type Post struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	PubDate      time.Time   `json:"pubDate"`
	UpdatedDate  *time.Time  `json:"updatedDate,omitempty"`
	Author       Reference   `json:"author"`
	RelatedPosts []Reference `json:"relatedPosts"`
	Body         string      `json:"-"`
	SourcePath   string      `json:"-"`
}

// Author is a post author loaded from a structured data file
type Author struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Portfolio  string `json:"portfolio"`
	SourcePath string `json:"-"`
}
