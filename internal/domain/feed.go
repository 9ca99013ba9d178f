package domain

import "time"

// Feed is the syndication projection of the blog collection
type Feed struct {
	Title       string
	Description string
	SiteURL     string
	Items       []FeedItem
}

// FeedItem is one post in the feed. References are left unresolved.
type FeedItem struct {
	ID           string
	Title        string
	Description  string
	Link         string
	PubDate      time.Time
	UpdatedDate  *time.Time
	Author       Reference
	RelatedPosts []Reference
	Content      string
}
