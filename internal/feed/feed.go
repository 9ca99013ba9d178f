package feed

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/feeds"
	"github.com/samber/lo"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/arthurcm/sitegen/internal/config"
	"github.com/arthurcm/sitegen/internal/domain"
)

const excerptLength = 200

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Link returns the canonical URL of a post: <baseURL>/blog/<id>/
func Link(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/" + domain.CollectionBlog + "/" + id + "/"
}

// Generate projects posts into a feed. Items are ordered by publication date,
// newest first; posts published at the same instant keep their input order.
// Author and related post references are copied, not resolved.
func Generate(posts []*domain.Post, site config.Site) (*domain.Feed, error) {
	ordered := slices.Clone(posts)
	slices.SortStableFunc(ordered, func(a, b *domain.Post) int {
		return b.PubDate.Compare(a.PubDate)
	})

	items := make([]domain.FeedItem, 0, len(ordered))
	for _, p := range ordered {
		html, err := RenderMarkdown(p.Body)
		if err != nil {
			return nil, fmt.Errorf("render %s/%s: %w", domain.CollectionBlog, p.ID, err)
		}

		description := p.Description
		if description == "" {
			if description, err = Excerpt(html, excerptLength); err != nil {
				return nil, fmt.Errorf("excerpt %s/%s: %w", domain.CollectionBlog, p.ID, err)
			}
		}

		items = append(items, domain.FeedItem{
			ID:           p.ID,
			Title:        p.Title,
			Description:  description,
			Link:         Link(site.BaseURL, p.ID),
			PubDate:      p.PubDate,
			UpdatedDate:  p.UpdatedDate,
			Author:       p.Author,
			RelatedPosts: slices.Clone(p.RelatedPosts),
			Content:      html,
		})
	}

	return &domain.Feed{
		Title:       site.Title,
		Description: site.Description,
		SiteURL:     site.BaseURL,
		Items:       items,
	}, nil
}

// RenderMarkdown converts a markdown body to HTML
func RenderMarkdown(body string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Excerpt returns the visible text of an HTML fragment, cut at a word
// boundary to at most limit runes.
func Excerpt(html string, limit int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	if utf8.RuneCountInString(text) <= limit {
		return text, nil
	}

	cut := string([]rune(text)[:limit])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "…", nil
}

// WriteRSS encodes the feed as an RSS 2.0 document
func WriteRSS(w io.Writer, f *domain.Feed, author config.Identity) error {
	out := &feeds.Feed{
		Title:       f.Title,
		Link:        &feeds.Link{Href: f.SiteURL},
		Description: f.Description,
		Items: lo.Map(f.Items, func(item domain.FeedItem, _ int) *feeds.Item {
			it := &feeds.Item{
				Id:          item.Link,
				Title:       item.Title,
				Link:        &feeds.Link{Href: item.Link},
				Description: item.Description,
				Content:     item.Content,
				Created:     item.PubDate,
			}
			if item.UpdatedDate != nil {
				it.Updated = *item.UpdatedDate
			}
			return it
		}),
	}
	if author.Name != "" {
		out.Author = &feeds.Author{Name: author.Name, Email: author.Email}
	}
	if len(f.Items) > 0 {
		out.Created = f.Items[0].PubDate
	}
	return out.WriteRss(w)
}
