// Package aggregator turns a fetched repository listing into the list shown
// on the site. Every function is pure: inputs are never modified.
package aggregator

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/arthurcm/sitegen/internal/domain"
)

// FilterNonForks returns the repositories that are not forks, in input order
func FilterNonForks(repos []*domain.Repository) []*domain.Repository {
	return lo.Filter(repos, func(repo *domain.Repository, _ int) bool {
		return !repo.IsFork
	})
}

// SortByStars returns a new slice ordered by StarCount, highest first. Ties
// keep their input order.
func SortByStars(repos []*domain.Repository) []*domain.Repository {
	sorted := slices.Clone(repos)
	slices.SortStableFunc(sorted, func(a, b *domain.Repository) int {
		return cmp.Compare(b.StarCount, a.StarCount)
	})
	return sorted
}

// Showcase applies the display pipeline: forks dropped, most starred first
func Showcase(repos []*domain.Repository) []*domain.Repository {
	return SortByStars(FilterNonForks(repos))
}

// Summarize totals stars and forks and counts repositories per primary
// language. Languages are ordered by count, then name; repositories without
// a language are not counted.
func Summarize(repos []*domain.Repository) domain.ProfileSummary {
	summary := domain.ProfileSummary{
		Repositories: len(repos),
		Languages:    []domain.LanguageCount{},
	}

	byLanguage := make(map[string]int)
	for _, repo := range repos {
		summary.Stars += repo.StarCount
		summary.Forks += repo.ForkCount
		if repo.PrimaryLanguage != nil && *repo.PrimaryLanguage != "" {
			byLanguage[*repo.PrimaryLanguage]++
		}
	}

	for language, count := range byLanguage {
		summary.Languages = append(summary.Languages, domain.LanguageCount{
			Language:     language,
			Repositories: count,
		})
	}
	slices.SortFunc(summary.Languages, func(a, b domain.LanguageCount) int {
		if c := cmp.Compare(b.Repositories, a.Repositories); c != 0 {
			return c
		}
		return cmp.Compare(a.Language, b.Language)
	})

	return summary
}
