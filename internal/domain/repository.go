package domain

import "time"

// Repository represents a GitHub repository as listed on a user profile.
// Records are read-only copies of one API response.
type Repository struct {
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	Description     *string   `json:"description,omitempty"`
	StarCount       int       `json:"starCount"`
	ForkCount       int       `json:"forkCount"`
	PrimaryLanguage *string   `json:"primaryLanguage,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
	IsFork          bool      `json:"isFork"`
}

// LanguageCount is the number of repositories using one primary language
type LanguageCount struct {
	Language     string `json:"language"`
	Repositories int    `json:"repositories"`
}

// ProfileSummary holds display totals for a set of repositories
type ProfileSummary struct {
	Repositories int             `json:"repositories"`
	Stars        int             `json:"stars"`
	Forks        int             `json:"forks"`
	Languages    []LanguageCount `json:"languages"`
}
