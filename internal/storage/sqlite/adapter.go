package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/arthurcm/sitegen/internal/domain"
	apperrors "github.com/arthurcm/sitegen/internal/errors"
	"github.com/arthurcm/sitegen/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sqlx.DB
}

type dbBuild struct {
	ID           string       `db:"id"`
	Status       string       `db:"status"`
	Posts        int          `db:"posts"`
	Authors      int          `db:"authors"`
	Repositories int          `db:"repositories"`
	StartedAt    time.Time    `db:"started_at"`
	FinishedAt   sql.NullTime `db:"finished_at"`
}

type dbAuthor struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Portfolio  string `db:"portfolio"`
	SourcePath string `db:"source_path"`
}

type dbPost struct {
	ID          string       `db:"id"`
	Title       string       `db:"title"`
	Description string       `db:"description"`
	PubDate     time.Time    `db:"pub_date"`
	UpdatedDate sql.NullTime `db:"updated_date"`
	AuthorID    string       `db:"author_id"`
	Body        string       `db:"body"`
	SourcePath  string       `db:"source_path"`
}

type dbRelated struct {
	PostID     string `db:"post_id"`
	Collection string `db:"collection"`
	TargetID   string `db:"target_id"`
}

type dbRepository struct {
	Name            string         `db:"name"`
	URL             string         `db:"url"`
	Description     sql.NullString `db:"description"`
	StarCount       int            `db:"stars"`
	ForkCount       int            `db:"forks"`
	PrimaryLanguage sql.NullString `db:"language"`
	UpdatedAt       time.Time      `db:"updated_at"`
	IsFork          bool           `db:"is_fork"`
}

// NewSQLiteStorage opens (creating if needed) the snapshot database at dbPath
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		posts INTEGER NOT NULL DEFAULT 0,
		authors INTEGER NOT NULL DEFAULT 0,
		repositories INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);

	CREATE TABLE IF NOT EXISTS authors (
		build_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		portfolio TEXT NOT NULL,
		source_path TEXT NOT NULL,
		PRIMARY KEY (build_id, id)
	);

	CREATE TABLE IF NOT EXISTS posts (
		build_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		pub_date TIMESTAMP NOT NULL,
		updated_date TIMESTAMP,
		author_id TEXT NOT NULL,
		body TEXT NOT NULL,
		source_path TEXT NOT NULL,
		PRIMARY KEY (build_id, id)
	);

	CREATE TABLE IF NOT EXISTS related_posts (
		build_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		collection TEXT NOT NULL,
		target_id TEXT NOT NULL,
		PRIMARY KEY (build_id, post_id, position)
	);

	CREATE TABLE IF NOT EXISTS repositories (
		build_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		description TEXT,
		stars INTEGER NOT NULL,
		forks INTEGER NOT NULL,
		language TEXT,
		updated_at TIMESTAMP NOT NULL,
		is_fork INTEGER NOT NULL,
		PRIMARY KEY (build_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_repositories_stars ON repositories(build_id, stars);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveBuild inserts or replaces a build row
func (s *sqliteStorage) SaveBuild(ctx context.Context, build *domain.Build) error {
	var finished interface{}
	if build.FinishedAt != nil {
		finished = build.FinishedAt.UTC()
	}

	query, args, err := sq.Insert("builds").
		Options("OR REPLACE").
		Columns("id", "status", "posts", "authors", "repositories", "started_at", "finished_at").
		Values(build.ID, string(build.Status), build.Posts, build.Authors, build.Repositories, build.StartedAt.UTC(), finished).
		ToSql()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func buildColumns() sq.SelectBuilder {
	return sq.Select("id", "status", "posts", "authors", "repositories", "started_at", "finished_at").From("builds")
}

// GetBuild returns one build by id
func (s *sqliteStorage) GetBuild(ctx context.Context, id string) (*domain.Build, error) {
	return s.getBuild(ctx, buildColumns().Where(sq.Eq{"id": id}), fmt.Sprintf("build %s", id))
}

// GetLatestBuild returns the most recently started build
func (s *sqliteStorage) GetLatestBuild(ctx context.Context) (*domain.Build, error) {
	return s.getBuild(ctx, buildColumns().OrderBy("started_at DESC", "rowid DESC").Limit(1), "build")
}

func (s *sqliteStorage) getBuild(ctx context.Context, builder sq.SelectBuilder, resource string) (*domain.Build, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var row dbBuild
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(resource)
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// ListBuilds returns up to limit builds, newest first
func (s *sqliteStorage) ListBuilds(ctx context.Context, limit int) ([]*domain.Build, error) {
	builder := buildColumns().OrderBy("started_at DESC", "rowid DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []dbBuild
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	builds := make([]*domain.Build, 0, len(rows))
	for i := range rows {
		builds = append(builds, rows[i].toDomain())
	}
	return builds, nil
}

// SaveAuthors replaces the authors of a build
func (s *sqliteStorage) SaveAuthors(ctx context.Context, buildID string, authors []*domain.Author) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteForBuild(ctx, tx, "authors", buildID); err != nil {
		return err
	}

	if len(authors) > 0 {
		insert := sq.Insert("authors").Columns("build_id", "position", "id", "name", "portfolio", "source_path")
		for i, author := range authors {
			insert = insert.Values(buildID, i, author.ID, author.Name, author.Portfolio, author.SourcePath)
		}
		if err := execBuilder(ctx, tx, insert); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetAuthors returns the authors of a build in their saved order
func (s *sqliteStorage) GetAuthors(ctx context.Context, buildID string) ([]*domain.Author, error) {
	query, args, err := sq.Select("id", "name", "portfolio", "source_path").
		From("authors").
		Where(sq.Eq{"build_id": buildID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []dbAuthor
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	authors := make([]*domain.Author, 0, len(rows))
	for _, row := range rows {
		authors = append(authors, &domain.Author{
			ID:         row.ID,
			Name:       row.Name,
			Portfolio:  row.Portfolio,
			SourcePath: row.SourcePath,
		})
	}
	return authors, nil
}

// SavePosts replaces the posts of a build, related post references included
func (s *sqliteStorage) SavePosts(ctx context.Context, buildID string, posts []*domain.Post) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"posts", "related_posts"} {
		if err := deleteForBuild(ctx, tx, table, buildID); err != nil {
			return err
		}
	}

	for i, post := range posts {
		var updated interface{}
		if post.UpdatedDate != nil {
			updated = post.UpdatedDate.UTC()
		}

		insert := sq.Insert("posts").
			Columns("build_id", "position", "id", "title", "description", "pub_date", "updated_date", "author_id", "body", "source_path").
			Values(buildID, i, post.ID, post.Title, post.Description, post.PubDate.UTC(), updated, post.Author.ID, post.Body, post.SourcePath)
		if err := execBuilder(ctx, tx, insert); err != nil {
			return fmt.Errorf("failed to save post %s: %w", post.ID, err)
		}

		if len(post.RelatedPosts) == 0 {
			continue
		}
		related := sq.Insert("related_posts").Columns("build_id", "post_id", "position", "collection", "target_id")
		for j, ref := range post.RelatedPosts {
			related = related.Values(buildID, post.ID, j, ref.Collection, ref.ID)
		}
		if err := execBuilder(ctx, tx, related); err != nil {
			return fmt.Errorf("failed to save related posts of %s: %w", post.ID, err)
		}
	}

	return tx.Commit()
}

// GetPosts returns the posts of a build in their saved order
func (s *sqliteStorage) GetPosts(ctx context.Context, buildID string) ([]*domain.Post, error) {
	query, args, err := sq.Select("id", "title", "description", "pub_date", "updated_date", "author_id", "body", "source_path").
		From("posts").
		Where(sq.Eq{"build_id": buildID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []dbPost
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	related, err := s.relatedPosts(ctx, buildID)
	if err != nil {
		return nil, err
	}

	posts := make([]*domain.Post, 0, len(rows))
	for _, row := range rows {
		post := &domain.Post{
			ID:           row.ID,
			Title:        row.Title,
			Description:  row.Description,
			PubDate:      row.PubDate,
			Author:       domain.Reference{Collection: domain.CollectionAuthors, ID: row.AuthorID},
			RelatedPosts: related[row.ID],
			Body:         row.Body,
			SourcePath:   row.SourcePath,
		}
		if post.RelatedPosts == nil {
			post.RelatedPosts = []domain.Reference{}
		}
		if row.UpdatedDate.Valid {
			updated := row.UpdatedDate.Time
			post.UpdatedDate = &updated
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *sqliteStorage) relatedPosts(ctx context.Context, buildID string) (map[string][]domain.Reference, error) {
	query, args, err := sq.Select("post_id", "collection", "target_id").
		From("related_posts").
		Where(sq.Eq{"build_id": buildID}).
		OrderBy("post_id", "position").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []dbRelated
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	related := make(map[string][]domain.Reference)
	for _, row := range rows {
		related[row.PostID] = append(related[row.PostID], domain.Reference{Collection: row.Collection, ID: row.TargetID})
	}
	return related, nil
}

// SaveRepositories replaces the repository listing of a build
func (s *sqliteStorage) SaveRepositories(ctx context.Context, buildID string, repos []*domain.Repository) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteForBuild(ctx, tx, "repositories", buildID); err != nil {
		return err
	}

	if len(repos) > 0 {
		insert := sq.Insert("repositories").
			Columns("build_id", "position", "name", "url", "description", "stars", "forks", "language", "updated_at", "is_fork")
		for i, repo := range repos {
			insert = insert.Values(buildID, i, repo.Name, repo.URL, nullString(repo.Description),
				repo.StarCount, repo.ForkCount, nullString(repo.PrimaryLanguage), repo.UpdatedAt.UTC(), repo.IsFork)
		}
		if err := execBuilder(ctx, tx, insert); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRepositories returns the repositories of a build in their saved order
func (s *sqliteStorage) GetRepositories(ctx context.Context, buildID string) ([]*domain.Repository, error) {
	query, args, err := sq.Select("name", "url", "description", "stars", "forks", "language", "updated_at", "is_fork").
		From("repositories").
		Where(sq.Eq{"build_id": buildID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []dbRepository
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	repos := make([]*domain.Repository, 0, len(rows))
	for _, row := range rows {
		repos = append(repos, &domain.Repository{
			Name:            row.Name,
			URL:             row.URL,
			Description:     stringPtr(row.Description),
			StarCount:       row.StarCount,
			ForkCount:       row.ForkCount,
			PrimaryLanguage: stringPtr(row.PrimaryLanguage),
			UpdatedAt:       row.UpdatedAt,
			IsFork:          row.IsFork,
		})
	}
	return repos, nil
}

// Close closes the database connection
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

func deleteForBuild(ctx context.Context, tx *sqlx.Tx, table, buildID string) error {
	return execBuilder(ctx, tx, sq.Delete(table).Where(sq.Eq{"build_id": buildID}))
}

func execBuilder(ctx context.Context, tx *sqlx.Tx, builder sq.Sqlizer) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func (b dbBuild) toDomain() *domain.Build {
	build := &domain.Build{
		ID:           b.ID,
		Status:       domain.BuildStatus(b.Status),
		Posts:        b.Posts,
		Authors:      b.Authors,
		Repositories: b.Repositories,
		StartedAt:    b.StartedAt,
	}
	if b.FinishedAt.Valid {
		finished := b.FinishedAt.Time
		build.FinishedAt = &finished
	}
	return build
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
