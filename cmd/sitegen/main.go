package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/arthurcm/sitegen/internal/aggregator"
	"github.com/arthurcm/sitegen/internal/builder"
	"github.com/arthurcm/sitegen/internal/collector"
	"github.com/arthurcm/sitegen/internal/config"
	"github.com/arthurcm/sitegen/internal/domain"
	"github.com/arthurcm/sitegen/internal/logging"
	"github.com/arthurcm/sitegen/internal/reference"
	"github.com/arthurcm/sitegen/internal/storage/sqlite"
)

var (
	cfgFile    string
	outputJSON bool
	strict     bool
	skipRepos  bool
	limit      int
)

var rootCmd = &cobra.Command{
	Use:   "sitegen",
	Short: "Personal site content pipeline",
	Long: `A CLI tool for building the content of a personal site.

It validates the blog and author collections, checks the references between
them, writes the RSS feed and template indexes, and collects the public
GitHub repositories shown on the site.`,
	SilenceUsage: true,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the site content",
	Long:  `Load and validate all content, then write rss.xml, posts.json, repos.json and the build snapshot to the output directory.`,
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate content and references",
	Long:  `Load every collection and verify every reference without writing anything.`,
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List blog posts",
	Long:  `Display every blog post with its resolved author.`,
	Args:  cobra.NoArgs,
	RunE:  runPosts,
}

var reposCmd = &cobra.Command{
	Use:   "repos [username]",
	Short: "Show showcase repositories",
	Long:  `Fetch a user's public repositories and display the non-fork ones, most starred first.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRepos,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [snapshot]",
	Short: "Inspect a build snapshot",
	Long:  `Display the latest build recorded in a snapshot database and what it contained.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sitegen.yaml)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	buildCmd.Flags().BoolVar(&strict, "strict", false, "fail the build when repositories cannot be fetched")
	buildCmd.Flags().BoolVar(&skipRepos, "skip-repos", false, "do not fetch repositories")
	reposCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of repositories to show")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(postsCmd)
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format), nil
}

func newCollector(cfg *config.Config, logger *slog.Logger, rl collector.RateLimiter) (collector.Collector, error) {
	coll, err := collector.NewGitHubCollector(collector.Options{
		Token:       cfg.GitHub.Token,
		BaseURL:     cfg.GitHub.BaseURL,
		RateLimiter: rl,
		Logger:      logger.With("component", "collector"),
	})
	if err != nil {
		return nil, err
	}
	return collector.WithRetry(coll, collector.RetryPolicy{
		MaxAttempts: cfg.GitHub.MaxAttempts,
		Timeout:     cfg.GitHub.Timeout,
		Backoff:     cfg.GitHub.Backoff,
	}, logger), nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	coll, err := newCollector(cfg, logger, nil)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	store, err := sqlite.NewSQLiteStorage(cfg.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	b := builder.New(cfg, builder.Deps{Collector: coll, Storage: store, Logger: logger})
	result, err := b.Run(cmd.Context(), builder.RunOptions{Strict: strict, SkipRepos: skipRepos})
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(result.Build)
	}

	fmt.Printf("\nBuild %s completed\n\n", result.Build.ID)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Output", "Value"})
	table.Append([]string{"Posts", fmt.Sprintf("%d", result.Build.Posts)})
	table.Append([]string{"Authors", fmt.Sprintf("%d", result.Build.Authors)})
	table.Append([]string{"Repositories", fmt.Sprintf("%d", result.Build.Repositories)})
	table.Append([]string{"Output Directory", cfg.OutputDir})
	table.Append([]string{"Snapshot", cfg.Snapshot()})
	table.Render()

	if result.RepoErr != nil {
		fmt.Printf("\nWarning: repositories unavailable: %v\n", result.RepoErr)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	b := builder.New(cfg, builder.Deps{Logger: logger})
	store, err := b.LoadContent()
	if err != nil {
		return err
	}

	fmt.Printf("%d posts and %d authors are valid\n", store.Posts().Len(), store.Authors().Len())
	return nil
}

func runPosts(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	store, err := builder.New(cfg, builder.Deps{Logger: logger}).LoadContent()
	if err != nil {
		return err
	}

	if outputJSON {
		views, err := builder.ResolvePosts(store, cfg.Site.BaseURL)
		if err != nil {
			return err
		}
		return printJSON(views)
	}

	resolver := reference.NewResolver(store)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Title", "Published", "Author", "Related"})
	for _, post := range store.Posts().All() {
		author, err := resolver.Author(post)
		if err != nil {
			return err
		}
		table.Append([]string{
			post.ID,
			post.Title,
			post.PubDate.Format("2006-01-02"),
			author.Name,
			fmt.Sprintf("%d", len(post.RelatedPosts)),
		})
	}
	table.Render()
	return nil
}

func runRepos(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	username := cfg.GitHub.Username
	if len(args) == 1 {
		username = args[0]
	}
	if username == "" {
		return errors.New("no username given and github.username is not configured")
	}

	rl := collector.NewRateLimiter(logger)
	coll, err := newCollector(cfg, logger, rl)
	if err != nil {
		return err
	}

	repos, err := builder.New(cfg, builder.Deps{Collector: coll, Logger: logger}).FetchShowcase(cmd.Context(), username)
	if err != nil {
		return fmt.Errorf("failed to get repositories: %w", err)
	}
	summary := aggregator.Summarize(repos)
	if limit > 0 && limit < len(repos) {
		repos = repos[:limit]
	}

	if outputJSON {
		return printJSON(builder.Showcase{Username: username, Summary: summary, Repositories: repos})
	}

	fmt.Printf("\nRepositories: %s\n\n", username)
	printRepositories(repos)
	fmt.Printf("\n%d repositories, %d stars, %d forks\n", summary.Repositories, summary.Stars, summary.Forks)
	if remaining, reset, err := rl.CheckLimit(); err == nil {
		fmt.Printf("GitHub API quota: %d requests remaining, resets %s\n", remaining, reset.Local().Format("15:04:05"))
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	path := cfg.Snapshot()
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("snapshot %s: %w", path, err)
	}

	store, err := sqlite.NewSQLiteStorage(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	build, err := store.GetLatestBuild(ctx)
	if err != nil {
		return err
	}
	posts, err := store.GetPosts(ctx, build.ID)
	if err != nil {
		return err
	}
	repos, err := store.GetRepositories(ctx, build.ID)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(struct {
			Build        *domain.Build        `json:"build"`
			Posts        []*domain.Post       `json:"posts"`
			Repositories []*domain.Repository `json:"repositories"`
		}{build, posts, repos})
	}

	finished := "-"
	if build.FinishedAt != nil {
		finished = build.FinishedAt.Format("2006-01-02 15:04:05")
	}

	fmt.Printf("\nBuild: %s\n\n", build.ID)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Status", string(build.Status)})
	table.Append([]string{"Started", build.StartedAt.Format("2006-01-02 15:04:05")})
	table.Append([]string{"Finished", finished})
	table.Append([]string{"Posts", fmt.Sprintf("%d", build.Posts)})
	table.Append([]string{"Authors", fmt.Sprintf("%d", build.Authors)})
	table.Append([]string{"Repositories", fmt.Sprintf("%d", build.Repositories)})
	table.Render()

	if len(posts) > 0 {
		fmt.Println("\nPosts")
		postTable := tablewriter.NewWriter(os.Stdout)
		postTable.SetHeader([]string{"ID", "Title", "Published", "Author"})
		for _, p := range posts {
			postTable.Append([]string{p.ID, p.Title, p.PubDate.Format("2006-01-02"), p.Author.ID})
		}
		postTable.Render()
	}

	if len(repos) > 0 {
		fmt.Println("\nRepositories")
		printRepositories(repos)
	}
	return nil
}

func printRepositories(repos []*domain.Repository) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Repository", "Stars", "Forks", "Language", "Updated"})
	for _, r := range repos {
		language := "-"
		if r.PrimaryLanguage != nil {
			language = *r.PrimaryLanguage
		}
		table.Append([]string{
			r.Name,
			fmt.Sprintf("%d", r.StarCount),
			fmt.Sprintf("%d", r.ForkCount),
			language,
			r.UpdatedAt.Format("2006-01-02"),
		})
	}
	table.Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
