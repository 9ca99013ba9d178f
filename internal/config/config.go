package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Site    Site          `mapstructure:"site"`
	Content ContentConfig `mapstructure:"content"`

	// Build output
	OutputDir    string `mapstructure:"outputDir"`
	SnapshotPath string `mapstructure:"snapshotPath"`

	GitHub GitHubConfig `mapstructure:"github"`

	// Preview server
	API APIConfig `mapstructure:"api"`

	Log LogConfig `mapstructure:"log"`
}

// Site is the static site metadata handed to the feed and templates
type Site struct {
	Title       string   `mapstructure:"title"`
	Description string   `mapstructure:"description"`
	BaseURL     string   `mapstructure:"baseURL"`
	Author      Identity `mapstructure:"author"`
}

// Identity describes the site owner
type Identity struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
	URL   string `mapstructure:"url"`
}

// ContentConfig locates the content collections
type ContentConfig struct {
	Dir     string        `mapstructure:"dir"`
	Blog    PatternConfig `mapstructure:"blog"`
	Authors PatternConfig `mapstructure:"authors"`
}

// PatternConfig is a glob pattern relative to a base directory under Dir
type PatternConfig struct {
	Base    string `mapstructure:"base"`
	Pattern string `mapstructure:"pattern"`
}

// GitHubConfig configures the repository collector
type GitHubConfig struct {
	Token       string        `mapstructure:"token"`
	Username    string        `mapstructure:"username"`
	BaseURL     string        `mapstructure:"baseURL"`
	Sort        string        `mapstructure:"sort"`
	PerPage     int           `mapstructure:"perPage"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"maxAttempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// APIConfig configures the preview server
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads the configuration from an optional config file and environment
// variables. An empty path searches for sitegen.yaml in the working directory.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("sitegen")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SITEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("github.token", "SITEGEN_GITHUB_TOKEN", "GITHUB_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.title", "arthurcm.com")
	v.SetDefault("site.description", "Welcome to my blog!")
	v.SetDefault("site.baseURL", "https://arthurcm.com")
	v.SetDefault("site.author.name", "")
	v.SetDefault("site.author.email", "")
	v.SetDefault("site.author.url", "")

	v.SetDefault("content.dir", "./content")
	v.SetDefault("content.blog.base", "blog")
	v.SetDefault("content.blog.pattern", "**/[^_]*.md")
	v.SetDefault("content.authors.base", "authors")
	v.SetDefault("content.authors.pattern", "**/[^_]*.{json,yaml,yml}")

	v.SetDefault("outputDir", "./dist")
	v.SetDefault("snapshotPath", "")

	v.SetDefault("github.token", "")
	v.SetDefault("github.username", "")
	v.SetDefault("github.baseURL", "")
	v.SetDefault("github.sort", "updated")
	v.SetDefault("github.perPage", 100)
	v.SetDefault("github.timeout", 15*time.Second)
	v.SetDefault("github.maxAttempts", 3)
	v.SetDefault("github.backoff", time.Second)

	v.SetDefault("api.host", "localhost")
	v.SetDefault("api.port", "8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Snapshot returns the build snapshot path, defaulting to content.db in the
// output directory
func (c *Config) Snapshot() string {
	if c.SnapshotPath != "" {
		return c.SnapshotPath
	}
	return strings.TrimRight(c.OutputDir, "/") + "/content.db"
}

var validSorts = map[string]bool{"created": true, "updated": true, "pushed": true, "full_name": true}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Site.Title == "" {
		return &ConfigError{Field: "site.title", Message: "site title is required"}
	}
	base, err := url.Parse(c.Site.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return &ConfigError{Field: "site.baseURL", Message: "must be an absolute URL"}
	}
	if c.Content.Dir == "" {
		return &ConfigError{Field: "content.dir", Message: "content directory is required"}
	}
	if c.OutputDir == "" {
		return &ConfigError{Field: "outputDir", Message: "output directory is required"}
	}
	if !validSorts[c.GitHub.Sort] {
		return &ConfigError{Field: "github.sort", Message: "must be one of created, updated, pushed, full_name"}
	}
	if c.GitHub.PerPage < 1 || c.GitHub.PerPage > 100 {
		return &ConfigError{Field: "github.perPage", Message: "must be between 1 and 100"}
	}
	if c.GitHub.MaxAttempts < 1 {
		return &ConfigError{Field: "github.maxAttempts", Message: "must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
