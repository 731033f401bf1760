package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/travelogue/internal/cache"
	"github.com/starford/travelogue/internal/library"
	"github.com/starford/travelogue/internal/librarysync"
	"github.com/starford/travelogue/internal/logging"
	"github.com/starford/travelogue/internal/source"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Source drivers.
const (
	SourceFlickr = "flickr"
	SourceFile   = "file"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Auth    AuthConfig        `yaml:"auth"`
	Cache   CacheConfig       `yaml:"cache"`
	Source  SourceConfig      `yaml:"source"`
	Library LibraryConfig     `yaml:"library"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	return c.Library.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level    `yaml:"log_level"`
	LogFile  LogFileConfig `yaml:"log_file"`
	HTTP     HTTPConfig    `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.LogFile.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// LogFileConfig enables rotating file output when Path is set.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Validate validates the log file configuration.
func (c *LogFileConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// Options converts the section for the logging package.
func (c *LogFileConfig) Options() logging.FileOptions {
	return logging.FileOptions{
		Path:       c.Path,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig guards the admin endpoints.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): admin endpoints are open, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// CacheConfig selects the cache provider.
type CacheConfig struct {
	Driver          string        `yaml:"driver"`
	Path            string        `yaml:"path"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectDelay    time.Duration `yaml:"connect_delay"`
	MemoryCapacity  int           `yaml:"memory_capacity"`
	MemoryTTL       time.Duration `yaml:"memory_ttl"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(cache.DriverMemory, cache.DriverSQLite, cache.DriverBadger)),
		validation.Field(&c.Path, validation.When(c.Driver != cache.DriverMemory, validation.Required)),
		validation.Field(&c.ConnectAttempts, validation.Min(1)),
		validation.Field(&c.MemoryCapacity, validation.Min(0)),
	)
}

// Options converts the section for cache.Open.
func (c *CacheConfig) Options() cache.Options {
	return cache.Options{
		Driver:          c.Driver,
		Path:            c.Path,
		ConnectAttempts: c.ConnectAttempts,
		ConnectDelay:    c.ConnectDelay,
		MemoryCapacity:  c.MemoryCapacity,
		MemoryTTL:       c.MemoryTTL,
	}
}

// SourceConfig selects and tunes the photo host client.
type SourceConfig struct {
	Driver       string           `yaml:"driver"`
	Timeout      time.Duration    `yaml:"timeout"`
	RateInterval time.Duration    `yaml:"rate_interval"`
	Breaker      BreakerConfig    `yaml:"breaker"`
	Flickr       FlickrConfig     `yaml:"flickr"`
	File         FileSourceConfig `yaml:"file"`
}

// BreakerConfig tunes the circuit breaker around the source.
type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// FlickrConfig holds the Flickr API credentials.
type FlickrConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	UserID   string `yaml:"user_id"`
}

// FileSourceConfig points at an exported fixture directory.
type FileSourceConfig struct {
	Dir      string        `yaml:"dir"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(SourceFlickr, SourceFile)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RateInterval, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	switch c.Driver {
	case SourceFlickr:
		return validation.ValidateStruct(&c.Flickr,
			validation.Field(&c.Flickr.APIKey, validation.Required),
			validation.Field(&c.Flickr.UserID, validation.Required),
		)
	case SourceFile:
		return validation.ValidateStruct(&c.File,
			validation.Field(&c.File.Dir, validation.Required),
		)
	}
	return nil
}

// FlickrOptions converts the section for source.NewFlickr.
func (c *SourceConfig) FlickrOptions() source.FlickrConfig {
	return source.FlickrConfig{
		Endpoint: c.Flickr.Endpoint,
		APIKey:   c.Flickr.APIKey,
		UserID:   c.Flickr.UserID,
		Timeout:  c.Timeout,
	}
}

// ResilientOptions converts the section for source.NewResilient.
func (c *SourceConfig) ResilientOptions() source.ResilientConfig {
	return source.ResilientConfig{
		Name:             c.Driver,
		Interval:         c.RateInterval,
		FailureThreshold: c.Breaker.FailureThreshold,
		OpenTimeout:      c.Breaker.OpenTimeout,
	}
}

// LibraryConfig holds library building and cache layout settings.
type LibraryConfig struct {
	Separator      string              `yaml:"separator"`
	RetryDelay     time.Duration       `yaml:"retry_delay"`
	SyntheticPosts []library.Synthetic `yaml:"synthetic_posts"`
	LibraryKey     string              `yaml:"library_key"`
	TreeField      string              `yaml:"tree_field"`
	PhotoTagsKey   string              `yaml:"photo_tags_key"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Separator, validation.Required),
		validation.Field(&c.RetryDelay, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.LibraryKey, validation.Required),
		validation.Field(&c.TreeField, validation.Required),
		validation.Field(&c.PhotoTagsKey, validation.Required, validation.NotIn(c.LibraryKey)),
	); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.SyntheticPosts))
	for i, s := range c.SyntheticPosts {
		if s.ID == "" || s.Title == "" {
			return fmt.Errorf("library: synthetic post %d needs id and title", i)
		}
		if s.ID == c.TreeField {
			return fmt.Errorf("library: synthetic post id %q collides with tree field", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("library: duplicate synthetic post id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// SyncConfig converts the section for librarysync.New.
func (c *LibraryConfig) SyncConfig() librarysync.Config {
	return librarysync.Config{
		LibraryKey:   c.LibraryKey,
		TreeField:    c.TreeField,
		PhotoTagsKey: c.PhotoTagsKey,
		RetryDelay:   c.RetryDelay,
		Build: library.Options{
			Separator: c.Separator,
			Synthetic: c.SyntheticPosts,
		},
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			LogFile: LogFileConfig{
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Cache: CacheConfig{
			Driver:          cache.DriverSQLite,
			Path:            "./travelogue-cache.db",
			ConnectAttempts: 3,
			ConnectDelay:    2 * time.Second,
		},
		Source: SourceConfig{
			Driver:       SourceFlickr,
			Timeout:      30 * time.Second,
			RateInterval: 250 * time.Millisecond,
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				OpenTimeout:      30 * time.Second,
			},
			Flickr: FlickrConfig{
				Endpoint: source.DefaultFlickrEndpoint,
			},
			File: FileSourceConfig{
				Debounce: source.DefaultDebounce,
			},
		},
		Library: LibraryConfig{
			Separator:  library.DefaultSeparator,
			RetryDelay: 10 * time.Second,
			SyntheticPosts: []library.Synthetic{
				{ID: "feature", Title: "Featured"},
				{ID: "ruminations", Title: "Ruminations"},
			},
			LibraryKey:   "library",
			TreeField:    "tree",
			PhotoTagsKey: "photoTags",
		},
	}
}
