package wanderbites

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/eringen/wanderbites/cache"
	"github.com/eringen/wanderbites/contact"
	"github.com/eringen/wanderbites/content"
)

//go:embed default_config.yaml
var defaultConfig []byte

// SiteConfig holds all configuration for a wanderbites site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "Wanderbites")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`      // Fallback author for JSON-LD

	Addr      string `yaml:"addr"`       // Listen address (default ":3000")
	StaticDir string `yaml:"static_dir"` // User static assets (default "public")

	Log       LogConfig       `yaml:"log"`
	Content   ContentConfig   `yaml:"content"`
	Cache     CacheConfig     `yaml:"cache"`
	SearchLog SearchLogConfig `yaml:"search_log"`
	Limits    LimitsConfig    `yaml:"limits"`

	SMTP contact.SMTPConfig `yaml:"smtp"`

	SessionSecret string `yaml:"session_secret"` // Random per process when empty
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ContentConfig selects where content is read from.
type ContentConfig struct {
	Source     string         `yaml:"source"` // cosmic or sqlite
	MirrorPath string         `yaml:"mirror_path"`
	Cosmic     CosmicSettings `yaml:"cosmic"`
}

type CosmicSettings struct {
	BaseURL    string        `yaml:"base_url"`
	BucketSlug string        `yaml:"bucket_slug"`
	ReadKey    string        `yaml:"read_key"`
	Timeout    time.Duration `yaml:"timeout"`
}

// CacheConfig configures the content response cache.
type CacheConfig struct {
	Backend string        `yaml:"backend"` // memory, redis or none
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisSettings `yaml:"redis"`
}

type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type SearchLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type LimitsConfig struct {
	SearchPerMinute int `yaml:"search_per_minute"`
	ContactPerHour  int `yaml:"contact_per_hour"`
}

// CosmicConfig returns the repository client configuration.
func (c SiteConfig) CosmicConfig() content.CosmicConfig {
	return content.CosmicConfig{
		BaseURL:    c.Content.Cosmic.BaseURL,
		BucketSlug: c.Content.Cosmic.BucketSlug,
		ReadKey:    c.Content.Cosmic.ReadKey,
		Timeout:    c.Content.Cosmic.Timeout,
	}
}

// RedisConfig returns the cache client configuration.
func (c SiteConfig) RedisConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:     c.Cache.Redis.Addr,
		Password: c.Cache.Redis.Password,
		DB:       c.Cache.Redis.DB,
		Prefix:   c.Cache.Redis.Prefix,
	}
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Wanderbites"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Content.Source == "" {
		c.Content.Source = "cosmic"
	}
	if c.Content.MirrorPath == "" {
		c.Content.MirrorPath = "data/content.db"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.SearchLog.Path == "" {
		c.SearchLog.Path = "data/search.db"
	}
	if c.SearchLog.RetentionDays == 0 {
		c.SearchLog.RetentionDays = 365
	}
	if c.Limits.SearchPerMinute == 0 {
		c.Limits.SearchPerMinute = 60
	}
	if c.Limits.ContactPerHour == 0 {
		c.Limits.ContactPerHour = 5
	}
}

// Validate checks the values New cannot default.
func (c *SiteConfig) Validate() error {
	switch c.Content.Source {
	case "cosmic":
		if c.Content.Cosmic.BucketSlug == "" || c.Content.Cosmic.ReadKey == "" {
			return errors.New("wanderbites: COSMIC_BUCKET_SLUG and COSMIC_READ_KEY are required for the cosmic content source")
		}
	case "sqlite":
	default:
		return fmt.Errorf("wanderbites: unknown content source %q (valid: cosmic, sqlite)", c.Content.Source)
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("wanderbites: unknown cache backend %q (valid: memory, redis, none)", c.Cache.Backend)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("wanderbites: log level: %w", err)
	}
	return nil
}

// LoadConfig builds a SiteConfig from the embedded defaults, the YAML file at
// path (skipped when path is empty), a .env file in the working directory and
// finally the environment.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing embedded config: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.setDefaults()
	return cfg, cfg.Validate()
}

func applyEnv(c *SiteConfig) error {
	str := map[string]*string{
		"WANDERBITES_NAME":            &c.Name,
		"WANDERBITES_URL":             &c.URL,
		"WANDERBITES_DESCRIPTION":     &c.Description,
		"WANDERBITES_ADDR":            &c.Addr,
		"WANDERBITES_STATIC_DIR":      &c.StaticDir,
		"WANDERBITES_LOG_LEVEL":       &c.Log.Level,
		"WANDERBITES_CONTENT_SOURCE":  &c.Content.Source,
		"WANDERBITES_MIRROR_PATH":     &c.Content.MirrorPath,
		"WANDERBITES_CACHE_BACKEND":   &c.Cache.Backend,
		"WANDERBITES_SEARCH_LOG_PATH": &c.SearchLog.Path,
		"WANDERBITES_SESSION_SECRET":  &c.SessionSecret,
		"COSMIC_BASE_URL":             &c.Content.Cosmic.BaseURL,
		"COSMIC_BUCKET_SLUG":          &c.Content.Cosmic.BucketSlug,
		"COSMIC_READ_KEY":             &c.Content.Cosmic.ReadKey,
		"REDIS_ADDR":                  &c.Cache.Redis.Addr,
		"REDIS_PASSWORD":              &c.Cache.Redis.Password,
		"SMTP_HOST":                   &c.SMTP.Host,
		"SMTP_PORT":                   &c.SMTP.Port,
		"SMTP_USERNAME":               &c.SMTP.Username,
		"SMTP_PASSWORD":               &c.SMTP.Password,
		"CONTACT_FROM":                &c.SMTP.From,
		"CONTACT_TO":                  &c.SMTP.To,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	flags := map[string]*bool{
		"WANDERBITES_LOG_PRETTY":         &c.Log.Pretty,
		"WANDERBITES_COOKIE_SECURE":      &c.CookieSecure,
		"WANDERBITES_SEARCH_LOG_ENABLED": &c.SearchLog.Enabled,
	}
	for key, dst := range flags {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}

	if v := os.Getenv("WANDERBITES_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WANDERBITES_CACHE_TTL: %w", err)
		}
		c.Cache.TTL = d
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithRepository replaces the content repository built from the config.
func WithRepository(repo content.Repository) Option {
	return func(a *App) {
		a.Repo = repo
	}
}

// WithCache sets the response cache wrapped around the configured
// repository, replacing the backend named in the config.
func WithCache(store cache.Store) Option {
	return func(a *App) {
		a.cacheStore = store
	}
}

// WithMailer sets the contact form mailer.
func WithMailer(m contact.Mailer) Option {
	return func(a *App) {
		a.mailer = m
	}
}

// WithLogger sets the application logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.Config.StaticDir = dir
	}
}
