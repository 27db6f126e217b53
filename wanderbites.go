// Package wanderbites serves a food and travel blog whose posts, authors and
// categories live in a headless CMS. It provides the pages, a search API with
// a privacy-preserving search log, a contact form, RSS, a sitemap and
// Prometheus metrics.
//
// Pages render through ViewFuncs. The views package supplies defaults; sites
// may replace any of them with their own templ components.
package wanderbites

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/eringen/wanderbites/analytics"
	"github.com/eringen/wanderbites/cache"
	"github.com/eringen/wanderbites/contact"
	"github.com/eringen/wanderbites/content"
	"github.com/eringen/wanderbites/search"
	"github.com/eringen/wanderbites/views"
)

// ViewFuncs holds the components the App calls when rendering pages.
type ViewFuncs struct {
	Home          func(views.HomePage) templ.Component
	Post          func(views.PostPage) templ.Component
	Author        func(views.AuthorPage) templ.Component
	Category      func(views.CategoryPage) templ.Component
	Search        func(views.SearchPage) templ.Component
	SearchResults func(views.SearchPage) templ.Component
	Contact       func(views.ContactPage) templ.Component
	NotFound      func(views.Page) templ.Component
	ServerError   func(views.Page) templ.Component
}

// DefaultViews returns the built-in page components.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:          views.Home,
		Post:          views.Post,
		Author:        views.Author,
		Category:      views.Category,
		Search:        views.Search,
		SearchResults: views.SearchResults,
		Contact:       views.Contact,
		NotFound:      views.NotFound,
		ServerError:   views.ServerError,
	}
}

func (v *ViewFuncs) fillDefaults() {
	d := DefaultViews()
	if v.Home == nil {
		v.Home = d.Home
	}
	if v.Post == nil {
		v.Post = d.Post
	}
	if v.Author == nil {
		v.Author = d.Author
	}
	if v.Category == nil {
		v.Category = d.Category
	}
	if v.Search == nil {
		v.Search = d.Search
	}
	if v.SearchResults == nil {
		v.SearchResults = d.SearchResults
	}
	if v.Contact == nil {
		v.Contact = d.Contact
	}
	if v.NotFound == nil {
		v.NotFound = d.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = d.ServerError
	}
}

// App is the central wanderbites application. It wires together the content
// repository, search, the search log, handlers, middleware and views.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Repo    content.Repository
	Views   ViewFuncs
	Log     zerolog.Logger
	Metrics *Metrics

	searcher       search.Searcher
	searchLog      *analytics.Store
	logHandler     *analytics.Handler
	mailer         contact.Mailer
	cacheStore     cache.Store
	searchLimiter  *RateLimiter
	contactLimiter *RateLimiter
	customRoutes   []func(*App)
	closers        []func() error
	ready          bool
}

// New creates an App with the given configuration and view functions. Nil
// view functions fall back to DefaultViews.
func New(cfg SiteConfig, vf ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()
	vf.fillDefaults()

	a := &App{
		Config:  cfg,
		Echo:    echo.New(),
		Views:   vf,
		Log:     NewLogger(cfg.Log.Level, cfg.Log.Pretty),
		Metrics: newMetrics(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens the content repository and the search log, then sets up
// middleware and routes. Start calls it; tests call it directly and drive
// a.Echo with httptest.
func (a *App) Init() error {
	if a.ready {
		return nil
	}
	if a.Repo == nil {
		if err := a.Config.Validate(); err != nil {
			return err
		}
		repo, err := a.openRepository()
		if err != nil {
			return fmt.Errorf("wanderbites: init content: %w", err)
		}
		a.Repo = repo
	} else if a.cacheStore != nil {
		a.Repo = content.NewCached(a.Repo, a.cacheStore, a.Config.Cache.TTL, a.Log)
	}
	a.searcher = search.RepositorySearcher{Repo: a.Repo}

	if a.Config.SearchLog.Enabled {
		store, err := analytics.NewStore(a.Config.SearchLog.Path)
		if err != nil {
			return fmt.Errorf("wanderbites: init search log: %w", err)
		}
		a.searchLog = store
		a.logHandler = analytics.NewHandler(store, a.Log)
		stop := store.StartCleanupScheduler(a.Config.SearchLog.RetentionDays, 24*time.Hour, a.Log)
		a.closers = append(a.closers, func() error { stop(); return nil }, store.Close)
	}

	if a.mailer == nil {
		if a.Config.SMTP.Enabled() {
			a.mailer = contact.NewSMTPMailer(a.Config.SMTP, a.Log)
		} else {
			a.mailer = contact.LogMailer{Log: a.Log}
		}
	}

	a.searchLimiter = NewRateLimiter(a.Config.Limits.SearchPerMinute, time.Minute)
	a.contactLimiter = NewRateLimiter(a.Config.Limits.ContactPerHour, time.Hour)
	a.closers = append(a.closers,
		func() error { a.searchLimiter.Stop(); return nil },
		func() error { a.contactLimiter.Stop(); return nil },
	)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

// openRepository builds the repository named by the config and wraps it in
// the configured cache.
func (a *App) openRepository() (content.Repository, error) {
	var repo content.Repository
	switch a.Config.Content.Source {
	case "sqlite":
		store, err := content.OpenSQLite(a.Config.Content.MirrorPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		repo = store
	default:
		client, err := content.NewCosmicClient(a.Config.CosmicConfig(), nil, a.Log)
		if err != nil {
			return nil, err
		}
		repo = client
	}

	store := a.cacheStore
	if store == nil {
		switch a.Config.Cache.Backend {
		case "none":
			return repo, nil
		case "redis":
			r := cache.NewRedis(a.Config.RedisConfig())
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.Ping(ctx); err != nil {
				a.Log.Warn().Err(err).Str("addr", a.Config.Cache.Redis.Addr).Msg("redis unavailable, using in-memory cache")
				_ = r.Close()
				store = a.memoryCache()
			} else {
				a.closers = append(a.closers, r.Close)
				store = r
			}
		default:
			store = a.memoryCache()
		}
	}
	return content.NewCached(repo, store, a.Config.Cache.TTL, a.Log), nil
}

// memoryCache creates an in-process cache whose sweep stops with the app.
func (a *App) memoryCache() *cache.Memory {
	m := cache.NewMemory()
	a.closers = append(a.closers, func() error { m.Stop(); return nil })
	return m
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.Config.StaticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: a.Metrics.Registry}))

	e.GET("/", a.handleHome)
	e.GET("/posts/:slug/", a.handlePost)
	e.GET("/authors/:slug/", a.handleAuthor)
	e.GET("/categories/:slug/", a.handleCategory)
	e.GET("/search/", a.handleSearchPage)
	e.GET("/contact/", a.handleContact)
	e.POST("/contact/", a.handleContactSubmit)

	e.GET("/api/search", a.handleSearchAPI, limitByIP(a.searchLimiter))
	if a.logHandler != nil {
		a.logHandler.RegisterRoutes(e)
	}
}

// Start initializes the app and serves until ctx is cancelled, then shuts
// the server down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info().Str("addr", a.Config.Addr).Str("source", a.Config.Content.Source).Msg("server starting")
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Log.Info().Msg("server shutting down")
	return a.Echo.Shutdown(shutdownCtx)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
