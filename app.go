// Package rocks serves a localized developer-content site built with Go,
// Echo and templ. Article templates live under a content root, one index
// template per locale; metadata about them (authors, resources, tags, a live
// banner) lives in SQLite. The package resolves request paths to templates,
// renders them with Atom feeds, JSON listings and a table of contents, and
// provides a small password-protected admin for the metadata.
package rocks

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	glog "github.com/labstack/gommon/log"

	"github.com/eringen/rocks/i18n"
)

// App is the central application. It wires together the store, cache,
// resolver, handlers, middleware and the template tree.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Store     *Store
	Cache     Cache
	Catalog   *i18n.Catalog
	Content   ContentSource
	Templates *Templates
	Resolver  *Resolver

	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	staticDir    string
	contentFS    fs.FS
	stopWatch    func() error
	ready        bool
	now          func() time.Time
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		staticDir: "static",
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Setup opens the store and cache, loads translations and templates, and
// registers middleware and routes. Start calls it; tests and the CLI call it
// directly. It is a no-op after the first successful call.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if a.Config.AdminPassword == "" {
		return errors.New("rocks: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return errors.New("rocks: SessionSecret is required")
	}
	if a.Config.Debug {
		a.Echo.Debug = true
		a.Echo.Logger.SetLevel(glog.DEBUG)
	}

	if err := a.openStore(); err != nil {
		return err
	}

	if a.Cache == nil {
		c, err := OpenCache(a.Config.CacheURL)
		if err != nil {
			return fmt.Errorf("rocks: init cache: %w", err)
		}
		a.Cache = c
	}

	if a.Catalog == nil {
		cat, err := i18n.Load(os.DirFS(a.Config.LocaleDir), a.Config.DefaultLocale)
		if err != nil {
			return fmt.Errorf("rocks: load translations: %w", err)
		}
		a.Catalog = cat
	}

	fsys := a.contentFS
	onDisk := fsys == nil
	if onDisk {
		fsys = os.DirFS(a.Config.TemplateDir)
	}
	a.Content = NewFSContent(fsys)
	a.Templates = NewTemplates(fsys)
	a.Resolver = NewResolver(a.Content, a.Store, a.Cache, a.Catalog, ResolverConfig{
		DefaultLocale: a.Config.DefaultLocale,
		BugReportURL:  a.Config.BugReportURL,
		CachePrefix:   a.Config.CachePrefix,
		ListingTTL:    a.Config.ListingCacheTTL,
	}, a.Echo.Logger)

	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if onDisk && a.Config.WatchTemplates {
		stop, err := WatchTemplates(a.Config.TemplateDir, a.reloadTemplates, a.Echo.Logger)
		if err != nil {
			return fmt.Errorf("rocks: watch templates: %w", err)
		}
		a.stopWatch = stop
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

// openStore opens the database unless a store was supplied. The load and
// drop commands use it without the rest of Setup.
func (a *App) openStore() error {
	if a.Store != nil {
		return nil
	}
	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("rocks: init store: %w", err)
	}
	a.Store = store
	return nil
}

// Start runs Setup and serves HTTP on Config.Addr.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/static", a.staticDir)
	e.GET("/favicon.ico", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)

	a.registerAPIRoutes()
	a.registerAdminRoutes()

	e.GET("/*", a.handleContent)
}

// reloadTemplates drops parsed templates and everything derived from them.
func (a *App) reloadTemplates(name string) {
	a.Templates.Reset()
	if err := a.Cache.Flush(); err != nil {
		a.Echo.Logger.Warnf("cache flush: %v", err)
	}
	a.Echo.Logger.Infof("templates reloaded after change to %s", name)
}

// flushCache invalidates every cached listing, feed and outline.
func (a *App) flushCache() {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.Flush(); err != nil {
		a.Echo.Logger.Warnf("cache flush: %v", err)
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	var errs []error
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.stopWatch != nil {
		errs = append(errs, a.stopWatch())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvBool reports whether the environment variable key is set to a true value
// ("1", "true", "yes", "on").
func EnvBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	}
	return false
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("rocks: required environment variable %s is not set", key)
	}
	return v
}
