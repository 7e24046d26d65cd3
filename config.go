package rocks

import (
	"io/fs"
	"time"

	"github.com/eringen/rocks/i18n"
)

const (
	dateLayout       = "2006-01-02"
	liveBannerWindow = 60 * time.Minute

	feedResultsLimit   = 20
	whatsNewLimit      = 10
	tocCacheTTL        = time.Hour
	feedCacheTTL       = 24 * time.Hour
	defaultListingTTL  = time.Hour
	defaultCachePrefix = "rocks"
)

// SiteConfig holds all configuration for a site.
type SiteConfig struct {
	Name        string // Feed title (default "HTML5 Rocks - Posts & Tutorials")
	URL         string // Canonical URL used by the sitemap (default "http://localhost:8080")
	Description string // Feed subtitle

	Addr         string // Listen address (default ":8080")
	DatabasePath string // SQLite path (default "data/rocks.db")
	TemplateDir  string // Template root on disk (default "templates")
	LocaleDir    string // Translation catalogs (default "locale")
	DataDir      string // YAML fixtures for the load commands (default "database")

	CacheURL        string        // "" or "memory" for in-process, "memcache://host1,host2" for memcached
	CachePrefix     string        // Key prefix (default "rocks")
	ListingCacheTTL time.Duration // Resource listing TTL (default 1h)

	DefaultLocale string // Locale used for unprefixed paths (default "en")
	BugReportURL  string // Target of /new-bug

	AdminPassword string // Required: admin login password
	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	Prod           bool // Disables fixture loading and dropping
	Debug          bool // Show raw error pages instead of the 500 template
	WatchTemplates bool // Reload templates and flush the cache on changes under TemplateDir
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "HTML5 Rocks - Posts & Tutorials"
	}
	if c.Description == "" {
		c.Description = "A resource for developers looking to put HTML5 to use today, including information on specific features and when to use them in your apps."
	}
	if c.URL == "" {
		c.URL = "http://localhost:8080"
	}
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/rocks.db"
	}
	if c.TemplateDir == "" {
		c.TemplateDir = "templates"
	}
	if c.LocaleDir == "" {
		c.LocaleDir = "locale"
	}
	if c.DataDir == "" {
		c.DataDir = "database"
	}
	if c.CachePrefix == "" {
		c.CachePrefix = defaultCachePrefix
	}
	if c.ListingCacheTTL == 0 {
		c.ListingCacheTTL = defaultListingTTL
	}
	if c.DefaultLocale == "" {
		c.DefaultLocale = "en"
	}
	if c.BugReportURL == "" {
		c.BugReportURL = "https://github.com/html5rocks/www.html5rocks.com/issues/new"
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for static assets (default "static").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithContent serves templates from fsys instead of Config.TemplateDir.
// Watching is disabled for non-disk file systems.
func WithContent(fsys fs.FS) Option {
	return func(a *App) {
		a.contentFS = fsys
	}
}

// WithCache replaces the cache backend selected by Config.CacheURL.
func WithCache(c Cache) Option {
	return func(a *App) {
		a.Cache = c
	}
}

// WithStore uses an already opened store instead of Config.DatabasePath.
func WithStore(s *Store) Option {
	return func(a *App) {
		a.Store = s
	}
}

// WithCatalog uses cat instead of loading translations from Config.LocaleDir.
func WithCatalog(cat *i18n.Catalog) Option {
	return func(a *App) {
		a.Catalog = cat
	}
}

// WithClock overrides the time source used for the live banner window.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}
