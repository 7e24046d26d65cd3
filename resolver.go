package rocks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/eringen/rocks/i18n"
)

var (
	localeRe         = regexp.MustCompile(`^/(\w{2,3})(?:/|$)`)
	redirectLocaleRe = regexp.MustCompile(`^[a-zA-Z]{2,3}$`)
	articleRe        = regexp.MustCompile(`^(?:tutorials|mobile|gaming|business)/.+`)
	legacyArticleRe  = regexp.MustCompile(`^(mobile|tutorials/casestudies)/([a-z_0-9-]+)\.html$`)
)

// sections have an index template at content/<section>/index.html.
var sections = map[string]bool{
	"mobile":    true,
	"tutorials": true,
	"features":  true,
	"gaming":    true,
	"business":  true,
}

// taggedSections list only the resources tagged with the section name.
var taggedSections = map[string]bool{
	"mobile":   true,
	"gaming":   true,
	"business": true,
}

const (
	fallbackLocale       = "en"
	artifactDir          = "static"
	localeFallbackNotice = "Sorry, this article isn't available in your native language; we've redirected you to the English version."
)

// Repository is the read side of the content store.
type Repository interface {
	FindResourceByURL(ctx context.Context, url string) (Resource, error)
	ListResources(ctx context.Context, q ResourceQuery) ([]Resource, error)
	ListAuthors(ctx context.Context) ([]Author, error)
	LatestLiveData(ctx context.Context) (LiveData, error)
}

// OutcomeKind tells the renderer what to do with an Outcome.
type OutcomeKind int

const (
	OutcomeRender OutcomeKind = iota
	OutcomeRedirect
	OutcomeNotFound
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRender:
		return "render"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeNotFound:
		return "not-found"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of resolving a request path.
type Outcome struct {
	Kind OutcomeKind
	// Step names the resolution step that produced the outcome.
	Step string

	// Render
	Template    string
	Data        map[string]any
	RelPath     string
	ContentType string
	Resource    *Resource

	// Redirect
	Location  string
	Permanent bool

	// Localizer is the active locale, nil before a locale was established.
	Localizer *i18n.Localizer
}

// Request is the part of an HTTP request the resolver looks at.
type Request struct {
	Path               string // URL path with leading slash
	RawQuery           string
	RedirectFromLocale string
	// NoCache bypasses the cache for lookups made while resolving.
	NoCache bool
}

// IsFeed reports whether the request asks for an Atom feed.
func (r Request) IsFeed() bool {
	return strings.HasSuffix(r.Path, ".xml")
}

type debugLogger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

// ResolverConfig carries the settings the resolver needs from SiteConfig.
type ResolverConfig struct {
	DefaultLocale string
	BugReportURL  string
	CachePrefix   string
	ListingTTL    time.Duration
}

// Resolver maps request paths to templates and data. Steps run in order and
// the first one returning an outcome wins.
type Resolver struct {
	content ContentSource
	repo    Repository
	cache   Cache
	catalog *i18n.Catalog
	cfg     ResolverConfig
	log     debugLogger
	steps   []resolveStep
}

type resolveStep struct {
	name string
	fn   func(ctx context.Context, rs *resolution) (*Outcome, error)
}

// resolution is the per-request state threaded through the steps.
type resolution struct {
	req      Request
	locale   string
	loc      *i18n.Localizer
	rel      string // request path without leading slash, then without locale
	template string
	notice   *LocaleNotice
}

// NewResolver creates a Resolver. log may be nil.
func NewResolver(content ContentSource, repo Repository, cache Cache, catalog *i18n.Catalog, cfg ResolverConfig, log debugLogger) *Resolver {
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = fallbackLocale
	}
	if cfg.CachePrefix == "" {
		cfg.CachePrefix = defaultCachePrefix
	}
	if cfg.ListingTTL == 0 {
		cfg.ListingTTL = defaultListingTTL
	}
	if log == nil {
		log = nopLogger{}
	}
	r := &Resolver{
		content: content,
		repo:    repo,
		cache:   cache,
		catalog: catalog,
		cfg:     cfg,
		log:     log,
	}
	r.steps = []resolveStep{
		{"special", r.resolveSpecial},
		{"locale-missing", r.resolveMissingLocale},
		{"locale-slash", r.resolveLocaleSlash},
		{"activate", r.activate},
		{"profiles", r.resolveProfiles},
		{"article", r.resolveArticle},
		{"listing", r.resolveListing},
		{"extension", r.resolveExtension},
		{"feature", r.resolveFeature},
	}
	return r
}

// Resolve runs the resolution steps for req.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Outcome, error) {
	rs := &resolution{req: req, rel: strings.TrimPrefix(req.Path, "/")}
	for _, st := range r.steps {
		out, err := st.fn(ctx, rs)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %s: %w", req.Path, st.name, err)
		}
		if out != nil {
			out.Step = st.name
			if out.Localizer == nil {
				out.Localizer = rs.loc
			}
			return out, nil
		}
	}
	return &Outcome{Kind: OutcomeNotFound, Step: "none", Localizer: rs.loc}, nil
}

// Localizer returns the translator for code.
func (r *Resolver) Localizer(code string) *i18n.Localizer {
	return r.catalog.Localizer(code)
}

func redirect(location string, permanent bool) *Outcome {
	return &Outcome{Kind: OutcomeRedirect, Location: location, Permanent: permanent}
}

func (rs *resolution) render(template string, data map[string]any) *Outcome {
	return &Outcome{Kind: OutcomeRender, Template: template, Data: data, RelPath: rs.rel}
}

func (r *Resolver) resolveSpecial(ctx context.Context, rs *resolution) (*Outcome, error) {
	switch rs.rel {
	case "new-bug":
		return redirect(r.cfg.BugReportURL, false), nil
	case "humans.txt":
		profiles, err := r.profiles(ctx, rs.req.NoCache)
		if err != nil {
			return nil, err
		}
		out := rs.render("content/humans.txt", map[string]any{
			"sorted_profiles": profiles,
			"profile_amount":  len(profiles),
		})
		out.ContentType = "text/plain; charset=utf-8"
		out.Localizer = r.catalog.Localizer(r.cfg.DefaultLocale)
		return out, nil
	}
	return nil, nil
}

func (r *Resolver) resolveMissingLocale(ctx context.Context, rs *resolution) (*Outcome, error) {
	m := localeRe.FindStringSubmatch(rs.req.Path)
	if m == nil {
		return redirect("/"+r.cfg.DefaultLocale+"/"+rs.rel, true), nil
	}
	rs.locale = m[1]
	return nil, nil
}

func (r *Resolver) resolveLocaleSlash(ctx context.Context, rs *resolution) (*Outcome, error) {
	if !strings.HasPrefix(rs.rel, rs.locale+"/") {
		return redirect("/"+rs.locale+"/", true), nil
	}
	return nil, nil
}

// activate establishes the locale, the relative path and the template path.
// It never produces an outcome.
func (r *Resolver) activate(ctx context.Context, rs *resolution) (*Outcome, error) {
	rs.loc = r.catalog.Localizer(rs.locale)
	rs.rel = strings.TrimPrefix(rs.rel, rs.locale+"/")
	r.log.Debugf("resolve: relpath %q locale %q", rs.rel, rs.locale)

	if from := rs.req.RedirectFromLocale; redirectLocaleRe.MatchString(from) {
		rs.notice = &LocaleNotice{
			Lang: from,
			Msg:  r.catalog.Localizer(from).T(localeFallbackNotice),
		}
	}

	if rs.rel == "" || strings.HasSuffix(rs.rel, "/") || sections[rs.rel] {
		rs.template = path.Join("content", rs.rel, "index.html")
	} else {
		rs.template = path.Join("content", rs.rel)
	}
	return nil, nil
}

func (r *Resolver) resolveProfiles(ctx context.Context, rs *resolution) (*Outcome, error) {
	if rs.rel != "profiles" && rs.rel != "profiles/" {
		return nil, nil
	}
	profiles, err := r.profiles(ctx, rs.req.NoCache)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		res, err := r.resources(ctx, ResourceQuery{AuthorID: profiles[i].ID}, rs.req.NoCache)
		if err != nil {
			return nil, err
		}
		profiles[i].Resources = res
	}
	return rs.render("content/profiles.html", map[string]any{
		"sorted_profiles": profiles,
	}), nil
}

func (r *Resolver) resolveArticle(ctx context.Context, rs *resolution) (*Outcome, error) {
	if !articleRe.MatchString(rs.rel) || rs.req.IsFeed() {
		return nil, nil
	}
	if m := legacyArticleRe.FindStringSubmatch(rs.rel); m != nil {
		return redirect(fmt.Sprintf("/%s/%s/%s/", rs.locale, m[1], m[2]), false), nil
	}
	if !strings.HasSuffix(rs.rel, "/") && !strings.HasSuffix(rs.rel, ".html") {
		target := rs.req.Path + "/"
		if rs.req.RawQuery != "" {
			target += "?" + rs.req.RawQuery
		}
		return redirect(target, false), nil
	}

	dir, filename := path.Dir(rs.template), path.Base(rs.template)
	localized := path.Join(dir, rs.locale, filename)
	if !r.content.Exists(localized) {
		if r.content.Exists(path.Join(dir, fallbackLocale, filename)) {
			return redirect(fmt.Sprintf("/%s/%s?redirect_from_locale=%s",
				fallbackLocale, rs.rel, url.QueryEscape(rs.locale)), false), nil
		}
		return &Outcome{Kind: OutcomeNotFound}, nil
	}

	var tut *Resource
	res, err := r.repo.FindResourceByURL(ctx, "/"+rs.rel)
	switch {
	case err == nil:
		if res.Draft {
			return redirect("/"+rs.locale+"/tutorials/", false), nil
		}
		res.Title = rs.loc.T(res.Title)
		res.Description = rs.loc.T(res.Description)
		tut = &res
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}

	localizations, err := r.localizations(dir, filename, rs)
	if err != nil {
		return nil, err
	}
	out := rs.render(localized, map[string]any{
		"tut":                  tut,
		"localizations":        localizations,
		"redirect_from_locale": rs.notice,
	})
	out.Resource = tut
	return out, nil
}

// localizations lists the other locales an article is available in.
func (r *Resolver) localizations(dir, filename string, rs *resolution) ([]Localization, error) {
	matches, err := r.content.Glob(path.Join(dir, "*", filename))
	if err != nil {
		return nil, err
	}
	var out []Localization
	for _, m := range matches {
		code := path.Base(path.Dir(m))
		if code == rs.locale || code == artifactDir {
			continue
		}
		name, ok := i18n.DisplayName(code)
		if !ok {
			continue
		}
		out = append(out, Localization{Path: "/" + code + "/" + rs.rel, Lang: name})
	}
	return out, nil
}

func (r *Resolver) resolveListing(ctx context.Context, rs *resolution) (*Outcome, error) {
	if !r.content.Exists(rs.template) {
		return nil, nil
	}
	q := ResourceQuery{}
	if taggedSections[rs.rel] {
		q = ResourceQuery{Tag: rs.rel, Limit: whatsNewLimit}
	}
	results, err := r.resources(ctx, q, rs.req.NoCache)
	if err != nil {
		return nil, err
	}
	tutorials := make([]ListedResource, 0, len(results))
	for _, res := range results {
		tutorials = append(tutorials, r.listed(res, rs, true))
	}
	authors, err := r.listingAuthors(ctx, results, rs.req.NoCache)
	if err != nil {
		return nil, err
	}
	return rs.render(rs.template, map[string]any{
		"tutorials": tutorials,
		"authors":   authors,
	}), nil
}

// listed localizes res for the active locale. Descriptions are only
// translated when withDescription is set.
func (r *Resolver) listed(res Resource, rs *resolution, withDescription bool) ListedResource {
	lr := ListedResource{
		Resource: res,
		Link:     res.URL,
		Kind:     res.Type(),
		Classes:  res.Classes(),
		Labels:   res.PlainTags(),
	}
	if strings.HasPrefix(res.URL, "/") {
		if r.content.Exists(path.Join("content", res.URL[1:], rs.locale, "index.html")) {
			lr.Localize = true
			lr.Title = rs.loc.T(res.Title)
			if withDescription {
				lr.Description = rs.loc.T(res.Description)
			}
		}
		lr.Link = "/" + rs.locale + res.URL
	}
	return lr
}

// listingAuthors returns the primary author of every result once, in order
// of first appearance.
func (r *Resolver) listingAuthors(ctx context.Context, results []Resource, noCache bool) ([]Author, error) {
	all, err := r.authors(ctx, noCache)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Author, len(all))
	for _, a := range all {
		byID[a.ID] = a
	}
	seen := make(map[string]bool)
	var out []Author
	for _, res := range results {
		if seen[res.AuthorID] {
			continue
		}
		seen[res.AuthorID] = true
		if a, ok := byID[res.AuthorID]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *Resolver) resolveExtension(ctx context.Context, rs *resolution) (*Outcome, error) {
	dot := strings.LastIndex(rs.template, ".")
	if dot < 0 || dot < strings.LastIndex(rs.template, "/") {
		return nil, nil
	}
	alt := rs.template[:dot] + ".html"
	if alt == rs.template || !r.content.Exists(alt) {
		return nil, nil
	}
	return rs.render(alt, map[string]any{}), nil
}

func (r *Resolver) resolveFeature(ctx context.Context, rs *resolution) (*Outcome, error) {
	tmpl := rs.template + ".html"
	if !r.content.Exists(tmpl) {
		return nil, nil
	}
	category := strings.ReplaceAll(rs.rel, "features/", "")
	results, err := r.resources(ctx, ResourceQuery{Tag: classTagPrefix + category, Limit: whatsNewLimit}, rs.req.NoCache)
	if err != nil {
		return nil, err
	}
	updates := make([]ListedResource, 0, len(results))
	for _, res := range results {
		updates = append(updates, r.listed(res, rs, false))
	}
	data := map[string]any{
		"category": category,
		"updates":  updates,
	}
	if rs.rel == "why" {
		local := path.Join(rs.template, rs.locale, "index.html")
		if !r.content.Exists(local) {
			local = path.Join(rs.template, fallbackLocale, "index.html")
		}
		data["local_content_path"] = local
	}
	return rs.render(tmpl, data), nil
}

// resources memoizes a listing query in the cache.
func (r *Resolver) resources(ctx context.Context, q ResourceQuery, noCache bool) ([]Resource, error) {
	key := cacheKey(r.cfg.CachePrefix, "resources", fmt.Sprintf("%s|%s|%d", normalizeTag(q.Tag), q.AuthorID, q.Limit))
	var res []Resource
	if !noCache {
		if ok, err := getJSON(r.cache, key, &res); err != nil {
			r.log.Warnf("cache get %s: %v", key, err)
		} else if ok {
			return res, nil
		}
	}
	res, err := r.repo.ListResources(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := setJSON(r.cache, key, res, r.cfg.ListingTTL); err != nil {
		r.log.Warnf("cache set %s: %v", key, err)
	}
	return res, nil
}

func (r *Resolver) authors(ctx context.Context, noCache bool) ([]Author, error) {
	key := cacheKey(r.cfg.CachePrefix, "authors", "all")
	var authors []Author
	if !noCache {
		if ok, err := getJSON(r.cache, key, &authors); err != nil {
			r.log.Warnf("cache get %s: %v", key, err)
		} else if ok {
			return authors, nil
		}
	}
	authors, err := r.repo.ListAuthors(ctx)
	if err != nil {
		return nil, err
	}
	if err := setJSON(r.cache, key, authors, r.cfg.ListingTTL); err != nil {
		r.log.Warnf("cache set %s: %v", key, err)
	}
	return authors, nil
}

func (r *Resolver) profiles(ctx context.Context, noCache bool) ([]Profile, error) {
	authors, err := r.authors(ctx, noCache)
	if err != nil {
		return nil, err
	}
	profiles := make([]Profile, len(authors))
	for i, a := range authors {
		profiles[i] = a.Profile()
	}
	return profiles, nil
}
