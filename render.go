package rocks

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/rocks/i18n"
	"github.com/eringen/rocks/toc"
)

const (
	notFoundTemplate    = "404.html"
	serverErrorTemplate = "500.html"
	notFoundMessage     = "Page Not Found"
	serverErrorMessage  = "Server Error"
	relatedLimit        = 5
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// renderOutcome turns a resolver outcome into a response.
func (a *App) renderOutcome(c echo.Context, req Request, out *Outcome) error {
	switch out.Kind {
	case OutcomeRedirect:
		code := http.StatusFound
		if out.Permanent {
			code = http.StatusMovedPermanently
		}
		return c.Redirect(code, out.Location)
	case OutcomeNotFound:
		return a.renderError(c, http.StatusNotFound, notFoundMessage, out.Localizer)
	}

	loc := out.Localizer
	if loc == nil {
		loc = a.Catalog.Localizer(a.Config.DefaultLocale)
	}
	ctx := c.Request().Context()

	if req.IsFeed() {
		return a.renderAtom(c, out.Template, req.NoCache)
	}

	data := a.ambientData(c, req, out)
	for k, v := range out.Data {
		data[k] = v
	}
	if _, ok := data["category"]; !ok {
		data["category"] = loc.T("this feature")
	}
	data["gdl_page_url"] = a.liveBannerURL(ctx)
	if out.Resource != nil {
		all, err := a.Resolver.resources(ctx, ResourceQuery{}, req.NoCache)
		if err != nil {
			return err
		}
		related := RelatedResources(*out.Resource, all)
		if len(related) > relatedLimit {
			related = related[:relatedLimit]
		}
		data["related"] = related
	}

	if p, ok := data["local_content_path"].(string); ok && p != "" {
		var buf bytes.Buffer
		if err := a.Templates.Execute(&buf, p, data, loc.T); err != nil {
			return err
		}
		data["local_content"] = template.HTML(buf.String())
	}

	var buf bytes.Buffer
	if err := a.Templates.Execute(&buf, out.Template, data, loc.T); err != nil {
		return err
	}

	h := c.Response().Header()
	h.Set(echo.HeaderAccessControlAllowOrigin, "*")
	h.Set("X-UA-Compatible", "IE=Edge,chrome=1")
	ctype := out.ContentType
	if ctype == "" {
		ctype = echo.MIMETextHTMLCharsetUTF8
	}
	return c.Blob(http.StatusOK, ctype, buf.Bytes())
}

// ambientData is the template context added to every rendered page.
func (a *App) ambientData(c echo.Context, req Request, out *Outcome) map[string]any {
	r := c.Request()
	host := c.Scheme() + "://" + r.Host
	noLang := pathWithoutLocale(req.Path)

	disqus := host + "/" + noLang
	if out.Resource != nil && out.Resource.SocialURL != "" {
		disqus = host + out.Resource.SocialURL
	}

	data := map[string]any{
		"toc":           a.tableOfContents(out.Template, req.NoCache),
		"self_url":      host + r.RequestURI,
		"self_pagename": pageName(noLang),
		"host":          host,
		"is_mobile":     isMobileDevice(r.UserAgent()),
		"current":       currentSection(out.RelPath),
		"prod":          a.Config.Prod,
		"disqus_url":    disqus,
		"languages":     i18n.Languages,
	}
	if out.Localizer != nil {
		data["locale"] = out.Localizer.Code()
	}
	meta := PageMeta{Title: a.Config.Name, Description: a.Config.Description, URL: host + r.URL.Path, OGType: "website"}
	if res := out.Resource; res != nil {
		meta.Title = res.Title
		meta.Description = res.Description
		meta.OGType = "article"
		data["jsonld"] = template.JS(ArticleJsonLD(*res, a.Config, host+r.URL.Path))
	}
	data["meta"] = meta
	return data
}

// tableOfContents returns the outline of a tutorial or mobile template,
// cached per template path.
func (a *App) tableOfContents(tmpl string, noCache bool) []toc.Heading {
	if tmpl == "" || !(strings.Contains(tmpl, "/tutorials") || strings.Contains(tmpl, "/mobile")) {
		return nil
	}
	key := cacheKey(a.Config.CachePrefix, "toc", tmpl)
	var headings []toc.Heading
	if !noCache {
		if ok, err := getJSON(a.Cache, key, &headings); err != nil {
			a.Echo.Logger.Warnf("cache get %s: %v", key, err)
		} else if ok {
			return headings
		}
	}
	body, err := a.Templates.RenderString(tmpl)
	if err != nil {
		a.Echo.Logger.Warnf("toc: render %s: %v", tmpl, err)
		return nil
	}
	headings, err = toc.ExtractString(body)
	if err != nil {
		a.Echo.Logger.Warnf("toc: parse %s: %v", tmpl, err)
		return nil
	}
	if err := setJSON(a.Cache, key, headings, tocCacheTTL); err != nil {
		a.Echo.Logger.Warnf("cache set %s: %v", key, err)
	}
	return headings
}

// liveBannerURL returns the banner URL if it was saved within the last hour.
func (a *App) liveBannerURL(ctx context.Context) string {
	l, err := a.Store.LatestLiveData(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			a.Echo.Logger.Warnf("live data: %v", err)
		}
		return ""
	}
	if !l.Fresh(a.now()) {
		return ""
	}
	return l.URL
}

// renderError renders the 404/500 template if present, else the raw message.
func (a *App) renderError(c echo.Context, code int, message string, loc *i18n.Localizer) error {
	tmpl := serverErrorTemplate
	if code == http.StatusNotFound {
		tmpl = notFoundTemplate
	}
	if a.Content == nil || !a.Content.Exists(tmpl) {
		return c.String(code, message)
	}
	if loc == nil {
		loc = a.Catalog.Localizer(a.Config.DefaultLocale)
	}
	var buf bytes.Buffer
	data := map[string]any{
		"status":  code,
		"message": message,
		"prod":    a.Config.Prod,
		"locale":  loc.Code(),
	}
	if err := a.Templates.Execute(&buf, tmpl, data, loc.T); err != nil {
		c.Logger().Errorf("render %s: %v", tmpl, err)
		return c.String(code, message)
	}
	return c.HTMLBlob(code, buf.Bytes())
}

// pathWithoutLocale strips a leading "/<locale>/" segment and the leading slash.
func pathWithoutLocale(p string) string {
	if m := localeRe.FindStringSubmatch(p); m != nil {
		p = strings.TrimPrefix(p, "/"+m[1])
	}
	return strings.TrimPrefix(p, "/")
}

// pageName turns a locale-stripped path into a page identifier such as
// "tutorials-webgl-shaders".
func pageName(noLang string) string {
	if noLang == "" {
		return "home"
	}
	name := strings.ReplaceAll(noLang, "/", "-")
	name = strings.TrimSuffix(name, "-")
	return strings.TrimPrefix(name, "-")
}

func currentSection(rel string) string {
	first, _, _ := strings.Cut(rel, "/")
	first, _, _ = strings.Cut(first, ".")
	return first
}

func isMobileDevice(ua string) bool {
	return strings.Contains(ua, "Android") || strings.Contains(ua, "iPhone")
}
