package rocks

import (
	"encoding/xml"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/rocks/i18n"
)

type sitemapURLSet struct {
	XMLName    xml.Name     `xml:"urlset"`
	XMLNS      string       `xml:"xmlns,attr"`
	XHTMLXMLNS string       `xml:"xmlns:xhtml,attr"`
	URLs       []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string        `xml:"loc"`
	LastMod    string        `xml:"lastmod,omitempty"`
	Alternates []sitemapLink `xml:"xhtml:link"`
}

type sitemapLink struct {
	Rel      string `xml:"rel,attr"`
	HrefLang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

func (a *App) handleSitemap(c echo.Context) error {
	resources, err := a.Store.ListResources(c.Request().Context(), ResourceQuery{})
	if err != nil {
		return err
	}
	return a.renderSitemap(c, resources)
}

func (a *App) renderSitemap(c echo.Context, resources []Resource) error {
	sitemap := sitemapURLSet{
		XMLNS:      "http://www.sitemaps.org/schemas/sitemap/0.9",
		XHTMLXMLNS: "http://www.w3.org/1999/xhtml",
		URLs:       a.sitemapURLs(resources),
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}

// sitemapURLs lists the default-locale landing page and every published
// resource hosted on this site. Articles translated into more than one
// locale carry hreflang alternates.
func (a *App) sitemapURLs(resources []Resource) []sitemapURL {
	base := a.Config.URL
	loc := a.Config.DefaultLocale
	urls := []sitemapURL{{Loc: BuildURL(base, loc)}}
	for _, r := range resources {
		if r.Draft || !strings.HasPrefix(r.URL, "/") {
			continue
		}
		lastMod := r.UpdateDate
		if lastMod == "" {
			lastMod = r.PublicationDate
		}
		urls = append(urls, sitemapURL{
			Loc:        BuildURL(base, loc, r.URL),
			LastMod:    lastMod,
			Alternates: a.articleAlternates(r.URL),
		})
	}
	return urls
}

func (a *App) articleAlternates(resourceURL string) []sitemapLink {
	matches, err := a.Content.Glob(path.Join("content", resourceURL, "*", "index.html"))
	if err != nil {
		return nil
	}
	var links []sitemapLink
	for _, m := range matches {
		code := path.Base(path.Dir(m))
		if _, ok := i18n.DisplayName(code); !ok {
			continue
		}
		links = append(links, sitemapLink{
			Rel:      "alternate",
			HrefLang: code,
			Href:     BuildURL(a.Config.URL, code, resourceURL),
		})
	}
	if len(links) < 2 {
		return nil
	}
	return links
}
