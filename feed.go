package rocks

import (
	"context"
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const atomContentType = "application/atom+xml; charset=utf-8"

type atomFeed struct {
	XMLName  xml.Name    `xml:"feed"`
	XMLNS    string      `xml:"xmlns,attr"`
	Lang     string      `xml:"xml:lang,attr"`
	Title    string      `xml:"title"`
	Subtitle string      `xml:"subtitle,omitempty"`
	Links    []atomLink  `xml:"link"`
	ID       string      `xml:"id"`
	Updated  string      `xml:"updated"`
	Entries  []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
}

type atomPerson struct {
	Name string `xml:"name"`
}

type atomText struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomEntry struct {
	Title      string         `xml:"title"`
	Links      []atomLink     `xml:"link"`
	ID         string         `xml:"id"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	Author     atomPerson     `xml:"author"`
	Summary    atomText       `xml:"summary"`
	Categories []atomCategory `xml:"category"`
}

// feedItem is the cached, host-independent form of a feed entry.
type feedItem struct {
	Title       string
	Href        string
	Description string
	Authors     string
	PubDate     string
	UpdateDate  string
	Categories  []string
}

// feedItems returns the newest published resources as feed items, cached
// per template path for a day.
func (a *App) feedItems(ctx context.Context, tmpl string, noCache bool) ([]feedItem, error) {
	key := cacheKey(a.Config.CachePrefix, "feed", tmpl)
	var items []feedItem
	if !noCache {
		if ok, err := getJSON(a.Cache, key, &items); err != nil {
			a.Echo.Logger.Warnf("cache get %s: %v", key, err)
		} else if ok {
			return items, nil
		}
	}
	resources, err := a.Store.ListResources(ctx, ResourceQuery{Limit: feedResultsLimit})
	if err != nil {
		return nil, err
	}
	items = buildFeedItems(resources)
	if err := setJSON(a.Cache, key, items, feedCacheTTL); err != nil {
		a.Echo.Logger.Warnf("cache set %s: %v", key, err)
	}
	return items, nil
}

func buildFeedItems(resources []Resource) []feedItem {
	items := make([]feedItem, 0, len(resources))
	for _, r := range resources {
		if r.Draft {
			continue
		}
		items = append(items, feedItem{
			Title:       r.Title,
			Href:        r.URL,
			Description: r.Description,
			Authors:     strings.Join(r.AuthorIDs(), ","),
			PubDate:     r.PublicationDate,
			UpdateDate:  r.UpdateDate,
			Categories:  append([]string(nil), r.Tags...),
		})
	}
	return items
}

// buildAtomFeed assembles an Atom 1.0 document rooted at prefix
// (scheme://host).
func buildAtomFeed(cfg SiteConfig, prefix string, items []feedItem) atomFeed {
	feed := atomFeed{
		XMLNS:    "http://www.w3.org/2005/Atom",
		Lang:     "en",
		Title:    cfg.Name,
		Subtitle: cfg.Description,
		Links: []atomLink{
			{Href: prefix, Rel: "alternate"},
		},
		ID: prefix + "/",
	}
	var newest time.Time
	for _, it := range items {
		published := feedTime(it.PubDate)
		updated := published
		if u := feedTime(it.UpdateDate); !u.IsZero() {
			updated = u
		}
		if updated.After(newest) {
			newest = updated
		}
		link := prefix + it.Href
		cats := make([]atomCategory, len(it.Categories))
		for i, t := range it.Categories {
			cats[i] = atomCategory{Term: t}
		}
		feed.Entries = append(feed.Entries, atomEntry{
			Title:      it.Title,
			Links:      []atomLink{{Href: link, Rel: "alternate"}},
			ID:         link,
			Published:  published.Format(time.RFC3339),
			Updated:    updated.Format(time.RFC3339),
			Author:     atomPerson{Name: it.Authors},
			Summary:    atomText{Type: "html", Body: it.Description},
			Categories: cats,
		})
	}
	if newest.IsZero() {
		newest = time.Now().UTC()
	}
	feed.Updated = newest.Format(time.RFC3339)
	return feed
}

func feedTime(date string) time.Time {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func (a *App) renderAtom(c echo.Context, tmpl string, noCache bool) error {
	items, err := a.feedItems(c.Request().Context(), tmpl, noCache)
	if err != nil {
		return err
	}
	prefix := c.Scheme() + "://" + c.Request().Host
	feed := buildAtomFeed(a.Config, prefix, items)
	c.Response().Header().Set(echo.HeaderContentType, atomContentType)
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
