package rocks

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// apiKinds maps /api/<kind> to the type tag it lists.
var apiKinds = map[string]string{
	"tutorials":     "type:tutorial",
	"articles":      "type:article",
	"casestudies":   "type:casestudy",
	"demos":         "type:demo",
	"samples":       "type:sample",
	"presentations": "type:presentation",
	"announcements": "type:announcement",
	"videos":        "type:video",
}

// resourceJSON is the wire form of a Resource in the JSON API.
type resourceJSON struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	URL             string   `json:"url"`
	SocialURL       string   `json:"social_url"`
	Author          string   `json:"author"`
	SecondAuthor    *string  `json:"second_author"`
	BrowserSupport  []string `json:"browser_support"`
	Tags            []string `json:"tags"`
	PublicationDate string   `json:"publication_date"`
	UpdateDate      *string  `json:"update_date"`
	Draft           bool     `json:"draft"`
}

func toResourceJSON(rs []Resource) []resourceJSON {
	out := make([]resourceJSON, 0, len(rs))
	for _, r := range rs {
		j := resourceJSON{
			ID:              r.ID,
			Title:           r.Title,
			Description:     r.Description,
			URL:             r.URL,
			SocialURL:       r.SocialURL,
			Author:          r.AuthorID,
			BrowserSupport:  r.BrowserSupport,
			Tags:            r.Tags,
			PublicationDate: r.PublicationDate,
			Draft:           r.Draft,
		}
		if j.BrowserSupport == nil {
			j.BrowserSupport = []string{}
		}
		if j.Tags == nil {
			j.Tags = []string{}
		}
		if r.SecondAuthorID != "" {
			second := r.SecondAuthorID
			j.SecondAuthor = &second
		}
		if r.UpdateDate != "" {
			updated := r.UpdateDate
			j.UpdateDate = &updated
		}
		out = append(out, j)
	}
	return out
}

func (a *App) registerAPIRoutes() {
	cors := middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet},
	})
	api := a.Echo.Group("/api", cors)
	api.GET("/:kind", a.handleAPI)
	tags := a.Echo.Group("/tags", cors)
	tags.GET("/:format/:tag", a.handleTags)
}

// handleAPI serves /api/authors and the per-type resource listings. Unknown
// kinds return an empty list.
func (a *App) handleAPI(c echo.Context) error {
	ctx := c.Request().Context()
	noCache := cacheDisabled(c.QueryParams())
	kind := c.Param("kind")

	if kind == "authors" {
		profiles, err := a.Resolver.profiles(ctx, noCache)
		if err != nil {
			return err
		}
		byID := make(map[string]Profile, len(profiles))
		for _, p := range profiles {
			byID[p.ID] = p
		}
		return c.JSON(http.StatusOK, byID)
	}

	tag, ok := apiKinds[kind]
	if !ok {
		return c.JSON(http.StatusOK, []resourceJSON{})
	}
	res, err := a.Resolver.resources(ctx, ResourceQuery{Tag: tag}, noCache)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResourceJSON(res))
}

// handleTags serves /tags/json/<tag>, e.g. /tags/json/class:file_access.
func (a *App) handleTags(c echo.Context) error {
	if c.Param("format") != "json" {
		return echo.ErrNotFound
	}
	tag, err := url.PathUnescape(c.Param("tag"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bad tag")
	}
	res, err := a.Resolver.resources(c.Request().Context(), ResourceQuery{Tag: tag}, cacheDisabled(c.QueryParams()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResourceJSON(res))
}
