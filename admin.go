package rocks

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/rocks/views"
)

const notAllowedInProd = "Handler not allowed in production."

// adminActions are the maintenance GETs refused in production.
var adminActions = map[string][]string{
	"drop_all":                nil,
	"load_authors":            {FixtureAuthors},
	"load_tutorials":          {FixtureTutorials},
	"load_playground_samples": {FixturePlayground},
	"load_studio_samples":     {FixtureStudio},
	"load_all":                {FixtureAll},
}

func (a *App) registerAdminRoutes() {
	g := a.Echo.Group(adminPrefix)
	g.GET("/login/", a.handleAdminLoginPage)
	g.POST("/login/", a.handleAdminLogin)
	g.POST("/logout/", handleAdminLogout)

	auth := g.Group("", a.requireAdmin)
	auth.GET("/live", a.handleLive)
	auth.POST("/live", a.handleLiveSave)
	auth.GET("/author", a.handleAuthor)
	auth.POST("/author", a.handleAuthorSave)
	auth.GET("/resource", a.handleResource)
	auth.GET("/resource/:id", a.handleResource)
	auth.POST("/resource", a.handleResourceSave)
	auth.GET("/:action", a.handleAdminAction)
	auth.GET("", handleAdminIndex)
	auth.GET("/*", handleAdminIndex)
}

func (a *App) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !IsAdmin(c) {
			return c.Redirect(http.StatusSeeOther, adminPrefix+"/login/")
		}
		return next(c)
	}
}

func handleAdminIndex(c echo.Context) error {
	return c.Redirect(http.StatusFound, adminPrefix+"/resource")
}

func (a *App) handleAdminLoginPage(c echo.Context) error {
	if IsAdmin(c) {
		return handleAdminIndex(c)
	}
	return Render(c, views.Login(views.LoginPage{Page: views.Page{CSRF: CsrfToken(c)}}))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	if !a.loginLimiter.Check(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		a.loginLimiter.Reset(c.RealIP())
		if err := saveAdminSession(c, true); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, adminPrefix+"/resource")
	}
	a.loginLimiter.Record(c.RealIP())
	return RenderStatus(c, http.StatusUnauthorized, views.Login(views.LoginPage{
		Page:      views.Page{CSRF: CsrfToken(c)},
		ShowError: true,
	}))
}

func handleAdminLogout(c echo.Context) error {
	if err := saveAdminSession(c, false); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, adminPrefix+"/login/")
}

func (a *App) handleLive(c echo.Context) error {
	p := views.LivePage{Page: views.Page{CSRF: CsrfToken(c)}}
	l, err := a.Store.LatestLiveData(c.Request().Context())
	switch {
	case err == nil:
		p.URL = l.URL
		p.Updated = l.Updated.Format(time.RFC1123)
	case !errors.Is(err, ErrNotFound):
		return err
	}
	return Render(c, views.Live(p))
}

func (a *App) handleLiveSave(c echo.Context) error {
	u := strings.TrimSpace(c.FormValue("gdl_page_url"))
	if _, err := a.Store.SaveLiveData(c.Request().Context(), u, a.now()); err != nil {
		return err
	}
	a.flushCache()
	return c.Redirect(http.StatusSeeOther, adminPrefix+"/live")
}

func (a *App) handleAuthor(c echo.Context) error {
	return a.renderAuthorPage(c, http.StatusOK, views.AuthorForm{}, "")
}

func (a *App) renderAuthorPage(c echo.Context, code int, form views.AuthorForm, msg string) error {
	authors, err := a.Store.ListAuthors(c.Request().Context())
	if err != nil {
		return err
	}
	rows := make([]views.AuthorRow, len(authors))
	for i, au := range authors {
		rows[i] = views.AuthorRow{
			ID:       au.ID,
			Name:     au.FullName(),
			Org:      au.Org,
			Location: strings.Join(FilterEmpty([]string{au.City, au.State, au.Country}), ", "),
		}
	}
	return RenderStatus(c, code, views.Author(views.AuthorPage{
		Page:    views.Page{CSRF: CsrfToken(c), Error: msg},
		Form:    form,
		Authors: rows,
	}))
}

func authorFormFrom(c echo.Context) views.AuthorForm {
	v := func(name string) string { return strings.TrimSpace(c.FormValue(name)) }
	return views.AuthorForm{
		GivenName:      v("given_name"),
		FamilyName:     v("family_name"),
		Org:            v("org"),
		Unit:           v("unit"),
		City:           v("city"),
		State:          v("state"),
		Country:        v("country"),
		Lat:            v("lat"),
		Lon:            v("lon"),
		Homepage:       v("homepage"),
		GoogleAccount:  v("google_account"),
		TwitterAccount: v("twitter_account"),
		Email:          v("email"),
		Lanyrd:         c.FormValue("lanyrd") == "on",
	}
}

// authorFromForm validates form. The message is empty when it is valid.
func authorFromForm(form views.AuthorForm) (Author, string) {
	if form.GivenName == "" || form.FamilyName == "" {
		return Author{}, "Given and family name are required."
	}
	au := Author{
		ID:             AuthorID(form.GivenName, form.FamilyName),
		GivenName:      form.GivenName,
		FamilyName:     form.FamilyName,
		Org:            form.Org,
		Unit:           form.Unit,
		City:           form.City,
		State:          form.State,
		Country:        form.Country,
		Homepage:       form.Homepage,
		GoogleAccount:  form.GoogleAccount,
		TwitterAccount: form.TwitterAccount,
		Email:          form.Email,
		Lanyrd:         form.Lanyrd,
	}
	if form.Lat != "" && form.Lon != "" {
		lat, errLat := strconv.ParseFloat(form.Lat, 64)
		lon, errLon := strconv.ParseFloat(form.Lon, 64)
		if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return Author{}, "Latitude and longitude must be decimal degrees."
		}
		au.Geo = &GeoPoint{Lat: lat, Lon: lon}
	}
	return au, ""
}

func (a *App) handleAuthorSave(c echo.Context) error {
	form := authorFormFrom(c)
	au, msg := authorFromForm(form)
	if msg != "" {
		return a.renderAuthorPage(c, http.StatusBadRequest, form, msg)
	}
	if err := a.Store.SaveAuthor(c.Request().Context(), au); err != nil {
		return err
	}
	a.flushCache()
	return c.Redirect(http.StatusSeeOther, adminPrefix+"/author")
}

func (a *App) handleResource(c echo.Context) error {
	form := views.ResourceForm{BrowserSupport: map[string]bool{}}
	if raw := c.Param("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.ErrNotFound
		}
		r, err := a.Store.GetResource(c.Request().Context(), id)
		switch {
		case err == nil:
			form = resourceFormOf(r)
		case errors.Is(err, ErrNotFound):
			return echo.ErrNotFound
		default:
			return err
		}
	}
	return a.renderResourcePage(c, http.StatusOK, form, "")
}

func resourceFormOf(r Resource) views.ResourceForm {
	form := views.ResourceForm{
		PostID:          strconv.FormatInt(r.ID, 10),
		Title:           r.Title,
		Description:     r.Description,
		URL:             r.URL,
		SocialURL:       r.SocialURL,
		Author:          r.AuthorID,
		SecondAuthor:    r.SecondAuthorID,
		Tags:            strings.Join(r.Tags, ", "),
		PublicationDate: r.PublicationDate,
		UpdateDate:      r.UpdateDate,
		Draft:           r.Draft,
		BrowserSupport:  make(map[string]bool, len(r.BrowserSupport)),
	}
	for _, b := range r.BrowserSupport {
		form.BrowserSupport[b] = true
	}
	return form
}

func (a *App) renderResourcePage(c echo.Context, code int, form views.ResourceForm, msg string) error {
	ctx := c.Request().Context()
	authors, err := a.Store.ListAuthors(ctx)
	if err != nil {
		return err
	}
	opts := make([]views.AuthorOption, len(authors))
	for i, au := range authors {
		opts[i] = views.AuthorOption{ID: au.ID, Name: au.FullName()}
	}
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Name < opts[j].Name })

	resources, err := a.Store.ListResources(ctx, ResourceQuery{IncludeDrafts: true})
	if err != nil {
		return err
	}
	rows := make([]views.ResourceRow, len(resources))
	for i, r := range resources {
		rows[i] = views.ResourceRow{ID: r.ID, Title: r.Title, URL: r.URL, PublicationDate: r.PublicationDate, Draft: r.Draft}
	}
	return RenderStatus(c, code, views.Resource(views.ResourcePage{
		Page:      views.Page{CSRF: CsrfToken(c), Error: msg},
		Form:      form,
		Authors:   opts,
		Resources: rows,
	}))
}

func resourceFormFrom(c echo.Context) (views.ResourceForm, error) {
	params, err := c.FormParams()
	if err != nil {
		return views.ResourceForm{}, err
	}
	v := func(name string) string { return strings.TrimSpace(params.Get(name)) }
	form := views.ResourceForm{
		PostID:          v("post_id"),
		Title:           v("title"),
		Description:     v("description"),
		URL:             v("url"),
		SocialURL:       v("social_url"),
		Author:          v("author"),
		SecondAuthor:    v("second_author"),
		Tags:            v("tags"),
		PublicationDate: v("publication_date"),
		Draft:           params.Get("draft") == "on",
		BrowserSupport:  map[string]bool{},
	}
	for _, b := range params["browser_support"] {
		form.BrowserSupport[strings.ToLower(strings.TrimSpace(b))] = true
	}
	return form, nil
}

func (a *App) handleResourceSave(c echo.Context) error {
	ctx := c.Request().Context()
	form, err := resourceFormFrom(c)
	if err != nil {
		return err
	}
	fail := func(msg string) error {
		return a.renderResourcePage(c, http.StatusBadRequest, form, msg)
	}

	if _, err := a.Store.GetAuthor(ctx, form.Author); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fail("Choose an existing author.")
		}
		return err
	}
	second := form.SecondAuthor
	if second == form.Author {
		second = ""
	}
	if second != "" {
		if _, err := a.Store.GetAuthor(ctx, second); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fail("Choose an existing second author.")
			}
			return err
		}
	}
	if _, err := time.Parse(dateLayout, form.PublicationDate); err != nil {
		return fail("Invalid publication date. Use YYYY-MM-DD.")
	}

	var browsers []string
	for _, b := range views.Browsers {
		if form.BrowserSupport[b.Value] {
			browsers = append(browsers, b.Value)
		}
	}
	r := &Resource{
		Title:           form.Title,
		Description:     form.Description,
		URL:             form.URL,
		SocialURL:       form.SocialURL,
		AuthorID:        form.Author,
		SecondAuthorID:  second,
		Tags:            ParseTags(form.Tags),
		BrowserSupport:  browsers,
		PublicationDate: form.PublicationDate,
		UpdateDate:      a.now().Format(dateLayout),
		Draft:           form.Draft,
	}
	if form.PostID != "" {
		id, err := strconv.ParseInt(form.PostID, 10, 64)
		if err != nil {
			return fail("Invalid post id.")
		}
		if _, err := a.Store.GetResource(ctx, id); err == nil {
			r.ID = id
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	if err := a.Store.SaveResource(ctx, r); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateURL):
			return fail("Another published resource already uses this URL.")
		case errors.Is(err, ErrInvalidResource):
			return fail("Title, URL, author and publication date are required.")
		}
		return err
	}
	a.flushCache()
	return c.Redirect(http.StatusSeeOther, adminPrefix+"/resource/"+strconv.FormatInt(r.ID, 10))
}

// handleAdminAction runs the fixture maintenance actions. Unknown actions
// fall through to the resource page.
func (a *App) handleAdminAction(c echo.Context) error {
	sets, ok := adminActions[c.Param("action")]
	if !ok {
		return handleAdminIndex(c)
	}
	if a.Config.Prod {
		return c.String(http.StatusForbidden, notAllowedInProd)
	}
	ctx := c.Request().Context()
	if sets == nil {
		if err := a.DropAll(ctx); err != nil {
			return err
		}
		return handleAdminIndex(c)
	}
	for _, set := range sets {
		rep, err := a.LoadFixtures(ctx, set)
		if err != nil {
			return err
		}
		c.Logger().Infof("loaded %s: %d saved, %d skipped", set, rep.Saved, rep.Skipped)
	}
	return handleAdminIndex(c)
}
