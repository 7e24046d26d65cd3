package rocks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adminClient carries cookies between requests the way a browser would.
type adminClient struct {
	t       *testing.T
	app     *App
	cookies map[string]*http.Cookie
}

func newAdminClient(t *testing.T, a *App) *adminClient {
	return &adminClient{t: t, app: a, cookies: make(map[string]*http.Cookie)}
}

func (ac *adminClient) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range ac.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	ac.app.Echo.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(ac.cookies, ck.Name)
			continue
		}
		ac.cookies[ck.Name] = ck
	}
	return rec
}

func (ac *adminClient) get(target string) *httptest.ResponseRecorder {
	return ac.do(httptest.NewRequest(http.MethodGet, target, nil))
}

// post submits form with the CSRF token issued by an earlier GET.
func (ac *adminClient) post(target string, form url.Values) *httptest.ResponseRecorder {
	ac.t.Helper()
	if _, ok := ac.cookies["_csrf"]; !ok {
		ac.get(adminPrefix + "/login/")
	}
	ck, ok := ac.cookies["_csrf"]
	require.True(ac.t, ok, "no csrf cookie issued")
	form.Set("_csrf", ck.Value)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ac.do(req)
}

func (ac *adminClient) login() {
	ac.t.Helper()
	rec := ac.post(adminPrefix+"/login/", url.Values{"password": {testPassword}})
	require.Equal(ac.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(ac.t, adminPrefix+"/resource", rec.Header().Get("Location"))
}

func TestAdminRequiresLogin(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	ac := newAdminClient(t, a)

	for _, p := range []string{"/database/resource", "/database/author", "/database/live", "/database/load_all"} {
		rec := ac.get(p)
		assert.Equal(t, http.StatusSeeOther, rec.Code, p)
		assert.Equal(t, "/database/login/", rec.Header().Get("Location"), p)
	}
}

func TestAdminLogin(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	ac := newAdminClient(t, a)

	rec := ac.get("/database/login/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="_csrf"`)

	rec = ac.post("/database/login/", url.Values{"password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong password.")

	ac.login()
	rec = ac.get("/database/resource")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ac.get("/database/login/")
	assert.Equal(t, http.StatusFound, rec.Code, "signed in users skip the login form")

	rec = ac.post("/database/logout/", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = ac.get("/database/resource")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestAdminRejectsMissingCSRF(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	req := httptest.NewRequest(http.MethodPost, "/database/login/", strings.NewReader("password="+url.QueryEscape(testPassword)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminLoginRateLimit(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	ac := newAdminClient(t, a)
	for i := 0; i < 5; i++ {
		ac.post("/database/login/", url.Values{"password": {"wrong"}})
	}
	rec := ac.post("/database/login/", url.Values{"password": {testPassword}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAdminSaveAuthor(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	ac := newAdminClient(t, a)
	ac.login()

	rec := ac.post("/database/author", url.Values{
		"given_name":  {"Addy"},
		"family_name": {"Osmani"},
		"city":        {"London"},
		"country":     {"UK"},
		"lat":         {"51.5"},
		"lon":         {"-0.12"},
		"lanyrd":      {"on"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/database/author", rec.Header().Get("Location"))

	au, err := a.Store.GetAuthor(context.Background(), "addyosmani")
	require.NoError(t, err)
	assert.Equal(t, "London", au.City)
	assert.True(t, au.Lanyrd)
	require.NotNil(t, au.Geo)
	assert.Equal(t, GeoPoint{Lat: 51.5, Lon: -0.12}, *au.Geo)

	rec = ac.get("/database/author")
	assert.Contains(t, rec.Body.String(), "<td>addyosmani</td>")
}

func TestAdminSaveAuthorValidation(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	ac := newAdminClient(t, a)
	ac.login()

	rec := ac.post("/database/author", url.Values{"given_name": {"Addy"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Given and family name are required.")
	assert.Contains(t, rec.Body.String(), `value="Addy"`, "submitted values are kept")

	rec = ac.post("/database/author", url.Values{
		"given_name": {"Addy"}, "family_name": {"Osmani"}, "lat": {"123"}, "lon": {"0"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Latitude and longitude must be decimal degrees.")

	_, err := a.Store.GetAuthor(context.Background(), "addyosmani")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminSaveResource(t *testing.T) {
	today := time.Date(2012, 6, 12, 9, 0, 0, 0, time.UTC)
	a := newTestApp(t, SiteConfig{}, WithClock(func() time.Time { return today }))
	seedSite(t, a.Store)
	ac := newAdminClient(t, a)
	ac.login()

	form := url.Values{
		"title":            {"Web Workers"},
		"description":      {"Threads"},
		"url":              {"/tutorials/workers/basics/"},
		"author":           {"ericbidelman"},
		"second_author":    {"ericbidelman"},
		"tags":             {"type:tutorial, Class:Multimedia, , workers"},
		"browser_support":  {"safari", "chrome"},
		"publication_date": {"2012-06-01"},
	}
	rec := ac.post("/database/resource", form)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	loc := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/database/resource/"), loc)

	r, err := a.Store.FindResourceByURL(context.Background(), "/tutorials/workers/basics/")
	require.NoError(t, err)
	assert.Equal(t, "Web Workers", r.Title)
	assert.Empty(t, r.SecondAuthorID, "second author equal to author is dropped")
	assert.Equal(t, []string{"type:tutorial", "class:multimedia", "workers"}, r.Tags)
	assert.Equal(t, []string{"chrome", "safari"}, r.BrowserSupport)
	assert.Equal(t, "2012-06-12", r.UpdateDate)

	rec = ac.get(loc)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Web Workers"`)

	form.Set("post_id", strings.TrimPrefix(loc, "/database/resource/"))
	form.Set("title", "Web Workers 101")
	rec = ac.post("/database/resource", form)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, loc, rec.Header().Get("Location"), "existing post ids are updated in place")
	r, err = a.Store.FindResourceByURL(context.Background(), "/tutorials/workers/basics/")
	require.NoError(t, err)
	assert.Equal(t, "Web Workers 101", r.Title)
}

func TestAdminSaveResourceValidation(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	seedSite(t, a.Store)
	ac := newAdminClient(t, a)
	ac.login()

	valid := func() url.Values {
		return url.Values{
			"title":            {"Dup"},
			"url":              {"/tutorials/new/"},
			"author":           {"ericbidelman"},
			"publication_date": {"2012-06-01"},
		}
	}
	tests := []struct {
		name string
		edit func(url.Values)
		want string
	}{
		{"unknown author", func(v url.Values) { v.Set("author", "nobody") }, "Choose an existing author."},
		{"unknown second author", func(v url.Values) { v.Set("second_author", "nobody") }, "Choose an existing second author."},
		{"bad date", func(v url.Values) { v.Set("publication_date", "June 1st") }, "Invalid publication date. Use YYYY-MM-DD."},
		{"duplicate url", func(v url.Values) { v.Set("url", "/tutorials/appcache/") }, "Another published resource already uses this URL."},
		{"missing title", func(v url.Values) { v.Set("title", "") }, "Title, URL, author and publication date are required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := valid()
			tt.edit(form)
			rec := ac.post("/database/resource", form)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}

	form := valid()
	form.Set("url", "/tutorials/appcache/")
	form.Set("draft", "on")
	rec := ac.post("/database/resource", form)
	assert.Equal(t, http.StatusSeeOther, rec.Code, "drafts may share a published URL")
}

func TestAdminResourceNotFound(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	ac := newAdminClient(t, a)
	ac.login()

	assert.Equal(t, http.StatusNotFound, ac.get("/database/resource/999").Code)
	assert.Equal(t, http.StatusNotFound, ac.get("/database/resource/abc").Code)
}

func TestAdminLiveBanner(t *testing.T) {
	now := time.Date(2012, 6, 27, 17, 0, 0, 0, time.UTC)
	a := newTestApp(t, SiteConfig{}, WithClock(func() time.Time { return now }))
	ac := newAdminClient(t, a)
	ac.login()

	rec := ac.post("/database/live", url.Values{"gdl_page_url": {" http://example.com/io "}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/database/live", rec.Header().Get("Location"))

	l, err := a.Store.LatestLiveData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/io", l.URL)
	assert.True(t, l.Updated.Equal(now), "stamped with the app clock, got %v", l.Updated)

	rec = ac.get("/database/live")
	assert.Contains(t, rec.Body.String(), `value="http://example.com/io"`)
	assert.Contains(t, rec.Body.String(), "Last updated")
}

func TestAdminActionsRefusedInProd(t *testing.T) {
	a := newTestApp(t, SiteConfig{Prod: true})
	seedSite(t, a.Store)
	ac := newAdminClient(t, a)
	ac.login()

	for _, action := range []string{"drop_all", "load_all", "load_authors"} {
		rec := ac.get("/database/" + action)
		assert.Equal(t, http.StatusForbidden, rec.Code, action)
		assert.Equal(t, notAllowedInProd, rec.Body.String())
	}
	authors, err := a.Store.ListAuthors(context.Background())
	require.NoError(t, err)
	assert.Len(t, authors, 2, "nothing was dropped")

	rec := ac.get("/database/unknown")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/database/resource", rec.Header().Get("Location"))
}

func TestAdminDropAll(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	seedSite(t, a.Store)
	ac := newAdminClient(t, a)
	ac.login()

	rec := ac.get("/database/drop_all")
	assert.Equal(t, http.StatusFound, rec.Code)
	authors, err := a.Store.ListAuthors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, authors)
}
