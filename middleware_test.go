package rocks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheControlFor(t *testing.T) {
	tests := []struct {
		path    string
		noCache bool
		want    string
	}{
		{"/static/css/base.css", false, "public, max-age=31536000, immutable"},
		{"/static/css/base.css", true, "public, max-age=31536000, immutable"},
		{"/database", false, "no-store"},
		{"/database/resource/3", false, "no-store"},
		{"/databases/", false, "public, max-age=3600"},
		{"/en/tutorials/", true, "no-store"},
		{"/robots.txt", false, "public, max-age=86400"},
		{"/tutorials/webgl/shaders/index.xml", false, "public, max-age=86400"},
		{"/en/tutorials/webgl/shaders/", false, "public, max-age=3600"},
	}
	for _, tt := range tests {
		if got := cacheControlFor(tt.path, tt.noCache); got != tt.want {
			t.Errorf("cacheControlFor(%q, %v) = %q, want %q", tt.path, tt.noCache, got, tt.want)
		}
	}
}

func TestCacheDisabled(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"", false},
		{"cache=1", false},
		{"cache=0", true},
		{"cache=false", true},
		{"cache=", true},
	}
	for _, tt := range tests {
		q, err := url.ParseQuery(tt.query)
		require.NoError(t, err)
		if got := cacheDisabled(q); got != tt.want {
			t.Errorf("cacheDisabled(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestCacheParamAgreesAcrossRoutes(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	seedSite(t, a.Store)
	ctx := context.Background()

	targets := []string{"/api/tutorials", "/tags/json/webgl"}
	for _, target := range targets {
		require.Equal(t, http.StatusOK, get(t, a, target).Code, target)
	}
	require.NoError(t, a.Store.SaveResource(ctx, &Resource{Title: "Fresh", URL: "/tutorials/fresh/",
		AuthorID: "ericbidelman", Tags: []string{"type:tutorial", "webgl"}, PublicationDate: "2013-01-01"}))

	for _, target := range targets {
		assert.NotContains(t, get(t, a, target).Body.String(), "Fresh", "%s serves the cached listing", target)
		rec := get(t, a, target+"?cache=false")
		assert.Contains(t, rec.Body.String(), "Fresh", target)
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"), target)
	}
	assert.Equal(t, "no-store", get(t, a, "/en/tutorials/?cache=false").Header().Get("Cache-Control"))
}

func TestSecurityHeaders(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	rec := get(t, a, "/humans.txt")
	require.Equal(t, http.StatusOK, rec.Code)

	h := rec.Header()
	assert.Equal(t, "SAMEORIGIN", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Contains(t, h.Get("Content-Security-Policy"), "frame-src 'self' https:")
	assert.Empty(t, h.Get("Strict-Transport-Security"), "HSTS only over TLS")
}

func TestPublicPagesSetNoCSRFCookie(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	for _, c := range get(t, a, "/humans.txt").Result().Cookies() {
		assert.NotEqual(t, csrfCookie, c.Name)
	}

	var found bool
	for _, c := range get(t, a, adminPrefix+"/login/").Result().Cookies() {
		if c.Name == csrfCookie {
			found = true
			assert.Equal(t, adminPrefix, c.Path)
		}
	}
	assert.True(t, found, "login page issues a CSRF cookie")
}

func TestNonWWWRedirect(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	req := httptest.NewRequest(http.MethodGet, "/en/tutorials/", nil)
	req.Host = "www.rocks.example"
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "http://rocks.example/en/tutorials/", rec.Header().Get("Location"))
}

func TestCustomRoutes(t *testing.T) {
	a := newTestApp(t, SiteConfig{}, WithCustomRoutes(func(a *App) {
		a.Echo.GET("/healthz", func(c echo.Context) error {
			return c.String(http.StatusOK, "ok")
		})
	}))
	rec := get(t, a, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", strings.TrimSpace(rec.Body.String()))
}
