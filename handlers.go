package rocks

import (
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/labstack/echo/v4"
)

// handleContent serves every non-API path through the resolver.
func (a *App) handleContent(c echo.Context) error {
	r := c.Request()
	query := r.URL.Query()
	req := Request{
		Path:               r.URL.Path,
		RawQuery:           r.URL.RawQuery,
		RedirectFromLocale: query.Get("redirect_from_locale"),
		NoCache:            cacheDisabled(query),
	}
	out, err := a.Resolver.Resolve(r.Context(), req)
	if err != nil {
		return err
	}
	c.Logger().Debugf("%s resolved by %s: %s %s", req.Path, out.Step, out.Kind, out.Template+out.Location)
	return a.renderOutcome(c, req, out)
}

// cacheDisabled reports whether the request asks to bypass cached data:
// any cache parameter other than "1".
func cacheDisabled(q url.Values) bool {
	return q.Has("cache") && q.Get("cache") != "1"
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.staticDir, "favicon.ico"))
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(filepath.Join(a.staticDir, "robots.txt"))
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = a.renderError(c, http.StatusNotFound, notFoundMessage, nil)
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		if a.Config.Debug {
			a.Echo.DefaultHTTPErrorHandler(err, c)
			return
		}
		_ = a.renderError(c, code, serverErrorMessage, nil)
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
