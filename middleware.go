package rocks

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	sessionName    = "admin_session"
	sessionAuthKey = "authenticated"
	adminPrefix    = "/database"
	staticPrefix   = "/static/"
	csrfCookie     = "_csrf"
)

// contentSecurityPolicy allows what article pages embed: comment threads,
// off-site demo iframes, remote images and inline demo scripts.
const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' 'unsafe-eval' https:; " +
	"style-src 'self' 'unsafe-inline' https:; " +
	"img-src 'self' https: http: data:; " +
	"font-src 'self' https: data:; " +
	"frame-src 'self' https:; " +
	"media-src 'self' https: data: blob:; " +
	"connect-src 'self' https:; " +
	"worker-src 'self' blob:"

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)
	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())

	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, staticPrefix)
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: contentSecurityPolicy,
		HSTSMaxAge:            31536000,
	}))
	e.Use(session.Middleware(a.newSessionStore()))
	e.Use(a.adminCSRF())
	e.Use(cacheControl)
}

// requestLogger logs one line per request; static assets only when they fail.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				c.Logger().Errorf("%s %s -> %d (%s): %v", v.Method, v.URI, v.Status, v.Latency, v.Error)
				return nil
			}
			if strings.HasPrefix(v.URI, staticPrefix) {
				return nil
			}
			c.Logger().Infof("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	})
}

// adminCSRF protects the admin forms. Public pages carry no forms and are
// skipped so they stay cacheable without a token cookie.
func (a *App) adminCSRF() echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     csrfCookie,
		CookiePath:     adminPrefix,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.CookieSecure,
		Skipper: func(c echo.Context) bool {
			return !isAdminPath(c.Request().URL.Path)
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	})
}

func isAdminPath(p string) bool {
	return p == adminPrefix || strings.HasPrefix(p, adminPrefix+"/")
}

func cacheControl(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		c.Response().Header().Set("Cache-Control", cacheControlFor(r.URL.Path, cacheDisabled(r.URL.Query())))
		return next(c)
	}
}

// cacheControlFor picks the Cache-Control value for a request path.
func cacheControlFor(path string, noCache bool) string {
	switch {
	case strings.HasPrefix(path, staticPrefix):
		return "public, max-age=31536000, immutable"
	case isAdminPath(path) || noCache:
		return "no-store"
	case path == "/robots.txt" || strings.HasSuffix(path, ".xml"):
		return "public, max-age=86400"
	}
	return "public, max-age=3600"
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     adminPrefix,
		HttpOnly: true,
		MaxAge:   60 * 60 * 12,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// IsAdmin reports whether the request carries a signed-in admin session.
func IsAdmin(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	auth, ok := sess.Values[sessionAuthKey].(bool)
	return ok && auth
}

// saveAdminSession marks the session signed in, or expires it when signedIn
// is false.
func saveAdminSession(c echo.Context, signedIn bool) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	if signedIn {
		sess.Values[sessionAuthKey] = true
	} else {
		delete(sess.Values, sessionAuthKey)
		sess.Options.MaxAge = -1
	}
	return sess.Save(c.Request(), c.Response())
}

// CsrfToken returns the token the admin forms must echo back.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
