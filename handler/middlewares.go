package handler

import (
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/time/rate"
)

// LoginRateLimiter throttles login attempts per client IP to perMinute requests.
// A non-positive limit disables throttling.
func LoginRateLimiter(perMinute int) echo.MiddlewareFunc {
	if perMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     perMinute,
		ExpiresIn: 3 * time.Minute,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().Method != http.MethodPost
		},
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			log.Warnf("Too many login attempts from %s", identifier)
			return c.Render(http.StatusTooManyRequests, "login.html", map[string]interface{}{
				"error":     "Too many login attempts, try again later",
				"next":      c.FormValue("next"),
				"csrfToken": csrfToken(c),
			})
		},
	})
}

var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".bmp": {}, ".ico": {},
}

// UploadHeaders hides dot files of the upload directory and keeps stored
// files from running as active content on the app's origin. Anything that
// is not a raster image is served as a download.
func UploadHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		name := path.Base(c.Request().URL.Path)
		if strings.HasPrefix(name, ".") {
			return echo.NewHTTPError(http.StatusNotFound, "Not Found")
		}

		h := c.Response().Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'none'; sandbox")
		if _, ok := imageExtensions[strings.ToLower(path.Ext(name))]; !ok {
			h.Set(echo.HeaderContentDisposition, "attachment")
		}
		return next(c)
	}
}
