package router

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"reflect"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/stockui/stock-ui/util"
)

// pages rendered inside base.html
var layoutPages = []string{"index.html", "add_product.html", "analytics.html"}

// TemplateRegistry is a custom html/template renderer for Echo framework
type TemplateRegistry struct {
	templates map[string]*template.Template
	extraData map[string]string
}

// Render e.Renderer interface
func (t *TemplateRegistry) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := t.templates[name]
	if !ok {
		err := errors.New("Template not found -> " + name)
		return err
	}

	// inject more app data information. E.g. appVersion
	if data != nil && reflect.TypeOf(data).Kind() == reflect.Map {
		for k, v := range t.extraData {
			data.(map[string]interface{})[k] = v
		}
	}

	// login page does not need the base layout
	if name == "login.html" {
		return tmpl.Execute(w, data)
	}

	return tmpl.ExecuteTemplate(w, "base.html", data)
}

// NewTemplateRegistry parses the embedded pages
func NewTemplateRegistry(tmplDir fs.FS, extraData map[string]string) (*TemplateRegistry, error) {
	tmplBaseString, err := util.StringFromEmbedFile(tmplDir, "base.html")
	if err != nil {
		return nil, err
	}

	tmplLoginString, err := util.StringFromEmbedFile(tmplDir, "login.html")
	if err != nil {
		return nil, err
	}

	templates := make(map[string]*template.Template)
	templates["login.html"], err = template.New("login.html").Parse(tmplLoginString)
	if err != nil {
		return nil, err
	}

	for _, name := range layoutPages {
		page, err := util.StringFromEmbedFile(tmplDir, name)
		if err != nil {
			return nil, err
		}
		templates[name], err = template.New(name).Parse(tmplBaseString + page)
		if err != nil {
			return nil, err
		}
	}

	return &TemplateRegistry{
		templates: templates,
		extraData: extraData,
	}, nil
}

// NewSessionStore returns the signed cookie store holding the login session
func NewSessionStore(secret []byte) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * int(util.SessionMaxDuration),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// New function
func New(tmplDir fs.FS, extraData map[string]string, secret []byte) *echo.Echo {
	e := echo.New()
	e.Use(session.Middleware(NewSessionStore(secret)))

	registry, err := NewTemplateRegistry(tmplDir, extraData)
	if err != nil {
		log.Fatal(err)
	}

	lvl, err := util.ParseLogLevel(util.LookupEnvOrString(util.LogLevel, "INFO"))
	if err != nil {
		log.Fatal(err)
	}
	logConfig := middleware.DefaultLoggerConfig
	logConfig.Skipper = func(c echo.Context) bool {
		resp := c.Response()
		if resp.Status >= 500 && lvl > log.ERROR { // do not log if response is 5XX but log level is higher than ERROR
			return true
		} else if resp.Status >= 400 && lvl > log.WARN { // do not log if response is 4XX but log level is higher than WARN
			return true
		} else if lvl > log.DEBUG { // do not log if log level is higher than DEBUG
			return true
		}
		return false
	}

	e.Logger.SetLevel(lvl)
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.LoggerWithConfig(logConfig))
	e.Use(middleware.Recover())
	if util.MaxUploadSize != "" {
		e.Use(middleware.BodyLimit(util.MaxUploadSize))
	}
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper: func(echo.Context) bool {
			return util.DisableCSRF
		},
		TokenLookup:    "form:csrf_token",
		ContextKey:     "csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	}))
	e.HideBanner = true
	e.HidePort = lvl > log.INFO // hide the port output if the log level is higher than INFO
	e.Validator = NewValidator()
	e.Renderer = registry

	return e
}
