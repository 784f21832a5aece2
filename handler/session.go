package handler

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/rs/xid"

	"github.com/stockui/stock-ui/model"
	"github.com/stockui/stock-ui/util"
)

const (
	sessionName       = "session"
	sessionContextKey = "stock_session"
)

// revokedTokens maps logged out session tokens to the time their cookie
// expires anyway. Entries live in memory only.
var revokedTokens sync.Map

// LoadSession decodes the session cookie into the request context
func LoadSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		SessionFrom(c)
		return next(c)
	}
}

// ValidSession redirects anonymous visitors to the login page
func ValidSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !SessionFrom(c).Authenticated() {
			if c.Request().Method == http.MethodGet {
				return c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request().URL.RequestURI()))
			}
			return c.Redirect(http.StatusFound, "/login")
		}
		return next(c)
	}
}

// SessionFrom decodes the session cookie once per request and caches it in the context
func SessionFrom(c echo.Context) model.Session {
	if s, ok := c.Get(sessionContextKey).(model.Session); ok {
		return s
	}

	s := readSession(c)
	c.Set(sessionContextKey, s)
	return s
}

func readSession(c echo.Context) model.Session {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		log.Debugf("Ignoring unreadable session cookie: %v", err)
		return model.Session{}
	}

	userID, _ := sess.Values["user_id"].(uint)
	username, _ := sess.Values["username"].(string)
	token, _ := sess.Values["session_token"].(string)
	createdAt, _ := sess.Values["created_at"].(int64)

	if util.SessionMaxDuration > 0 && time.Now().After(sessionExpiry(time.Unix(createdAt, 0))) {
		return model.Session{}
	}
	if _, revoked := revokedTokens.Load(token); revoked {
		return model.Session{}
	}

	return model.Session{UserID: userID, Username: username, Token: token}
}

// currentUser to get username of logged in user
func currentUser(c echo.Context) string {
	return SessionFrom(c).Username
}

// createSession stores the user in a fresh session cookie
func createSession(c echo.Context, user model.User) error {
	sess, _ := session.Get(sessionName, c)
	token := xid.New().String()

	sess.Values["user_id"] = user.ID
	sess.Values["username"] = user.Username
	sess.Values["session_token"] = token
	sess.Values["created_at"] = time.Now().Unix()
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return err
	}

	c.Set(sessionContextKey, model.Session{UserID: user.ID, Username: user.Username, Token: token})
	return nil
}

func sessionExpiry(createdAt time.Time) time.Time {
	return createdAt.Add(time.Duration(util.SessionMaxDuration) * 24 * time.Hour)
}

// revokeToken rejects token from now on and forgets tokens that expired
func revokeToken(token string) {
	if token == "" {
		return
	}
	now := time.Now()
	revokedTokens.Range(func(k, v interface{}) bool {
		if util.SessionMaxDuration > 0 && now.After(v.(time.Time)) {
			revokedTokens.Delete(k)
		}
		return true
	})
	revokedTokens.Store(token, sessionExpiry(now))
}

// clearSession to remove current session
func clearSession(c echo.Context) {
	revokeToken(SessionFrom(c).Token)

	sess, _ := session.Get(sessionName, c)
	sess.Values = map[interface{}]interface{}{}
	sess.Options = &sessions.Options{Path: "/", MaxAge: -1, HttpOnly: true}
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		log.Error("Cannot clear session: ", err)
	}
	c.Set(sessionContextKey, model.Session{})
}

// addFlash queues a one-shot message for the next rendered page
func addFlash(c echo.Context, msg string) {
	sess, _ := session.Get(sessionName, c)
	sess.AddFlash(msg)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		log.Error("Cannot save flash message: ", err)
	}
}

// popFlashes returns and clears the queued messages
func popFlashes(c echo.Context) []string {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return nil
	}
	flashes := sess.Flashes()
	if len(flashes) == 0 {
		return nil
	}
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		log.Error("Cannot save session: ", err)
	}

	msgs := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if s, ok := f.(string); ok {
			msgs = append(msgs, s)
		}
	}
	return msgs
}

// safeRedirect accepts only local absolute paths
func safeRedirect(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return next
}
