package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/stockui/stock-ui/auth"
	"github.com/stockui/stock-ui/emailer"
	"github.com/stockui/stock-ui/handler"
	"github.com/stockui/stock-ui/model"
	"github.com/stockui/stock-ui/report"
	"github.com/stockui/stock-ui/router"
	"github.com/stockui/stock-ui/store"
	"github.com/stockui/stock-ui/store/gormdb"
	"github.com/stockui/stock-ui/telegram"
	"github.com/stockui/stock-ui/templates"
	"github.com/stockui/stock-ui/upload"
	"github.com/stockui/stock-ui/util"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type sentMail struct {
	to          string
	subject     string
	attachments []emailer.Attachment
}

type fakeMailer struct {
	sent []sentMail
}

func (f *fakeMailer) Send(toName string, to string, subject string, content string, attachments []emailer.Attachment) error {
	f.sent = append(f.sent, sentMail{to: to, subject: subject, attachments: attachments})
	return nil
}

type testEnv struct {
	t       *testing.T
	db      store.IStore
	uploads *upload.Storage
	mailer  *fakeMailer
	server  *httptest.Server
	client  *http.Client
	jar     http.CookieJar
}

type envOptions struct {
	csrf      bool
	rateLimit int
	noMailer  bool
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	util.DisableCSRF = !opts.csrf
	util.SessionMaxDuration = 1
	util.MaxUploadSize = "1M"
	util.LoginRateLimit = opts.rateLimit

	dir := t.TempDir()
	db, err := gormdb.NewSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Init())
	require.NoError(t, auth.SeedAdmin(db, "admin", "adminpassword", ""))

	uploads := upload.New(filepath.Join(dir, "uploads"))
	require.NoError(t, uploads.Init())

	env := &testEnv{t: t, db: db, uploads: uploads, mailer: &fakeMailer{}}
	var mailer emailer.Emailer = env.mailer
	if opts.noMailer {
		mailer = nil
	}
	tg := telegram.New("", 0)

	app := router.New(templates.FS, map[string]string{"appVersion": "test"}, testSecret)
	handler.Register(app, db, uploads, mailer, tg)

	env.server = httptest.NewServer(app)
	t.Cleanup(env.server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	env.jar = jar
	env.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return env
}

func (env *testEnv) get(path string) (*http.Response, string) {
	env.t.Helper()
	resp, err := env.client.Get(env.server.URL + path)
	require.NoError(env.t, err)
	return resp, readBody(env.t, resp)
}

func (env *testEnv) postForm(path string, form url.Values) (*http.Response, string) {
	env.t.Helper()
	resp, err := env.client.PostForm(env.server.URL+path, form)
	require.NoError(env.t, err)
	return resp, readBody(env.t, resp)
}

func (env *testEnv) postMultipart(path string, fields map[string]string, filename string, content []byte) (*http.Response, string) {
	env.t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(env.t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("image", filename)
		require.NoError(env.t, err)
		_, err = part.Write(content)
		require.NoError(env.t, err)
	}
	require.NoError(env.t, w.Close())

	resp, err := env.client.Post(env.server.URL+path, w.FormDataContentType(), body)
	require.NoError(env.t, err)
	return resp, readBody(env.t, resp)
}

func (env *testEnv) login() {
	env.t.Helper()
	resp, _ := env.postForm("/login", url.Values{"username": {"admin"}, "password": {"adminpassword"}})
	require.Equal(env.t, http.StatusFound, resp.StatusCode)
	require.Equal(env.t, "/", resp.Header.Get("Location"))
}

func (env *testEnv) products() []model.Product {
	env.t.Helper()
	resp, body := env.get("/api/products")
	require.Equal(env.t, http.StatusOK, resp.StatusCode)

	var products []model.Product
	require.NoError(env.t, json.Unmarshal([]byte(body), &products))
	return products
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp, body := env.get("/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestUnauthenticatedRedirects(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for _, path := range []string{"/", "/add", "/analytics", "/download_excel", "/api/products", "/label/1"} {
		resp, _ := env.get(path)
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/login?next="+url.QueryEscape(path), resp.Header.Get("Location"), path)
	}

	resp, _ := env.postForm("/update/1", url.Values{"quantity": {"3"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = env.postForm("/delete/1", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp, body := env.get("/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `name="password"`)

	resp, body = env.postForm("/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Invalid username or password")

	resp, unknownBody := env.postForm("/login", url.Values{"username": {"ghost"}, "password": {"adminpassword"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, unknownBody, "Invalid username or password")

	env.login()
	resp, body = env.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "admin")

	// a logged in user skips the login form
	resp, _ = env.get("/login")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLogin_Next(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp, _ := env.postForm("/login", url.Values{"username": {"admin"}, "password": {"adminpassword"}, "next": {"/analytics"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/analytics", resp.Header.Get("Location"))

	for _, next := range []string{"//evil.example", "https://evil.example/", `/\evil.example`} {
		resp, _ = env.postForm("/login", url.Values{"username": {"admin"}, "password": {"adminpassword"}, "next": {next}})
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"), next)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.login()

	resp, _ := env.get("/logout")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = env.get("/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLogin_RateLimited(t *testing.T) {
	env := newTestEnv(t, envOptions{rateLimit: 2})

	for i := 0; i < 2; i++ {
		resp, _ := env.postForm("/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := env.postForm("/login", url.Values{"username": {"admin"}, "password": {"adminpassword"}})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body, "Too many login attempts")
}

func TestCSRF(t *testing.T) {
	env := newTestEnv(t, envOptions{csrf: true})

	resp, _ := env.postForm("/login", url.Values{"username": {"admin"}, "password": {"adminpassword"}})
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusForbidden}, resp.StatusCode)

	resp, body := env.get("/login")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	start := strings.Index(body, `name="csrf_token" value="`)
	require.NotEqual(t, -1, start)
	token := body[start+len(`name="csrf_token" value="`):]
	token = token[:strings.Index(token, `"`)]
	require.NotEmpty(t, token)

	resp, _ = env.postForm("/login", url.Values{"username": {"admin"}, "password": {"adminpassword"}, "csrf_token": {token}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestAddProduct(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.login()

	resp, body := env.get("/add")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `enctype="multipart/form-data"`)

	resp, _ = env.postMultipart("/add", map[string]string{"name": "Bolt", "quantity": "3"}, "../Bolt photo.png", []byte("png-bytes"))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = env.postMultipart("/add", map[string]string{"name": "Nut", "quantity": "7"}, "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	products := env.products()
	require.Len(t, products, 2)
	assert.Equal(t, "Bolt", products[0].Name)
	assert.Equal(t, 3, products[0].Quantity)
	assert.Equal(t, "Bolt_photo.png", products[0].ImageName())
	assert.Equal(t, "Nut", products[1].Name)
	assert.Nil(t, products[1].Image)

	resp, body = env.get("/uploads/Bolt_photo.png")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png-bytes", body)

	resp, body = env.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Bolt")
	assert.Contains(t, body, "/uploads/Bolt_photo.png")
	assert.Contains(t, body, "Nut")
}

func TestAddProduct_BadInput(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.login()

	cases := []map[string]string{
		{"name": "Bolt", "quantity": "abc"},
		{"name": "Bolt"},
		{"name": "Bolt", "quantity": "-1"},
		{"quantity": "3"},
	}
	for _, fields := range cases {
		resp, _ := env.postMultipart("/add", fields, "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, fields)
	}

	resp, _ := env.postMultipart("/add", map[string]string{"name": "Bolt", "quantity": "1"}, "../..", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, env.products())
}

func TestUpdateQuantity(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.login()

	p := model.Product{Name: "Bolt", Quantity: 3}
	require.NoError(t, env.db.CreateProduct(&p))
	path := "/update/" + itoa(p.ID)

	resp, _ := env.postForm(path, url.Values{"quantity": {"12"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, 12, env.products()[0].Quantity)

	resp, _ = env.postForm(path, url.Values{"quantity": {"abc"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, 12, env.products()[0].Quantity)

	resp, _ = env.postForm("/update/999", url.Values{"quantity": {"1"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.postForm("/update/abc", url.Values{"quantity": {"1"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.login()

	p := model.Product{Name: "Bolt", Quantity: 3}
	require.NoError(t, env.db.CreateProduct(&p))

	resp, _ := env.postForm("/delete/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.postForm("/delete/"+itoa(p.ID), nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Empty(t, env.products())

	resp, _ = env.postForm("/delete/"+itoa(p.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalytics(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.login()

	for _, p := range []model.Product{{Name: "Bolt", Quantity: 3}, {Name: "Nut", Quantity: 7}} {
		p := p
		require.NoError(t, env.db.CreateProduct(&p))
	}

	resp, body := env.get("/analytics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<td>10</td>")
	assert.Contains(t, body, "<td>2</td>")

	resp, body = env.get("/api/analytics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var summary model.Summary
	require.NoError(t, json.Unmarshal([]byte(body), &summary))
	assert.Equal(t, model.Summary{TotalQuantity: 10, ItemCount: 2}, summary)
}

func TestDownloadExcel(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.login()

	for _, p := range []model.Product{{Name: "Bolt", Quantity: 3}, {Name: "Nut", Quantity: 7}} {
		p := p
		require.NoError(t, env.db.CreateProduct(&p))
	}

	resp, body := env.get("/download_excel")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, report.SpreadsheetMIME, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "products.xlsx")

	f, err := excelize.OpenReader(strings.NewReader(body))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "Quantity"}, {"Bolt", "3"}, {"Nut", "7"}}, rows)
}

func TestProductLabel(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.login()

	p := model.Product{Name: "Bolt", Quantity: 3}
	require.NoError(t, env.db.CreateProduct(&p))

	resp, body := env.get("/label/" + itoa(p.ID))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "\x89PNG"))

	resp, _ = env.get("/label/999")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendReport_Email(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.login()

	p := model.Product{Name: "Bolt", Quantity: 3}
	require.NoError(t, env.db.CreateProduct(&p))

	resp, _ := env.postForm("/send_report", url.Values{"channel": {"email"}, "email": {"Jane <jane@example.com>"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/analytics", resp.Header.Get("Location"))

	require.Len(t, env.mailer.sent, 1)
	mail := env.mailer.sent[0]
	assert.Equal(t, "jane@example.com", mail.to)
	assert.Equal(t, util.DefaultEmailSubject, mail.subject)
	require.Len(t, mail.attachments, 1)
	assert.Equal(t, "products.xlsx", mail.attachments[0].Name)
	assert.Equal(t, report.SpreadsheetMIME, mail.attachments[0].MimeType)
	assert.NotEmpty(t, mail.attachments[0].Data)

	_, body := env.get("/analytics")
	assert.Contains(t, body, "Report sent to jane@example.com")

	resp, _ = env.postForm("/send_report", url.Values{"channel": {"email"}, "email": {"not an address"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.postForm("/send_report", url.Values{"channel": {"fax"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendReport_Unconfigured(t *testing.T) {
	env := newTestEnv(t, envOptions{noMailer: true})
	env.login()

	resp, _ := env.postForm("/send_report", url.Values{"channel": {"email"}, "email": {"jane@example.com"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	_, body := env.get("/analytics")
	assert.Contains(t, body, "Email delivery is not configured")

	resp, _ = env.postForm("/send_report", url.Values{"channel": {"telegram"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	_, body = env.get("/analytics")
	assert.Contains(t, body, "Cannot send report to Telegram")
	assert.NotContains(t, body, `value="telegram"`)
}

func itoa(id int) string {
	return strconv.Itoa(id)
}

func (env *testEnv) sessionCookie() *http.Cookie {
	env.t.Helper()
	u, err := url.Parse(env.server.URL)
	require.NoError(env.t, err)
	for _, ck := range env.jar.Cookies(u) {
		if ck.Name == "session" {
			return &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"}
		}
	}
	env.t.Fatal("no session cookie")
	return nil
}

func (env *testEnv) setCookie(ck *http.Cookie) {
	env.t.Helper()
	u, err := url.Parse(env.server.URL)
	require.NoError(env.t, err)
	env.jar.SetCookies(u, []*http.Cookie{ck})
}

func (env *testEnv) signedSession(createdAt time.Time) *http.Cookie {
	env.t.Helper()
	user, err := env.db.GetUserByName("admin")
	require.NoError(env.t, err)

	values := map[interface{}]interface{}{
		"user_id":       user.ID,
		"username":      user.Username,
		"session_token": "c0ffee" + strconv.FormatInt(createdAt.UnixNano(), 36),
		"created_at":    createdAt.Unix(),
	}
	encoded, err := securecookie.EncodeMulti("session", values, router.NewSessionStore(testSecret).Codecs...)
	require.NoError(env.t, err)
	return &http.Cookie{Name: "session", Value: encoded, Path: "/"}
}

func TestSession_Expires(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	env.setCookie(env.signedSession(time.Now().Add(-time.Hour)))
	resp, _ := env.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env.setCookie(env.signedSession(time.Now().Add(-25 * time.Hour)))
	resp, _ = env.get("/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?next=%2F", resp.Header.Get("Location"))
}

func TestLogout_RevokesCookie(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.login()
	captured := env.sessionCookie()

	resp, _ := env.get("/logout")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	env.setCookie(captured)
	resp, _ = env.get("/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?next=%2F", resp.Header.Get("Location"))

	// a fresh login still works
	env.login()
	resp, _ = env.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploads_Headers(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.login()

	resp, _ := env.postMultipart("/add", map[string]string{"name": "Page", "quantity": "1"}, "page.html", []byte("<script>alert(1)</script>"))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	resp, _ = env.postMultipart("/add", map[string]string{"name": "Bolt", "quantity": "1"}, "bolt.png", []byte("png-bytes"))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, _ = env.get("/uploads/page.html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "attachment", resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "sandbox")

	resp, _ = env.get("/uploads/bolt.png")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	require.NoError(t, os.WriteFile(filepath.Join(env.uploads.Dir, ".bolt.png123"), []byte("partial"), 0o644))
	resp, _ = env.get("/uploads/.bolt.png123")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
