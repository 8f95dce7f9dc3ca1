package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/relay"
	"github.com/Zachkp/portfolio/internal/store"
)

type harness struct {
	srv        *Server
	forms      *contact.Registry
	store      *store.Store
	relayCalls *atomic.Int32
}

func newHarness(t *testing.T, relayHandler http.HandlerFunc) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	calls := new(atomic.Int32)
	relaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		relayHandler(w, r)
	}))
	t.Cleanup(relaySrv.Close)

	cfg := &config.Config{
		Address: ":0",
		Contact: config.Contact{
			AutoDismiss:   50 * time.Millisecond,
			FormTTL:       time.Minute,
			SweepInterval: time.Minute,
		},
		Admin: config.Admin{Username: "root", Password: "hunter2"},
	}

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "metrics.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c, err := content.Default()
	require.NoError(t, err)

	sender := relay.NewFormspree(relaySrv.URL, time.Second, nil)
	forms := contact.NewRegistry(sender, cfg.Contact.FormTTL, 0, nil, contact.WithAutoDismiss(cfg.Contact.AutoDismiss))

	srv, err := New(Deps{Config: cfg, Content: c, Forms: forms, Store: st})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	t.Cleanup(forms.Close)

	return &harness{srv: srv, forms: forms, store: st, relayCalls: calls}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(w, req)
	return w
}

func postForm(path string, vals url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func annValues() url.Values {
	return url.Values{"name": {"Ann"}, "email": {"ann@x.com"}, "message": {"Hi"}}
}

func replyJSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestIndexRendersSectionsWithDraftForm(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusOK, `{}`))

	w := h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, id := range content.Sections {
		assert.Contains(t, body, `id="`+id+`"`)
	}
	assert.Contains(t, body, `hx-post="/contact/`)
	assert.Contains(t, body, "Feedback-Automation")
	assert.Zero(t, h.forms.Len(), "page loads do not allocate forms")
}

func TestAnonymousTrafficDoesNotGrowRegistry(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusOK, `{}`))

	for i := 0; i < 20; i++ {
		h.do(httptest.NewRequest(http.MethodGet, "/", nil))
		h.do(httptest.NewRequest(http.MethodGet, "/contact-form", nil))
		h.do(httptest.NewRequest(http.MethodGet, "/contact/"+uuid.NewString(), nil))
		h.do(postForm("/contact/bogus-"+strconv.Itoa(i), annValues()))
		h.do(httptest.NewRequest(http.MethodDelete, "/contact/"+uuid.NewString()+"/status", nil))
	}
	assert.Zero(t, h.forms.Len())
	assert.Zero(t, h.relayCalls.Load())
}

func TestDraftFormIsAllocatedOnSubmit(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusOK, `{}`))

	w := h.do(httptest.NewRequest(http.MethodGet, "/contact-form", nil))
	require.Equal(t, http.StatusOK, w.Code)
	m := regexp.MustCompile(`hx-post="/contact/([0-9a-f-]+)"`).FindStringSubmatch(w.Body.String())
	require.Len(t, m, 2)

	w = h.do(postForm("/contact/"+m[1], annValues()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), contact.MsgSent)
	assert.EqualValues(t, 1, h.relayCalls.Load())

	form, err := h.forms.Get(m[1])
	require.NoError(t, err)
	assert.Equal(t, contact.Succeeded, form.Status().Phase)
}

func TestContactSubmitSuccess(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusOK, `{"ok":true}`))
	form := h.forms.Open()

	w := h.do(postForm("/contact/"+form.ID(), annValues()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), contact.MsgSent)
	assert.Contains(t, w.Body.String(), `value=""`)
	assert.NotContains(t, w.Body.String(), "ann@x.com")
	assert.Contains(t, w.Body.String(), `hx-delete="/contact/`+form.ID()+`/status" hx-trigger="load delay:50ms"`)
	assert.EqualValues(t, 1, h.relayCalls.Load())

	require.Eventually(t, func() bool {
		return form.Status().Phase == contact.Idle
	}, time.Second, 5*time.Millisecond)

	w = h.do(httptest.NewRequest(http.MethodGet, "/contact/"+form.ID(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), contact.MsgSent)

	h.srv.Close()
	stats, err := h.store.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.SubmissionsSent)
}

func TestContactSubmitFieldErrors(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusUnprocessableEntity,
		`{"errors":[{"field":"email","message":"Invalid"}]}`))
	form := h.forms.Open()

	w := h.do(postForm("/contact/"+form.ID(), annValues()))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, contact.MsgCorrectErrors)
	assert.Contains(t, body, "Invalid")
	assert.Contains(t, body, "ann@x.com", "typed values stay in the inputs")
	assert.Equal(t, "Invalid", form.View().Error("email"))
	assert.Equal(t, contact.Failed, form.Status().Phase)
}

func TestContactMissingFieldNeverReachesRelay(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusOK, `{}`))
	form := h.forms.Open()

	vals := annValues()
	vals.Del("email")
	w := h.do(postForm("/contact/"+form.ID(), vals))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Please fill out this field.")
	assert.Zero(t, h.relayCalls.Load())
	assert.Equal(t, contact.Idle, form.Status().Phase)
}

func TestContactDismiss(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusInternalServerError, `{}`))
	form := h.forms.Open()

	w := h.do(postForm("/contact/"+form.ID(), annValues()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), contact.MsgSendFailed)

	for i := 0; i < 2; i++ {
		w = h.do(httptest.NewRequest(http.MethodDelete, "/contact/"+form.ID()+"/status", nil))
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `role="status"`)
		assert.NotContains(t, body, contact.MsgSendFailed)
		assert.NotContains(t, body, "<form", "only the banner is replaced")
		assert.NotContains(t, body, `name="email"`)
		assert.Equal(t, contact.Idle, form.Status().Phase)
	}
}

func TestContactDismissKeepsFieldErrors(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusUnprocessableEntity,
		`{"errors":[{"field":"email","message":"Invalid"}]}`))
	form := h.forms.Open()

	w := h.do(postForm("/contact/"+form.ID(), annValues()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `hx-target="closest [role=status]"`)

	w = h.do(httptest.NewRequest(http.MethodDelete, "/contact/"+form.ID()+"/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), contact.MsgCorrectErrors)
	assert.Equal(t, "Invalid", form.View().Error("email"))
}

func TestContactSubmitWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	})
	form := h.forms.Open()

	first := make(chan int)
	go func() {
		first <- h.do(postForm("/contact/"+form.ID(), annValues())).Code
	}()
	require.Eventually(t, func() bool {
		return form.Status().Phase == contact.Submitting
	}, time.Second, time.Millisecond)

	poll := `hx-get="/contact/` + form.ID() + `" hx-trigger="load delay:1s"`
	w := h.do(postForm("/contact/"+form.ID(), annValues()))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Sending...")
	assert.Contains(t, w.Body.String(), poll, "the locked form refreshes itself")

	w = h.do(httptest.NewRequest(http.MethodGet, "/contact/"+form.ID(), nil))
	assert.Contains(t, w.Body.String(), poll)

	close(release)
	assert.Equal(t, http.StatusOK, <-first)
	assert.EqualValues(t, 1, h.relayCalls.Load())

	w = h.do(httptest.NewRequest(http.MethodGet, "/contact/"+form.ID(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Sending...")
	assert.NotContains(t, w.Body.String(), poll)
}

func TestContactUnknownFormGetsFreshView(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusOK, `{}`))

	w := h.do(postForm("/contact/does-not-exist", annValues()))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `hx-post="/contact/`)
	assert.Contains(t, w.Body.String(), "ann@x.com")
	assert.Zero(t, h.relayCalls.Load())
	assert.Zero(t, h.forms.Len())
}

func TestThemeToggle(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusOK, `{}`))

	req := httptest.NewRequest(http.MethodPost, "/theme", nil)
	w := h.do(req)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "theme=light")

	req = httptest.NewRequest(http.MethodPost, "/theme", nil)
	req.Header.Set("Cookie", "theme=light")
	req.Header.Set("HX-Request", "true")
	w = h.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "true", w.Header().Get("HX-Refresh"))
	assert.Contains(t, w.Header().Get("Set-Cookie"), "theme=dark")
}

func TestAdminLogin(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusOK, `{}`))

	w := h.do(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))

	w = h.do(postForm("/admin/login", url.Values{"username": {"root"}, "password": {"wrong"}}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(postForm("/admin/login", url.Values{"username": {"root"}, "password": {"hunter2"}}))
	require.Equal(t, http.StatusFound, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil)
	req.AddCookie(cookies[0])
	w = h.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_visitors"`)
}

func TestAdminTokenRotates(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusOK, `{}`))

	login := func() *http.Cookie {
		w := h.do(postForm("/admin/login", url.Values{"username": {"root"}, "password": {"hunter2"}}))
		require.Equal(t, http.StatusFound, w.Code)
		cookies := w.Result().Cookies()
		require.NotEmpty(t, cookies)
		return cookies[0]
	}
	statsWith := func(c *http.Cookie) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil)
		req.AddCookie(c)
		return h.do(req).Code
	}

	first := login()
	second := login()
	assert.NotEqual(t, first.Value, second.Value)
	assert.Equal(t, http.StatusFound, statsWith(first))
	assert.Equal(t, http.StatusOK, statsWith(second))

	req := httptest.NewRequest(http.MethodGet, "/admin/logout", nil)
	req.AddCookie(second)
	assert.Equal(t, http.StatusFound, h.do(req).Code)

	assert.Equal(t, http.StatusFound, statsWith(second))
	assert.Equal(t, http.StatusFound, statsWith(&http.Cookie{Name: adminCookie, Value: ""}))
}

func TestVisitorTrackingRespectsDNT(t *testing.T) {
	h := newHarness(t, replyJSON(http.StatusOK, `{}`))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("DNT", "1")
	h.do(req)
	h.do(httptest.NewRequest(http.MethodGet, "/privacy", nil))
	h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	h.srv.Close()

	stats, err := h.store.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalVisitors)
}
