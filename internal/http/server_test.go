package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"monthbook/internal/auth"
	applog "monthbook/internal/log"
	"monthbook/internal/services"
	"monthbook/internal/storage/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(":0", testDeps())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func testDeps() Deps {
	store := memory.New()
	return Deps{
		Months:             services.NewMonthService(store),
		Notes:              services.NewNoteService(store),
		Auth:               auth.NewAuthenticator(store, auth.NewSessions("test-secret", time.Hour)),
		Health:             store,
		Logger:             applog.Discard(),
		RateLimitPerMinute: 1000,
	}
}

// browser replays cookies between requests the way a real client would.
type browser struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, srv *Server) *browser {
	return &browser{t: t, h: srv.Handler, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	b.h.ServeHTTP(rr, req)

	for _, c := range rr.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rr
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, path, nil)
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, path, form)
}

// follow asserts rr is a redirect and loads its target.
func (b *browser) follow(rr *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	b.t.Helper()
	if rr.Code < 300 || rr.Code > 399 {
		b.t.Fatalf("expected redirect, got %d: %s", rr.Code, rr.Body.String())
	}
	return b.get(rr.Header().Get("Location"))
}

func (b *browser) signUp(email string) {
	b.t.Helper()
	rr := b.post("/users", url.Values{
		"user[email]":                 {email},
		"user[password]":              {"secret-password"},
		"user[password_confirmation]": {"secret-password"},
	})
	if rr.Code != http.StatusSeeOther {
		b.t.Fatalf("sign up %s: status=%d body=%s", email, rr.Code, rr.Body.String())
	}
	if _, ok := b.cookies[sessionCookie]; !ok {
		b.t.Fatalf("sign up %s: no session cookie", email)
	}
}

// createMonth posts a month and returns its show path.
func (b *browser) createMonth(start, end, money string) string {
	b.t.Helper()
	rr := b.post("/months", url.Values{
		"month[start]": {start},
		"month[end]":   {end},
		"month[money]": {money},
	})
	if rr.Code != http.StatusSeeOther {
		b.t.Fatalf("create month: status=%d body=%s", rr.Code, rr.Body.String())
	}
	return rr.Header().Get("Location")
}

func (b *browser) createNote(monthPath, title, money string) string {
	b.t.Helper()
	rr := b.post(monthPath+"/notes", url.Values{
		"note[title]": {title},
		"note[money]": {money},
	})
	if rr.Code != http.StatusSeeOther {
		b.t.Fatalf("create note: status=%d body=%s", rr.Code, rr.Body.String())
	}
	return rr.Header().Get("Location")
}

func mustContain(t *testing.T, rr *httptest.ResponseRecorder, want ...string) {
	t.Helper()
	body := rr.Body.String()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("body missing %q:\n%s", w, body)
		}
	}
}

func TestHomeAndProbes(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	rr := b.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("home status=%d", rr.Code)
	}
	mustContain(t, rr, "Monthbook", "/users/sign_up")

	rr = b.get("/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("healthz body: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("healthz status=%v", health["status"])
	}

	rr = b.get("/readyz")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body.String())
	}
	var ready struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &ready); err != nil {
		t.Fatalf("readyz body: %v", err)
	}
	if ready.Status != "ready" || ready.Checks["storage"] != "ok" {
		t.Errorf("readyz = %+v", ready)
	}

	rr = b.get("/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	mustContain(t, rr, "http_requests_total", "monthbook_writes_total 0", "session_cache_entries")
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t)
	rr := newBrowser(t, srv).get("/")

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("X-Content-Type-Options=%q", rr.Header().Get("X-Content-Type-Options"))
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy")
	}
}

func TestProbeRequestsAreHidden(t *testing.T) {
	srv := newTestServer(t)
	rr := newBrowser(t, srv).get("/wp-admin/setup.php")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("probe status=%d", rr.Code)
	}
	if srv.detector.SuspiciousRequests() != 1 {
		t.Errorf("suspicious=%d", srv.detector.SuspiciousRequests())
	}
}

func TestAnonymousIsSentToSignIn(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	for _, path := range []string{"/months", "/months/new", "/months/abc", "/months/abc/notes"} {
		rr := b.get(path)
		if rr.Code != http.StatusFound {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "/users/sign_in" {
			t.Fatalf("%s location=%q", path, loc)
		}
	}

	rr := b.follow(b.post("/months", url.Values{"month[start]": {"2024-01-01"}}))
	mustContain(t, rr, msgSignInRequired)
}

func TestSignUpSignOutSignIn(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	rr := b.get("/users/sign_up")
	if rr.Code != http.StatusOK {
		t.Fatalf("sign up form status=%d", rr.Code)
	}

	b.signUp("Ada@Example.com")
	mustContain(t, b.get("/months"), "Welcome! You have signed up successfully.", "ada@example.com")

	rr = b.follow(b.post("/users/sign_out", url.Values{}))
	mustContain(t, rr, "Signed out successfully.")
	if _, ok := b.cookies[sessionCookie]; ok {
		t.Fatal("session cookie kept after sign out")
	}

	rr = b.post("/users/sign_in", url.Values{"user[email]": {"ada@example.com"}, "user[password]": {"wrong-password"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad sign in status=%d", rr.Code)
	}
	mustContain(t, rr, "Invalid email or password.")

	rr = b.post("/users/sign_in", url.Values{"user[email]": {"ADA@example.com"}, "user[password]": {"secret-password"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("sign in status=%d body=%s", rr.Code, rr.Body.String())
	}
	mustContain(t, b.follow(rr), "Signed in successfully.")
}

func TestSignUpValidation(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUp("taken@example.com")

	other := newBrowser(t, srv)
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{
			name: "duplicate email",
			form: url.Values{"user[email]": {"taken@example.com"}, "user[password]": {"secret-password"}, "user[password_confirmation]": {"secret-password"}},
			want: "has already been taken",
		},
		{
			name: "short password",
			form: url.Values{"user[email]": {"new@example.com"}, "user[password]": {"short"}, "user[password_confirmation]": {"short"}},
			want: "is too short",
		},
		{
			name: "confirmation mismatch",
			form: url.Values{"user[email]": {"new@example.com"}, "user[password]": {"secret-password"}, "user[password_confirmation]": {"other-password"}},
			want: "doesn&#39;t match password",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := other.post("/users", tt.form)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status=%d", rr.Code)
			}
			mustContain(t, rr, tt.want)
		})
	}
}

func TestMonthLifecycle(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUp("owner@example.com")

	rr := b.get("/months/new")
	if rr.Code != http.StatusOK {
		t.Fatalf("new month status=%d", rr.Code)
	}

	path := b.createMonth("2024-01-01", "2024-01-31", "1000")
	if !strings.HasPrefix(path, "/months/") {
		t.Fatalf("create location=%q", path)
	}
	rr = b.get(path)
	if rr.Code != http.StatusOK {
		t.Fatalf("show status=%d", rr.Code)
	}
	mustContain(t, rr, "Month successfully created!", "2024-01-01", "1000.00")

	rr = b.get("/months")
	mustContain(t, rr, path)

	rr = b.get(path + "/edit")
	if rr.Code != http.StatusOK {
		t.Fatalf("edit status=%d", rr.Code)
	}
	mustContain(t, rr, `value="2024-01-31"`)

	// Only money is submitted; the dates stay as stored.
	rr = b.post(path, url.Values{"_method": {"PATCH"}, "month[money]": {"1250.5"}})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != path {
		t.Fatalf("update status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	mustContain(t, b.follow(rr), "Month updated!", "1250.50", "2024-01-01")

	rr = b.post(path, url.Values{"_method": {"DELETE"}})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/months" {
		t.Fatalf("destroy status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	mustContain(t, b.follow(rr), "Month destroyed!")

	rr = b.get(path)
	if rr.Header().Get("Location") != "/months" {
		t.Fatalf("deleted month location=%q", rr.Header().Get("Location"))
	}
	mustContain(t, b.follow(rr), msgMonthNotFound)

	if got := srv.writes.Load(); got != 3 {
		t.Errorf("writes=%d, want 3", got)
	}
}

func TestMonthValidationRerendersForm(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUp("owner@example.com")
	path := b.createMonth("2024-01-01", "2024-01-31", "1000")

	tests := []struct {
		name   string
		target string
		form   url.Values
		alert  string
		want   string
	}{
		{
			name:   "create with blank money",
			target: "/months",
			form:   url.Values{"month[start]": {"2024-02-01"}, "month[end]": {"2024-02-29"}, "month[money]": {""}},
			alert:  "Month is not created!",
			want:   "can&#39;t be blank",
		},
		{
			name:   "create with end before start",
			target: "/months",
			form:   url.Values{"month[start]": {"2024-03-31"}, "month[end]": {"2024-03-01"}, "month[money]": {"10"}},
			alert:  "Month is not created!",
			want:   "must not be before start",
		},
		{
			name:   "create with taken period",
			target: "/months",
			form:   url.Values{"month[start]": {"2024-01-01"}, "month[end]": {"2024-01-31"}, "month[money]": {"10"}},
			alert:  "Month is not created!",
			want:   "has already been taken",
		},
		{
			name:   "update with bad money",
			target: path,
			form:   url.Values{"_method": {"PUT"}, "month[money]": {"lots"}},
			alert:  "Month not updated!",
			want:   `value="lots"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := b.post(tt.target, tt.form)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status=%d", rr.Code)
			}
			mustContain(t, rr, tt.alert, tt.want)
		})
	}

	mustContain(t, b.get(path), "1000.00")
}

func TestForeignMonthIsDenied(t *testing.T) {
	srv := newTestServer(t)
	owner := newBrowser(t, srv)
	owner.signUp("owner@example.com")
	path := owner.createMonth("2024-01-01", "2024-01-31", "1000")
	notePath := owner.createNote(path, "Groceries", "12.5")

	intruder := newBrowser(t, srv)
	intruder.signUp("intruder@example.com")

	requests := []struct {
		method string
		path   string
		form   url.Values
	}{
		{http.MethodGet, path, nil},
		{http.MethodGet, path + "/edit", nil},
		{http.MethodPost, path, url.Values{"_method": {"PATCH"}, "month[money]": {"1"}}},
		{http.MethodPost, path, url.Values{"_method": {"DELETE"}}},
		{http.MethodGet, path + "/notes", nil},
		{http.MethodGet, path + "/notes/new", nil},
		{http.MethodPost, path + "/notes", url.Values{"note[title]": {"x"}, "note[money]": {"1"}}},
		{http.MethodGet, notePath, nil},
		{http.MethodPost, notePath, url.Values{"_method": {"DELETE"}}},
	}
	for _, req := range requests {
		rr := intruder.do(req.method, req.path, req.form)
		if loc := rr.Header().Get("Location"); loc != "/" {
			t.Fatalf("%s %s: status=%d location=%q", req.method, req.path, rr.Code, loc)
		}
	}
	mustContain(t, intruder.get("/"), msgNotAuthorized)

	rr := owner.get(path)
	if rr.Code != http.StatusOK {
		t.Fatalf("owner show status=%d", rr.Code)
	}
	mustContain(t, rr, "Groceries", "1000.00")
}

func TestNoteLifecycle(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUp("owner@example.com")
	month := b.createMonth("2024-01-01", "2024-01-31", "100")

	rr := b.get(month + "/notes/new")
	if rr.Code != http.StatusOK {
		t.Fatalf("new note status=%d", rr.Code)
	}

	first := b.createNote(month, "Groceries", "30.25")
	mustContain(t, b.get(first), "Note has been created.", "Groceries", "30.25")
	b.createNote(month, "Rent", "80")

	rr = b.get(month + "/notes")
	if rr.Code != http.StatusOK {
		t.Fatalf("notes index status=%d", rr.Code)
	}
	mustContain(t, rr, "Groceries", "Rent", "110.25")

	mustContain(t, b.get(month), "110.25", "-10.25")

	rr = b.post(first, url.Values{"_method": {"PATCH"}, "note[money]": {""}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid note update status=%d", rr.Code)
	}
	mustContain(t, rr, "Note has not been updated.")

	rr = b.post(first, url.Values{"_method": {"PUT"}, "note[title]": {"Food"}})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != first {
		t.Fatalf("note update status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	mustContain(t, b.follow(rr), "Note has been updated.", "Food", "30.25")

	rr = b.post(first, url.Values{"_method": {"DELETE"}})
	if rr.Header().Get("Location") != month {
		t.Fatalf("note destroy location=%q", rr.Header().Get("Location"))
	}
	mustContain(t, b.follow(rr), "Note has been deleted.", "80.00")

	rr = b.get(first)
	if rr.Header().Get("Location") != month+"/notes" {
		t.Fatalf("deleted note location=%q", rr.Header().Get("Location"))
	}
	mustContain(t, b.follow(rr), msgNoteNotFound)
}

func TestNoteValidationOnCreate(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUp("owner@example.com")
	month := b.createMonth("2024-01-01", "2024-01-31", "100")

	rr := b.post(month+"/notes", url.Values{"note[title]": {""}, "note[money]": {"abc"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	mustContain(t, rr, "Note has not been created.", "can&#39;t be blank", "is not a valid amount")
}

func TestMissingMonthInNoteRoutes(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUp("owner@example.com")

	for _, path := range []string{"/months/missing/notes", "/months/missing/notes/new", "/months/missing/notes/x"} {
		rr := b.get(path)
		if loc := rr.Header().Get("Location"); loc != "/months" {
			t.Fatalf("%s location=%q", path, loc)
		}
	}
}

func TestDeleteMonthRemovesNotes(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUp("owner@example.com")
	month := b.createMonth("2024-01-01", "2024-01-31", "100")
	note := b.createNote(month, "Groceries", "30")

	b.post(month, url.Values{"_method": {"DELETE"}})

	if loc := b.get(note).Header().Get("Location"); loc != "/months" {
		t.Fatalf("note of deleted month location=%q", loc)
	}
	// The same period is free again.
	b.createMonth("2024-01-01", "2024-01-31", "100")
}

func TestUnknownMethodOverrideIsIgnored(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUp("owner@example.com")
	month := b.createMonth("2024-01-01", "2024-01-31", "100")

	rr := b.post(month, url.Values{"_method": {"TRACE"}})
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestOversizedFormsAreRejected(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUp("owner@example.com")
	path := b.createMonth("2024-01-01", "2024-01-31", "1000")
	pad := strings.Repeat("x", 70<<10)

	rr := b.post("/months", url.Values{
		"month[start]": {"2024-02-01"},
		"month[end]":   {"2024-02-29"},
		"month[money]": {"500"},
		"pad":          {pad},
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("oversized create: status=%d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = b.post(path, url.Values{
		"_method":      {"PUT"},
		"month[money]": {"2000"},
		"pad":          {pad},
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("oversized update: status=%d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = b.get(path)
	mustContain(t, rr, "1000.00")
	if got := srv.writes.Load(); got != 1 {
		t.Errorf("writes = %d, want 1", got)
	}
}

func TestTrustedProxiesFromDeps(t *testing.T) {
	deps := testDeps()
	deps.TrustedProxies = []string{"203.0.113.0/24"}
	srv, err := NewServer(":0", deps)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:443"
	r.Header.Set("X-Forwarded-For", "198.51.100.4")
	if got := srv.detector.ClientIP(r); got != "198.51.100.4" {
		t.Errorf("ClientIP = %q, want forwarded address", got)
	}

	deps = testDeps()
	deps.TrustedProxies = []string{"203.0.113.9"}
	if _, err := NewServer(":0", deps); err == nil {
		t.Error("NewServer accepted a trusted proxy that is not a CIDR")
	}
}

func TestSessionCookieIsDeadAfterSignOut(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUp("owner@example.com")
	captured := *b.cookies[sessionCookie]

	if rr := b.post("/users/sign_out", url.Values{}); rr.Code != http.StatusSeeOther {
		t.Fatalf("sign out status=%d", rr.Code)
	}

	replay := newBrowser(t, srv)
	replay.cookies[sessionCookie] = &captured
	rr := replay.get("/months")
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/users/sign_in" {
		t.Fatalf("replayed cookie: status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
}
