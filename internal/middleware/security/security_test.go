package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDetector_Suspicious(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{name: "normal page", method: http.MethodGet, target: "/months", want: false},
		{name: "normal form post", method: http.MethodPost, target: "/months/abc/notes", want: false},
		{name: "path traversal", method: http.MethodGet, target: "/static/../../etc/passwd", want: true},
		{name: "dotenv probe", method: http.MethodGet, target: "/.env", want: true},
		{name: "sql injection in query", method: http.MethodGet, target: "/months?id=1+UNION+SELECT", want: true},
		{name: "scanner user agent", method: http.MethodGet, target: "/", agent: "sqlmap/1.7", want: true},
		{name: "trace method", method: "TRACE", target: "/", want: true},
		{name: "long url", method: http.MethodGet, target: "/months?q=" + strings.Repeat("a", 2100), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.agent != "" {
				r.Header.Set("User-Agent", tt.agent)
			}
			if got, _ := d.Suspicious(r); got != tt.want {
				t.Errorf("Suspicious() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetector_Middleware(t *testing.T) {
	d := NewDetector()
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("probe status = %d, want 404", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/months", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("normal status = %d, want 200", rr.Code)
	}
	if d.SuspiciousRequests() != 1 {
		t.Errorf("SuspiciousRequests() = %d, want 1", d.SuspiciousRequests())
	}
}

func TestDetector_ClientIP(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{name: "direct", remote: "203.0.113.7:1234", want: "203.0.113.7"},
		{name: "untrusted peer ignores xff", remote: "203.0.113.7:1234", xff: "198.51.100.1", want: "203.0.113.7"},
		{name: "trusted proxy uses xff", remote: "10.0.0.2:80", xff: "198.51.100.1, 10.0.0.2", want: "198.51.100.1"},
		{name: "trusted proxy uses x-real-ip", remote: "127.0.0.1:80", xri: "198.51.100.9", want: "198.51.100.9"},
		{name: "invalid xff falls back", remote: "10.0.0.2:80", xff: "nonsense", want: "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}

	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Error("AddTrustedProxy(invalid) should fail")
	}
}

func TestHeaders(t *testing.T) {
	h := Headers(DefaultHeadersConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("X-Frame-Options not set")
	}
	if !strings.Contains(rr.Header().Get("Content-Security-Policy"), "form-action 'self'") {
		t.Error("CSP not set")
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}
