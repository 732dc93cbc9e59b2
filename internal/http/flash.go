package http

import (
	"encoding/base64"
	"net/http"
	"time"
)

type flashKind string

const (
	flashNotice flashKind = "notice"
	flashAlert  flashKind = "alert"

	flashCookiePrefix = "monthbook_flash_"
	flashMaxAge       = 60 * time.Second
)

type flashMessage struct {
	kind flashKind
	text string
}

func setFlash(w http.ResponseWriter, r *http.Request, f flashMessage) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookiePrefix + string(f.kind),
		Value:    base64.RawURLEncoding.EncodeToString([]byte(f.text)),
		Path:     "/",
		MaxAge:   int(flashMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash reads a pending message of kind and expires its cookie.
func takeFlash(w http.ResponseWriter, r *http.Request, kind flashKind) string {
	c, err := r.Cookie(flashCookiePrefix + string(kind))
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	text, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return ""
	}
	return string(text)
}
