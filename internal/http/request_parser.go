// Package http serves the HTML interface: months, notes, sign up and sign in.
//
// This file turns submitted forms into service parameters. Fields may be sent
// either scoped ("month[start]") or bare ("start"); a field that is absent
// from the form stays nil so updates only touch what was submitted.

package http

import (
	"net/http"
	"net/url"
	"strings"

	"monthbook/internal/core"
)

// maxFormBytes bounds the size of a submitted form.
const maxFormBytes = 64 << 10

// scopedField looks up scope[key], then key. The second result reports
// whether the form carried the field at all.
func scopedField(form url.Values, scope, key string) (string, bool) {
	if vs, ok := form[scope+"["+key+"]"]; ok && len(vs) > 0 {
		return vs[0], true
	}
	if vs, ok := form[key]; ok && len(vs) > 0 {
		return vs[0], true
	}
	return "", false
}

// optional returns a pointer to the sanitized field value, or nil when the
// field was not submitted.
func optional(form url.Values, scope, key string) *string {
	v, ok := scopedField(form, scope, key)
	if !ok {
		return nil
	}
	v = sanitizeInput(v)
	return &v
}

func parseForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.PostForm, nil
}

func parseMonthParams(w http.ResponseWriter, r *http.Request) (core.MonthParams, error) {
	form, err := parseForm(w, r)
	if err != nil {
		return core.MonthParams{}, err
	}
	return core.MonthParams{
		Start: optional(form, "month", "start"),
		End:   optional(form, "month", "end"),
		Money: optional(form, "month", "money"),
	}, nil
}

func parseNoteParams(w http.ResponseWriter, r *http.Request) (core.NoteParams, error) {
	form, err := parseForm(w, r)
	if err != nil {
		return core.NoteParams{}, err
	}
	return core.NoteParams{
		Title: optional(form, "note", "title"),
		Money: optional(form, "note", "money"),
	}, nil
}

func parseSignUpParams(w http.ResponseWriter, r *http.Request) (core.SignUpParams, error) {
	form, err := parseForm(w, r)
	if err != nil {
		return core.SignUpParams{}, err
	}
	email, _ := scopedField(form, "user", "email")
	password, _ := scopedField(form, "user", "password")
	confirmation, _ := scopedField(form, "user", "password_confirmation")
	return core.SignUpParams{
		Email:                sanitizeInput(email),
		Password:             password,
		PasswordConfirmation: confirmation,
	}, nil
}

// parseCredentials returns the sign in email and password. Passwords are
// never trimmed.
func parseCredentials(w http.ResponseWriter, r *http.Request) (string, string, error) {
	form, err := parseForm(w, r)
	if err != nil {
		return "", "", err
	}
	email, _ := scopedField(form, "user", "email")
	password, _ := scopedField(form, "user", "password")
	return sanitizeInput(email), password, nil
}

// sanitizeInput trims whitespace and drops control characters other than
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// methodOverride lets HTML forms reach PUT, PATCH and DELETE routes by
// posting a _method field. An unparseable form is rejected here: later
// ParseForm calls would report success with an empty PostForm.
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if _, err := parseForm(w, r); err != nil {
				BadRequestError("Malformed form").Write(w, r)
				return
			}
			switch m := strings.ToUpper(r.PostForm.Get("_method")); m {
			case http.MethodPut, http.MethodPatch, http.MethodDelete:
				r = r.WithContext(r.Context())
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}
