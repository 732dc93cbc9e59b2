package web

import "embed"

// TemplatesFS holds the page templates; layout.html carries the shared
// layout and form partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds stylesheets and other static assets.
//
//go:embed static/*
var StaticFS embed.FS
