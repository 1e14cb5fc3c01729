package web

import "embed"

// TemplatesFS embeds the HTML page templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the stylesheet and other assets.
//
//go:embed static/*
var StaticFS embed.FS
