// Package esgconsole provides embedded assets for production builds.
package esgconsole

import "embed"

// Embedded assets for production builds.
// In dev mode (IsDev=true), templates and static files are read from disk so
// edits show up without a rebuild.

//go:embed all:web/static
var StaticFS embed.FS

//go:embed all:web/templates
var TemplateFS embed.FS
