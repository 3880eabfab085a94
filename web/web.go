// Package web holds the HTML templates and static assets served by the
// patient entry page and the clinician dashboard.
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS

//go:embed public
var Public embed.FS
