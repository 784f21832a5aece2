// Package templates embeds the HTML pages.
package templates

import "embed"

//go:embed *.html
var FS embed.FS
