// Package assets bundles the files the server itself needs: the stylesheets
// and scripts referenced by generated directory listings and the default
// not-found page.
package assets

import (
	"embed"
	"io/fs"
)

// Prefix is the reserved URL prefix under which bundled files are served.
const Prefix = "/__server_assets__/"

// NotFoundDocument is the bundle entry used as the server's own 404 page.
const NotFoundDocument = "404.html"

//go:embed static
var embedded embed.FS

// FS returns the bundle rooted at its top-level directory, so "common.css"
// names the stylesheet directly.
func FS() fs.FS {
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		// "static" is a compile-time constant embedded above.
		panic(err)
	}
	return sub
}
