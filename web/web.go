// Package web embeds the registration page served at the site root.
package web

import (
	"embed"
	"io/fs"
)

// Page names, relative to Static().
const (
	AccountPage = "index.html"
	ContactPage = "contact.html"
)

//go:embed static
var content embed.FS

// Static returns the embedded assets rooted at the static directory.
func Static() fs.FS {
	sub, err := fs.Sub(content, "static")
	if err != nil {
		// "static" is embedded above, fs.Sub only fails on an invalid path.
		panic(err)
	}
	return sub
}
