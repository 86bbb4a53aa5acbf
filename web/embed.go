// Package web provides the embedded dashboard templates and static assets.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed templates static
var files embed.FS

// Templates returns a filesystem rooted at the templates directory.
func Templates() (fs.FS, error) {
	return fs.Sub(files, "templates")
}

// Static returns the static assets as an http.FileSystem.
func Static() (http.FileSystem, error) {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		return nil, err
	}
	return http.FS(sub), nil
}
