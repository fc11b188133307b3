// Package ui embeds the device console served at the root of the HTTP API.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var files embed.FS

// Handler serves the console. index.html answers "/" and every path without
// an extension, so a reload on a client-side route still loads the app.
// Unknown assets are 404.
func Handler() http.Handler {
	static, err := fs.Sub(files, "static")
	if err != nil {
		panic(err) // the static directory is embedded at build time
	}
	return console{fsys: static}
}

type console struct {
	fsys fs.FS
}

func (c console) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" || path.Ext(name) == "" {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, c.fsys, "index.html")
		return
	}

	if info, err := fs.Stat(c.fsys, name); err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeFileFS(w, r, c.fsys, name)
}
