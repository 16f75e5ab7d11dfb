// Package site serves the embedded operator console.
package site

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// Router is the part of a chi router the console is mounted on.
type Router interface {
	Get(pattern string, h http.HandlerFunc)
	Handle(pattern string, h http.Handler)
}

// FS returns the console files rooted at static/.
func FS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return http.FS(staticFS)
	}
	return http.FS(sub)
}

// Register attaches the console routes to r.
// Routes:
//
//	GET /          -> console page
//	GET /assets/*  -> console scripts and styles
func Register(_ context.Context, r Router) {
	if r == nil {
		panic("router is nil")
	}
	files := http.FileServer(FS())
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		files.ServeHTTP(w, req)
	})
	r.Handle("/assets/*", files)
}
