package app

import (
	"fmt"
	"io/fs"
	"mime"
	"net/http"
)

const staticMaxAge = "public, max-age=3600"

var staticTypes = map[string]string{
	".css": "text/css; charset=utf-8",
	".js":  "text/javascript; charset=utf-8",
	".svg": "image/svg+xml",
}

// StaticHandler serves the embedded assets under /static/ with a one hour
// cache lifetime. Missing MIME registrations are added so minimal container
// images still send the right Content-Type.
func StaticHandler(assets fs.FS) (http.Handler, error) {
	for ext, typ := range staticTypes {
		if mime.TypeByExtension(ext) != "" {
			continue
		}
		if err := mime.AddExtensionType(ext, typ); err != nil {
			return nil, fmt.Errorf("register mime type %s: %w", ext, err)
		}
	}
	files := http.StripPrefix("/static/", http.FileServer(http.FS(assets)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", staticMaxAge)
		files.ServeHTTP(w, r)
	}), nil
}
