// Package server exposes the webhook endpoint, the call control API and
// the websocket event stream, plus the embedded dashboard.
package server

import (
	"io/fs"
	"log"
	"net/http"
	"path"
	"strings"
)

func Handler(staticFS fs.FS, hub *Hub, store CallStore, controller CallController, sink WebhookSink, controls ControlHooks) http.Handler {
	mux := http.NewServeMux()

	registerWebhookRoute(mux, sink)
	registerWSRoute(mux, hub)
	registerAPIRoutes(mux, store, controller, controls)

	fileServer := http.FileServer(http.FS(staticFS))
	mux.HandleFunc("/", serveSPA(fileServer))

	return mux
}

func Serve(addr string, staticFS fs.FS, hub *Hub, store CallStore, controller CallController, sink WebhookSink, controls ControlHooks) error {
	h := Handler(staticFS, hub, store, controller, sink, controls)

	log.Printf("dashboard at http://%s", addr)
	return http.ListenAndServe(addr, h)
}

func serveSPA(fileServer http.Handler) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" || r.URL.Path == "/webhook" {
			http.NotFound(w, r)
			return
		}

		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath == "." || cleanPath == "" {
			r.URL.Path = "/"
		} else if !strings.Contains(cleanPath, ".") {
			r.URL.Path = "/index.html"
		} else {
			r.URL.Path = "/" + cleanPath
		}

		fileServer.ServeHTTP(w, r)
	}
}
