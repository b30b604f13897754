package server

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed ui/index.html ui/app.js
var uiFiles embed.FS

var uiHandler = func() http.Handler {
	sub, err := fs.Sub(uiFiles, "ui")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(sub)
}()

// HandleIndex serves the embedded browser UI
func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	uiHandler.ServeHTTP(w, r)
}
