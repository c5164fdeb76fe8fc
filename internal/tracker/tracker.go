// Package tracker serves the browser tracking script. The script is the
// client-side batching agent: it buffers tracked events and flushes them to
// /api/collect by size threshold or inactivity, with keepalive delivery so
// flushes survive page navigation.
package tracker

import (
	_ "embed"
	"net/http"
)

//go:embed tracker.js
var script []byte

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(script)
}
