package offlinecache

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// fallback resolves a request after both network and cache have failed.
// Page navigations get the cached offline document; everything else the
// synthetic offline response.
func (w *Worker) fallback(rw http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	if isDocumentRequest(r) {
		w.offlineDocument(rw, logger)
		return
	}
	offlineGeneric(rw)
}

// offlineDocument serves the cached root document pre-warmed at install.
// Degrades to the generic response if even that is missing.
func (w *Worker) offlineDocument(rw http.ResponseWriter, logger zerolog.Logger) {
	if stored, ok := w.namespaces.Match(w.offlineKey); ok {
		cs := cacheStatus{detail: "offline"}
		cs.hit()
		w.sendStored(rw, stored, cs, logger)
		return
	}
	logger.Warn().Str("key", w.offlineKey).Msg("Offline document not cached")
	offlineGeneric(rw)
}

// offlineGeneric writes the synthetic offline response.
func offlineGeneric(rw http.ResponseWriter) {
	rw.Header().Set("Content-Type", "text/plain")
	rw.WriteHeader(http.StatusServiceUnavailable)
	rw.Write([]byte("Offline"))
}

// isDocumentRequest reports whether the request is a page navigation, the
// server-side equivalent of a "document" destination.
func isDocumentRequest(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Dest") == "document" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
