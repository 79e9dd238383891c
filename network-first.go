package offlinecache

import (
	"net/http"

	"github.com/rs/zerolog"
)

// networkFirst resolves routes expected to change frequently. The network
// is always tried first and a successful response is persisted into the
// dynamic namespace; the cache is purely a fallback, never consulted while
// the origin is reachable. With no network and no stored entry the caller
// gets the synthetic offline response.
func (w *Worker) networkFirst(rw http.ResponseWriter, r *http.Request, key string, logger zerolog.Logger) {
	cs := cacheStatus{detail: NetworkFirst.String()}

	res, err := w.fetch(r)
	if err == nil {
		w.store(w.dynamic, key, res, logger)
		cs.forward(fwdReasonRequest)
		w.send(rw, res, cs, logger)
		return
	}

	logger.Debug().Err(err).Msg("Network failed, trying cache")
	if stored, ok := w.namespaces.Match(key); ok {
		cs.hit()
		w.sendStored(rw, stored, cs, logger)
		return
	}

	offlineGeneric(rw)
}
