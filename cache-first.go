package offlinecache

import (
	"net/http"

	"github.com/rs/zerolog"
)

// cacheFirst resolves same-origin static assets. A stored response wins
// outright with no network contact and no freshness check; a miss goes to
// the network and the fetched response is persisted into the dynamic
// namespace before it is returned. If both network and cache fail, the
// offline fallback takes over, so the caller never sees a raw error.
func (w *Worker) cacheFirst(rw http.ResponseWriter, r *http.Request, key string, logger zerolog.Logger) {
	cs := cacheStatus{detail: CacheFirst.String()}

	if stored, ok := w.namespaces.Match(key); ok {
		cs.hit()
		w.sendStored(rw, stored, cs, logger)
		return
	}

	res, err := w.fetch(r)
	if err != nil {
		logger.Debug().Err(err).Msg("Network failed, falling back")
		w.fallback(rw, r, logger)
		return
	}

	w.store(w.dynamic, key, res, logger)
	cs.forward(fwdReasonMiss)
	w.send(rw, res, cs, logger)
}
