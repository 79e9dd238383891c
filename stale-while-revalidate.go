package offlinecache

import (
	"net/http"

	"github.com/rs/zerolog"
)

// staleWhileRevalidate resolves third-party style resources. A stored
// response is returned immediately, so a caller with a cached copy never
// waits on network latency; a refresh runs in the background and overwrites
// the entry for next time. On a miss the fetch itself doubles as the
// refresh and its outcome goes to the caller, with network errors resolving
// to the offline fallback rather than propagating.
func (w *Worker) staleWhileRevalidate(rw http.ResponseWriter, r *http.Request, key string, logger zerolog.Logger) {
	cs := cacheStatus{detail: StaleWhileRevalidate.String()}

	if stored, ok := w.namespaces.Match(key); ok {
		w.refreshInBackground(key, logger)
		cs.hit()
		w.sendStored(rw, stored, cs, logger)
		return
	}

	res, err := w.fetch(r)
	if err != nil {
		logger.Debug().Err(err).Msg("Network failed on cache miss")
		w.fallback(rw, r, logger)
		return
	}

	w.store(w.dynamic, key, res, logger)
	cs.forward(fwdReasonMiss)
	w.send(rw, res, cs, logger)
}

// refreshInBackground re-fetches the entry identified by key and overwrites
// it in the dynamic namespace. Concurrent refreshes for the same key
// collapse into a single fetch. Refreshes are tracked so Shutdown can drain
// them before the worker goes redundant.
func (w *Worker) refreshInBackground(key string, logger zerolog.Logger) {
	w.refreshes.Add(1)
	go func() {
		defer w.refreshes.Done()
		_, err, _ := w.inflight.Do(key, func() (interface{}, error) {
			req, err := w.keyer.RequestFromKey(key)
			if err != nil {
				return nil, err
			}
			res, err := w.fetch(req)
			if err != nil {
				return nil, err
			}
			defer res.Body.Close()
			w.store(w.dynamic, key, res, logger)
			return nil, nil
		})
		if err != nil {
			logger.Debug().Err(err).Msg("Background refresh failed")
		}
	}()
}
