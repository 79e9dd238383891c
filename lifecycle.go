package offlinecache

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of a worker instance.
type State int32

const (
	StateInstalling State = iota
	StateWaiting
	StateActive
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateRedundant:
		return "redundant"
	}
	return "unknown"
}

func (w *Worker) State() State {
	return State(atomic.LoadInt32(&w.state))
}

func (w *Worker) setState(s State) {
	atomic.StoreInt32(&w.state, int32(s))
	w.log.Info().Stringer("state", s).Msg("Lifecycle transition")
}

// Install pre-warms the static namespace with the asset manifest.
// The pre-warm is all-or-nothing: every manifest asset is fetched first, and
// nothing is written unless all of them succeed with a success status. There
// is no automatic retry; on failure a previously activated deployment keeps
// serving. On success the worker is ready to skip the waiting period, so
// Activate may be called immediately.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(StateInstalling)

	entries := make([][]byte, len(w.manifest))
	statuses := make([]int, len(w.manifest))

	g, ctx := errgroup.WithContext(ctx)
	for i, asset := range w.manifest {
		i, asset := i, asset
		g.Go(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, nil)
			if err != nil {
				return fmt.Errorf("pre-warm %s: %w", asset, err)
			}
			res, err := w.fetch(req)
			if err != nil {
				return fmt.Errorf("pre-warm %s: %w", asset, err)
			}
			defer res.Body.Close()
			if res.StatusCode < 200 || res.StatusCode >= 300 {
				return fmt.Errorf("pre-warm %s: unexpected status %d", asset, res.StatusCode)
			}
			stored, err := responseToBytes(res)
			if err != nil {
				return fmt.Errorf("pre-warm %s: %w", asset, err)
			}
			entries[i] = stored
			statuses[i] = res.StatusCode
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.log.Error().Err(err).Msg("Install failed, static namespace left untouched")
		return err
	}

	for i, asset := range w.manifest {
		if err := w.static.Put(w.keyer.KeyForURL(asset), statuses[i], entries[i]); err != nil {
			// no partial static namespace
			if clearErr := w.static.Clear(); clearErr != nil {
				w.log.Error().Err(clearErr).Msg("Could not clear static namespace after failed install")
			}
			w.log.Error().Err(err).Msg("Install failed")
			return fmt.Errorf("pre-warm %s: %w", asset, err)
		}
	}

	w.log.Info().
		Int("assets", len(w.manifest)).
		Str("namespace", w.static.ID()).
		Msg("Static namespace pre-warmed")
	w.setState(StateWaiting)
	return nil
}

// Activate garbage collects namespaces left behind by previous deployments:
// every namespace whose id is not the current static or dynamic id is
// deleted wholesale. Claiming control happens at the process boundary, the
// caller starts the listener only after Activate returns, so all subsequent
// requests route through this instance.
func (w *Worker) Activate() error {
	if err := w.namespaces.DeleteExcept([]string{w.static.ID(), w.dynamic.ID()}); err != nil {
		return err
	}
	w.setState(StateActive)
	return nil
}

// Shutdown drains in-flight background refreshes and retires the worker.
// A newer deployment that has fully activated supersedes this instance; no
// cleanup beyond activation's garbage collection is needed.
func (w *Worker) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.refreshes.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	w.setState(StateRedundant)
	return nil
}
