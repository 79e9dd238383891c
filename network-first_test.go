package offlinecache

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNetworkFirstPersistenceRoundTrip(t *testing.T) {
	origin := &fakeOrigin{handler: serveBody("FRESH")}
	w := newTestWorker(t, origin, RulesFor([]string{"/api/"}, nil))

	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, httptest.NewRequest("GET", "/api/menu", nil))

	require.Equal(t, "FRESH", rr.Body.String())
	require.Equal(t, 1, origin.callCount())

	// the same bytes are now resolvable from the cache
	body, ok := storedBody(t, w, "GET:/api/menu")
	require.True(t, ok)
	require.Equal(t, "FRESH", body)
}

func TestNetworkFirstAlwaysPrefersLiveData(t *testing.T) {
	origin := &fakeOrigin{handler: serveBody("LIVE")}
	w := newTestWorker(t, origin, RulesFor([]string{"/api/"}, nil))
	require.NoError(t, w.dynamic.Put("GET:/api/menu", http.StatusOK, respBytes(t, "STALE")))

	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, httptest.NewRequest("GET", "/api/menu", nil))

	require.Equal(t, "LIVE", rr.Body.String())
	require.Equal(t, 1, origin.callCount())
}

func TestNetworkFirstFallsBackToCache(t *testing.T) {
	origin := &fakeOrigin{}
	w := newTestWorker(t, origin, RulesFor([]string{"/api/"}, nil))
	require.NoError(t, w.dynamic.Put("GET:/api/menu", http.StatusOK, respBytes(t, "YESTERDAY")))

	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, httptest.NewRequest("GET", "/api/menu", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "YESTERDAY", rr.Body.String())
}
