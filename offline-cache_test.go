package offlinecache

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/offline-cache/offline-cache/cache"
)

// fakeOrigin is a counting http.RoundTripper standing in for the network.
// A nil handler means the network is unreachable.
type fakeOrigin struct {
	mu      sync.Mutex
	calls   int
	handler func(*http.Request) (*http.Response, error)
}

func (f *fakeOrigin) RoundTrip(r *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.handler == nil {
		return nil, errors.New("network unreachable")
	}
	return f.handler(r)
}

func (f *fakeOrigin) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func okResponse(body string) *http.Response {
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"text/html"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func serveBody(body string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return okResponse(body), nil
	}
}

func respBytes(t *testing.T, body string) []byte {
	t.Helper()
	stored, err := responseToBytes(okResponse(body))
	require.NoError(t, err)
	return stored
}

func newTestWorker(t *testing.T, origin *fakeOrigin, rules Rules) *Worker {
	t.Helper()
	originURL, err := url.Parse("http://origin.local")
	require.NoError(t, err)
	logger := zerolog.Nop()
	return CreateWorker(Config{
		Cache:          cache.NewMemCache(),
		OriginURL:      *originURL,
		StaticVersion:  "static-v1",
		DynamicVersion: "dynamic-v1",
		Manifest:       []string{"/", "/css/site.css", "/js/main.js", "/js/analytics.js"},
		Rules:          rules,
		Transport:      origin,
		Logger:         &logger,
	})
}

// storedBody decodes the body of the entry cached under key, if any.
func storedBody(t *testing.T, w *Worker, key string) (string, bool) {
	t.Helper()
	stored, ok := w.namespaces.Match(key)
	if !ok {
		return "", false
	}
	res, err := bytesToResponse(stored)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(body), true
}

// Scenario: empty cache, reachable network. The caller gets the network
// bytes and the dynamic namespace now holds the entry.
func TestCacheFirstMissFetchesAndPersists(t *testing.T) {
	origin := &fakeOrigin{handler: serveBody("HOME")}
	w := newTestWorker(t, origin, nil)

	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, httptest.NewRequest("GET", "/index.html", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "HOME", rr.Body.String())

	body, ok := w.dynamic.Match("GET:/index.html")
	require.True(t, ok)
	res, err := bytesToResponse(body)
	require.NoError(t, err)
	stored, _ := io.ReadAll(res.Body)
	require.Equal(t, "HOME", string(stored))
}

// Scenario: populated cache, reachable network. The caller gets the cached
// bytes with zero network calls.
func TestCacheFirstHitNeverTouchesNetwork(t *testing.T) {
	origin := &fakeOrigin{handler: serveBody("HOME")}
	w := newTestWorker(t, origin, nil)
	require.NoError(t, w.dynamic.Put("GET:/index.html", http.StatusOK, respBytes(t, "CACHED")))

	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, httptest.NewRequest("GET", "/index.html", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "CACHED", rr.Body.String())
	require.Equal(t, 0, origin.callCount())
	require.Equal(t, "Offline-Cache; hit; detail=cache-first", rr.Header().Get("Cache-Status"))
}

// Scenario: network-first URL, network down, nothing cached. The caller
// gets the synthetic offline response.
func TestNetworkFirstOfflineWithEmptyCache(t *testing.T) {
	origin := &fakeOrigin{}
	w := newTestWorker(t, origin, RulesFor([]string{"/api/"}, nil))

	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, httptest.NewRequest("GET", "/api/menu", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "Offline", rr.Body.String())
	require.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
}

func TestCacheFirstDocumentFallback(t *testing.T) {
	origin := &fakeOrigin{}
	w := newTestWorker(t, origin, nil)
	require.NoError(t, w.static.Put("GET:/", http.StatusOK, respBytes(t, "WELCOME")))

	req := httptest.NewRequest("GET", "/reservations.html", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, req)

	// page navigations degrade to the cached root document
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "WELCOME", rr.Body.String())
}

func TestCacheFirstAssetFallbackIsGeneric(t *testing.T) {
	origin := &fakeOrigin{}
	w := newTestWorker(t, origin, nil)
	require.NoError(t, w.static.Put("GET:/", http.StatusOK, respBytes(t, "WELCOME")))

	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, httptest.NewRequest("GET", "/img/interior.jpg", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "Offline", rr.Body.String())
}

// Non-GET requests pass through and are never admitted into any namespace.
func TestNonGetBypassesCache(t *testing.T) {
	origin := &fakeOrigin{handler: serveBody("posted")}
	provider := cache.NewMemCache()
	logger := zerolog.Nop()
	originURL, _ := url.Parse("http://origin.local")
	w := CreateWorker(Config{
		Cache:          provider,
		OriginURL:      *originURL,
		StaticVersion:  "static-v1",
		DynamicVersion: "dynamic-v1",
		Transport:      origin,
		Logger:         &logger,
	})

	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, httptest.NewRequest("POST", "/contact", strings.NewReader("name=x")))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "posted", rr.Body.String())
	require.Equal(t, 1, origin.callCount())

	namespaces, err := provider.Namespaces()
	require.NoError(t, err)
	require.Empty(t, namespaces)
}

// failingWrites delegates to an inner provider but rejects every write,
// like a browser cache with an exhausted storage quota.
type failingWrites struct {
	cache.CacheProvider
}

func (failingWrites) Put(string, string, []byte) error {
	return errors.New("quota exceeded")
}

// A failed cache write is logged and swallowed; the caller still receives
// the response that was already obtained.
func TestFailedWriteNeverFailsReadPath(t *testing.T) {
	origin := &fakeOrigin{handler: serveBody("HOME")}
	originURL, _ := url.Parse("http://origin.local")
	logger := zerolog.Nop()
	w := CreateWorker(Config{
		Cache:          failingWrites{cache.NewMemCache()},
		OriginURL:      *originURL,
		StaticVersion:  "static-v1",
		DynamicVersion: "dynamic-v1",
		Rules:          RulesFor([]string{"/api/"}, nil),
		Transport:      origin,
		Logger:         &logger,
	})

	// cache-first miss
	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, httptest.NewRequest("GET", "/index.html", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "HOME", rr.Body.String())

	// network-first
	rr = httptest.NewRecorder()
	w.ServeHTTP(rr, httptest.NewRequest("GET", "/api/menu", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "HOME", rr.Body.String())

	// nothing was stored
	_, ok := w.namespaces.Match("GET:/index.html")
	require.False(t, ok)
	_, ok = w.namespaces.Match("GET:/api/menu")
	require.False(t, ok)
}

func TestErrorResponsesAreNotCached(t *testing.T) {
	origin := &fakeOrigin{handler: func(*http.Request) (*http.Response, error) {
		res := okResponse("not here")
		res.Status = "404 Not Found"
		res.StatusCode = http.StatusNotFound
		return res, nil
	}}
	w := newTestWorker(t, origin, nil)

	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, httptest.NewRequest("GET", "/missing.html", nil))

	// the response is relayed but the error body stays out of the cache
	require.Equal(t, http.StatusNotFound, rr.Code)
	_, ok := w.namespaces.Match("GET:/missing.html")
	require.False(t, ok)
}
