package offlinecache

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/offline-cache/offline-cache/cache"
	cachekey "github.com/offline-cache/offline-cache/pkg/cache-key"
)

type Config struct {
	// Storage for cache namespaces.
	Cache cache.CacheProvider
	// URL of the origin server.
	// Origins with paths are not supported.
	OriginURL url.URL
	// Hostname to use for HTTP requests and TLS negotiation.
	// Use if needed if e.g. the origin URL is just an IP address.
	OriginHost string
	// Namespace ids for the static and dynamic namespaces.
	// Bump both together whenever cached asset contents change, so the next
	// activation invalidates the previous namespaces.
	StaticVersion  string
	DynamicVersion string
	// Manifest lists the assets pre-warmed into the static namespace at
	// install time.
	Manifest []string
	// OfflinePath is the document served to page navigations when both
	// network and cache fail. Defaults to "/".
	OfflinePath string
	// Rules select the caching strategy per request URL.
	// URLs matching no rule resolve to cache-first.
	Rules Rules
	// SyncTasks maps background sync tags to their delegated tasks.
	SyncTasks map[string]SyncTask
	// Notifier receives push notifications. Pushes are dropped if nil.
	Notifier Notifier
	// Transport used for origin fetches. http.DefaultTransport if nil.
	Transport http.RoundTripper
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Worker is the interception point for all requests under its control.
// Every GET is resolved through one of the caching strategies over the
// versioned namespaces; everything else passes through to the origin.
type Worker struct {
	namespaces *cache.Namespaces
	static     cache.Handle
	dynamic    cache.Handle
	keyer      cachekey.Keyer
	manifest   []string
	offlineKey string
	rules      Rules
	syncTasks  map[string]SyncTask
	notifier   Notifier
	client     http.Client
	scheme     string
	host       string
	hostHeader string
	log        zerolog.Logger

	state     int32
	refreshes sync.WaitGroup
	inflight  singleflight.Group
}

// CreateWorker initializes the worker instance.
// The returned worker is in the installing state; call Install and Activate
// before routing traffic to it.
func CreateWorker(config Config) *Worker {
	// use global logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = log.Logger
	} else {
		logger = *config.Logger
	}

	// create a child logger and add defaults
	logger = logger.With().
		Str("origin", config.OriginURL.String()).
		Str("instance", uuid.NewString()).
		Logger()

	offlinePath := config.OfflinePath
	if offlinePath == "" {
		offlinePath = "/"
	}

	namespaces := cache.NewNamespaces(config.Cache, logger)
	keyer := cachekey.Keyer{}

	w := &Worker{
		namespaces: namespaces,
		static:     namespaces.Open(config.StaticVersion),
		dynamic:    namespaces.Open(config.DynamicVersion),
		keyer:      keyer,
		manifest:   config.Manifest,
		offlineKey: keyer.KeyForURL(offlinePath),
		rules:      config.Rules,
		syncTasks:  config.SyncTasks,
		notifier:   config.Notifier,
		scheme:     config.OriginURL.Scheme,
		host:       config.OriginURL.Host,
		hostHeader: config.OriginURL.Host,
		log:        logger,
		state:      int32(StateInstalling),
	}

	transport := config.Transport
	if config.OriginHost != "" {
		w.hostHeader = config.OriginHost
		if transport == nil {
			transport = &http.Transport{
				TLSClientConfig: &tls.Config{
					ServerName: config.OriginHost,
				},
			}
		}
	}
	w.client = http.Client{
		Transport: transport,
		// do not follow redirects
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return w
}

// ServeHTTP implements the http.Handler interface.
// It is guaranteed to write some response for every request; network and
// cache failures resolve to the offline fallback, never to a dropped
// connection from within the worker.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	defer w.recover(rw, r)

	if reason := w.shouldBypass(r); reason != "" {
		w.passThrough(rw, r, reason)
		return
	}

	key, err := w.keyer.Key(r)
	if err != nil {
		// shouldBypass admits GET only, so this is unreachable
		w.passThrough(rw, r, fwdReasonMethod)
		return
	}

	strategy := w.rules.Classify(r.URL.String())
	logger := w.log.With().
		Str("strategy", strategy.String()).
		Str("key", key).
		Logger()

	switch strategy {
	case NetworkFirst:
		w.networkFirst(rw, r, key, logger)
	case StaleWhileRevalidate:
		w.staleWhileRevalidate(rw, r, key, logger)
	default:
		w.cacheFirst(rw, r, key, logger)
	}
}

// shouldBypass returns the forward reason for requests the worker does not
// handle: anything other than GET, and absolute-form URLs with schemes other
// than http or https.
func (w *Worker) shouldBypass(r *http.Request) fwdReason {
	if r.Method != http.MethodGet {
		return fwdReasonMethod
	}
	if scheme := r.URL.Scheme; scheme != "" && scheme != "http" && scheme != "https" {
		return fwdReasonBypass
	}
	return ""
}

// passThrough forwards the request to the origin with no cache read or
// write.
func (w *Worker) passThrough(rw http.ResponseWriter, r *http.Request, reason fwdReason) {
	cs := cacheStatus{}
	cs.forward(reason)

	res, err := w.fetch(r)
	if err != nil {
		w.log.Error().Err(err).Str("url", r.URL.String()).Msg("Pass-through fetch failed")
		http.Error(rw, "Bad Gateway", http.StatusBadGateway)
		return
	}
	defer res.Body.Close()

	copyHeader(rw.Header(), res.Header)
	rw.Header().Add("Cache-Status", cs.String())
	rw.WriteHeader(res.StatusCode)
	if _, err := io.Copy(rw, res.Body); err != nil {
		w.log.Error().Err(err).Msg("Could not write response body to client")
	}
}

// fetch forwards the request to the origin. Requests without a host (the
// usual server-side form) are routed to the configured origin; absolute
// URLs, e.g. manifest entries on a CDN, are fetched as-is.
// The caller owns the response body.
func (w *Worker) fetch(r *http.Request) (*http.Response, error) {
	req := r.Clone(r.Context())
	req.RequestURI = ""
	if req.URL.Scheme == "" {
		req.URL.Scheme = w.scheme
	}
	if req.URL.Host == "" {
		req.URL.Host = w.host
		req.Host = w.hostHeader
	}
	return w.client.Do(req)
}

// send writes the response to the client and closes its body.
func (w *Worker) send(rw http.ResponseWriter, res *http.Response, cs cacheStatus, logger zerolog.Logger) {
	if res.Body != nil {
		defer res.Body.Close()
	}
	copyHeader(rw.Header(), res.Header)
	rw.Header().Add("Cache-Status", cs.String())
	rw.WriteHeader(res.StatusCode)
	bytesWritten, err := io.Copy(rw, res.Body)
	if err != nil {
		logger.Error().Err(err).Msg("Could not write response body to client")
	}
	logger.Debug().
		Str("status", string(cs.status)).
		Str("fwd", string(cs.fwdReason)).
		Int64("bytes", bytesWritten).
		Msg("Sending response to client")
}

// sendStored replays a cached entry to the client.
func (w *Worker) sendStored(rw http.ResponseWriter, stored []byte, cs cacheStatus, logger zerolog.Logger) {
	res, err := bytesToResponse(stored)
	if err != nil {
		logger.Error().Err(err).Msg("Could not decode stored response")
		offlineGeneric(rw)
		return
	}
	w.send(rw, res, cs, logger)
}

// store persists a clone of the response into the given namespace.
// A failed write never fails the read path: errors are logged and swallowed,
// and the response body stays readable for the caller.
func (w *Worker) store(namespace cache.Handle, key string, res *http.Response, logger zerolog.Logger) {
	stored, err := responseToBytes(res)
	if err != nil {
		logger.Error().Err(err).Msg("Could not serialize response for cache")
		return
	}
	if err := namespace.Put(key, res.StatusCode, stored); err != nil {
		logger.Error().Err(err).Str("namespace", namespace.ID()).Msg("Could not write to cache")
	}
}

// recover turns an escaped panic into a plain 500 so the client always gets
// a response.
func (w *Worker) recover(rw http.ResponseWriter, r *http.Request) {
	if err := recover(); err != nil {
		w.log.Error().Interface("error", err).Str("url", r.URL.String()).Msg("Recovered from panic")
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
	}
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		// some servers do not like forwarding headers added by an upstream
		// proxy, so drop them
		if k != "X-Forwarded-For" && k != "X-Forwarded-Proto" && k != "X-Forwarded-Host" {
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
	}
}
