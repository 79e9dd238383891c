package cachekey

import (
	"fmt"
	"net/http"
	"strings"
)

var ErrMethodNotSupported = fmt.Errorf("method not supported")

const methodSeparator = ":"

// Keyer derives cache keys from requests and requests from cache keys.
// Only GET requests are ever admitted into the cache, so only GET keys exist.
type Keyer struct{}

// Key returns the cache key for the given request.
// It returns ErrMethodNotSupported for anything other than GET.
func (Keyer) Key(r *http.Request) (string, error) {
	if r.Method != http.MethodGet {
		return "", ErrMethodNotSupported
	}
	return r.Method + methodSeparator + r.URL.String(), nil
}

// KeyForURL returns the key a GET request for the given URL would produce.
func (Keyer) KeyForURL(url string) string {
	return http.MethodGet + methodSeparator + url
}

// RequestFromKey generates a caching-wise equal request to the request that
// resulted in the provided key. Used for re-fetching entries in the
// background.
func (Keyer) RequestFromKey(key string) (*http.Request, error) {
	method, uri, found := strings.Cut(key, methodSeparator)
	if !found {
		return nil, fmt.Errorf("malformed key: %s", key)
	}
	if method != http.MethodGet {
		return nil, ErrMethodNotSupported
	}
	return http.NewRequest(method, uri, nil)
}
