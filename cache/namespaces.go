package cache

import (
	"slices"

	"github.com/rs/zerolog"
)

// Namespaces manages version-tagged cache namespaces on top of a provider.
// A namespace is addressed through a Handle and holds serialized HTTP
// responses keyed by request key. At most one namespace per id is ever live;
// namespaces from previous versions are removed wholesale with DeleteExcept.
type Namespaces struct {
	provider CacheProvider
	log      zerolog.Logger
}

func NewNamespaces(provider CacheProvider, logger zerolog.Logger) *Namespaces {
	return &Namespaces{
		provider: provider,
		log:      logger,
	}
}

// Handle addresses a single namespace.
type Handle struct {
	id string
	n  *Namespaces
}

// Open returns a handle to the namespace with the given id.
// The namespace itself is created lazily on first write.
func (n *Namespaces) Open(id string) Handle {
	return Handle{id: id, n: n}
}

// Match searches all namespaces for the given key.
// Read errors count as a miss; the caller falls through to the network.
func (n *Namespaces) Match(key string) ([]byte, bool) {
	bytes, ok, err := n.provider.GetAny(key)
	if err != nil {
		n.log.Error().Err(err).Str("key", key).Msg("Could not retrieve from cache")
		return nil, false
	}
	return bytes, ok
}

// DeleteExcept removes every namespace whose id is not in the keep set.
func (n *Namespaces) DeleteExcept(keep []string) error {
	ids, err := n.provider.Namespaces()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if slices.Contains(keep, id) {
			continue
		}
		n.log.Info().Str("namespace", id).Msg("Deleting stale namespace")
		if err := n.provider.DeleteNamespace(id); err != nil {
			return err
		}
	}
	return nil
}

func (h Handle) ID() string {
	return h.id
}

// Match searches this namespace only.
func (h Handle) Match(key string) ([]byte, bool) {
	bytes, ok, err := h.n.provider.Get(h.id, key)
	if err != nil {
		h.n.log.Error().Err(err).Str("namespace", h.id).Str("key", key).Msg("Could not retrieve from cache")
		return nil, false
	}
	return bytes, ok
}

// Put stores a serialized response under key. Responses without a success
// status are silently dropped, which keeps error bodies out of the cache.
func (h Handle) Put(key string, statusCode int, bytes []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		h.n.log.Trace().Str("key", key).Int("status", statusCode).Msg("Not caching non-success response")
		return nil
	}
	return h.n.provider.Put(h.id, key, bytes)
}

// Clear removes the namespace and everything in it.
func (h Handle) Clear() error {
	return h.n.provider.DeleteNamespace(h.id)
}
