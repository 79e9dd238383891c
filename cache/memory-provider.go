package cache

import (
	"sort"
	"sync"
)

type MemCache struct {
	mutex *sync.RWMutex
	db    map[string]map[string][]byte
}

// NewMemCache creates an in-memory cache provider.
// Handy for local runs and tests; contents do not survive a restart.
func NewMemCache() MemCache {
	return MemCache{
		mutex: &sync.RWMutex{},
		db:    make(map[string]map[string][]byte),
	}
}

func (m MemCache) Get(namespace, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entries, ok := m.db[namespace]
	if !ok {
		return nil, false, nil
	}
	bytes, ok := entries[key]
	return bytes, ok, nil
}

func (m MemCache) GetAny(key string) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, namespace := range m.sortedNamespaces() {
		if bytes, ok := m.db[namespace][key]; ok {
			return bytes, true, nil
		}
	}
	return nil, false, nil
}

func (m MemCache) Put(namespace, key string, bytes []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entries, ok := m.db[namespace]
	if !ok {
		entries = make(map[string][]byte)
		m.db[namespace] = entries
	}
	entries[key] = bytes
	return nil
}

func (m MemCache) Keys(namespace string, cb func(string)) {
	m.mutex.RLock()
	keys := make([]string, 0, len(m.db[namespace]))
	for key := range m.db[namespace] {
		keys = append(keys, key)
	}
	m.mutex.RUnlock()
	sort.Strings(keys)
	for _, key := range keys {
		cb(key)
	}
}

func (m MemCache) Namespaces() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.sortedNamespaces(), nil
}

func (m MemCache) DeleteNamespace(namespace string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, namespace)
	return nil
}

func (m MemCache) Purge(namespace, key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db[namespace], key)
}

func (m MemCache) Has(namespace, key string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.db[namespace][key]
	return ok
}

// callers must hold at least a read lock
func (m MemCache) sortedNamespaces() []string {
	namespaces := make([]string, 0, len(m.db))
	for namespace := range m.db {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)
	return namespaces
}
