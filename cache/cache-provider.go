package cache

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// CacheProvider is an interface for a cache provider.
// It stores and retrieves []byte values, which represent HTTP responses,
// partitioned into named namespaces. Namespaces are created implicitly on
// first write and only ever deleted wholesale.
//
// Implementations must be thread-safe!
type CacheProvider interface {
	// Get returns the entry stored under key in the given namespace, if it
	// exists. It also returns a boolean indicating whether retrieval was
	// successful.
	Get(namespace, key string) ([]byte, bool, error)
	// GetAny searches every namespace for the given key and returns the
	// first match.
	GetAny(key string) ([]byte, bool, error)
	// Put stores the given response under key in the given namespace.
	// An existing entry is overwritten whole.
	Put(namespace, key string, bytes []byte) error
	// Keys calls the given callback for each key in the namespace.
	// It calls the callback in order to enable very large lists of keys to
	// be processable (provider implementation might use paging, for
	// instance).
	Keys(namespace string, cb func(string))
	// Namespaces returns the ids of all namespaces holding at least one
	// entry.
	Namespaces() ([]string, error)
	// DeleteNamespace removes a namespace and every entry in it.
	DeleteNamespace(namespace string) error
	// Purge removes the cache entry for the given key.
	// It is a utility method that is not used on the serve path.
	Purge(namespace, key string)
	// Has checks if the specified key exists in the namespace.
	Has(namespace, key string) bool
}

type SQLiteCache struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteCache creates a new cache with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteCache(filename string) SQLiteCache {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		namespace TEXT,
		key TEXT,
		received_at INTEGER,
		bytes BLOB,
		PRIMARY KEY (namespace, key)
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("CREATE INDEX IF NOT EXISTS namespace_idx ON cache (namespace)")
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return SQLiteCache{
		db:         db,
		writeMutex: &sync.Mutex{},
	}
}

func (s SQLiteCache) Get(namespace, key string) ([]byte, bool, error) {
	var bytes []byte
	err := s.db.QueryRow(
		"SELECT bytes FROM cache WHERE namespace = ? AND key = ?",
		namespace, key,
	).Scan(&bytes)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bytes, true, nil
}

func (s SQLiteCache) GetAny(key string) ([]byte, bool, error) {
	var bytes []byte
	err := s.db.QueryRow(
		"SELECT bytes FROM cache WHERE key = ? ORDER BY namespace LIMIT 1",
		key,
	).Scan(&bytes)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bytes, true, nil
}

func (s SQLiteCache) Put(namespace, key string, bytes []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO cache
		(namespace, key, received_at, bytes) VALUES (?, ?, ?, ?)`,
		namespace, key, time.Now().Unix(), bytes)
	return err
}

func (s SQLiteCache) Keys(namespace string, cb func(string)) {
	rows, err := s.db.Query("SELECT key FROM cache WHERE namespace = ?", namespace)
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return
		}
		cb(key)
	}
}

func (s SQLiteCache) Namespaces() ([]string, error) {
	namespaces := make([]string, 0)
	rows, err := s.db.Query("SELECT DISTINCT namespace FROM cache ORDER BY namespace")
	if err != nil {
		return namespaces, err
	}
	defer rows.Close()

	for rows.Next() {
		var namespace string
		if err := rows.Scan(&namespace); err != nil {
			return namespaces, err
		}
		namespaces = append(namespaces, namespace)
	}
	return namespaces, nil
}

func (s SQLiteCache) DeleteNamespace(namespace string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM cache WHERE namespace = ?", namespace)
	return err
}

func (s SQLiteCache) Purge(namespace, key string) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, _ = s.db.Exec("DELETE FROM cache WHERE namespace = ? AND key = ?", namespace, key)
}

func (s SQLiteCache) Has(namespace, key string) bool {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM cache WHERE namespace = ? AND key = ?",
		namespace, key,
	).Scan(&one)
	return err == nil
}
