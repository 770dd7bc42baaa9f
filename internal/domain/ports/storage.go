package ports

// Storage is the durable key/value port backing the session snapshot.
// Implementations must return domain.ErrKeyNotFound from Get for missing
// keys.
type Storage interface {
	// Get returns the value stored under key.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Remove deletes the value stored under key. Removing a missing key
	// is not an error.
	Remove(key string) error

	// Close releases any resources held by the storage.
	Close() error
}
