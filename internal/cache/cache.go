package cache

// Cache defines a minimal key-value cache API. Entries are session-sticky:
// nothing expires, entries leave only through Delete or Clear.
// Implementations may or may not be goroutine-safe depending on configuration.
type Cache[K comparable, V any] interface {
	// Get returns the value and whether it was present.
	Get(key K) (V, bool)

	// Set stores the value, replacing any previous one.
	Set(key K, value V)

	// Update replaces the value for key with fn(old, ok) under a single lock and returns it.
	Update(key K, fn func(old V, ok bool) V) V

	// Delete removes a key if present.
	Delete(key K)

	// Has reports whether a key is present.
	Has(key K) bool

	// Len returns the number of items currently stored.
	Len() int

	// Keys returns the stored keys in no particular order.
	Keys() []K

	// Clear removes all entries.
	Clear()
}
