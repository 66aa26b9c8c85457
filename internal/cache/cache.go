// Package cache provides the bounded key/value store behind the shell
// cache buckets.
package cache

// Cache is a string-keyed store.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

var _ Cache[int] = (*LRUCache[int])(nil)
