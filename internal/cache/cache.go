// Package cache holds the two in-memory caches of the device pipeline: the
// load-once reference lookup and the per-device result memo.
package cache

// Memo stores one computed value per key until the next reload.
type Memo[T any] interface {
	// GetOrBuild returns the stored value or runs build and keeps a
	// successful result.
	GetOrBuild(key string, build func() (T, error)) (value T, hit bool, err error)
	Size() int
	Clear()
}

var _ Memo[int] = (*ResultCache[int])(nil)
