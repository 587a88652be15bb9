package cache

import "sync/atomic"

var defaultCache atomic.Pointer[Cache]

// Default returns the process-wide shared cache, constructing a
// memory-only instance on first access. The instance lives for the
// remainder of the process; there is no teardown beyond process exit.
func Default() *Cache {
	if c := defaultCache.Load(); c != nil {
		return c
	}
	c := New(Options{})
	if defaultCache.CompareAndSwap(nil, c) {
		return c
	}
	return defaultCache.Load()
}

// SetDefault replaces the process-wide cache, e.g. with an instance
// wired to a persistence store. Tests use it to install a fresh cache
// per case.
func SetDefault(c *Cache) {
	defaultCache.Store(c)
}
