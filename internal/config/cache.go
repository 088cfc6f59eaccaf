package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching is disabled.
// Methods lists the HTTP methods to cache (e.g. GET, HEAD). TTL defines the
// lifetime of cache entries. KeyStrategy determines which parts of the request
// contribute to the cache key.
type CacheConfig struct {
	Enabled      bool          `env:"ENABLED"`
	Methods      []string      `env:"METHODS" envSeparator:","`
	TTL          time.Duration `env:"TTL"`
	KeyStrategy  string        `env:"KEY_STRATEGY"`
	Prefix       string        `env:"PREFIX"`
	MaxBodyBytes int           `env:"MAX_BODY_BYTES"`
}

// DefaultCacheConfig caches GET responses for 30 seconds.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      true,
		Methods:      []string{"GET"},
		TTL:          30 * time.Second,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
}

// Caches reports whether responses to method are cacheable.
func (c CacheConfig) Caches(method string) bool {
	for _, m := range c.Methods {
		if strings.EqualFold(strings.TrimSpace(m), method) {
			return true
		}
	}
	return false
}
