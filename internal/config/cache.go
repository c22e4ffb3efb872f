package config

import "time"

// CatalogCacheConfig configures the Redis cache in front of the resource catalog.
type CatalogCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCatalogCacheConfig reads CATALOG_CACHE_*.
func LoadCatalogCacheConfig() CatalogCacheConfig {
	return CatalogCacheConfig{
		Enabled: envBool("CATALOG_CACHE_ENABLED", true),
		TTL:     envDur("CATALOG_CACHE_TTL", time.Minute),
		Prefix:  envStr("CATALOG_CACHE_PREFIX", "catalog"),
	}
}
