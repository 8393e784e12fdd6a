// Package config loads imagecache settings from a file and the environment.
//
// Any format viper understands (YAML, TOML, JSON) is accepted. Every key can
// be overridden by an environment variable named IMAGECACHE_ followed by the
// upper-cased key path with dots replaced by underscores, for example
// IMAGECACHE_CACHE_MEMORY_BUDGET_BYTES=128MiB.
//
//	cache:
//	  root: /var/cache/imagecache
//	  memory_budget_bytes: 64MiB
//	  disk_budget_bytes: 1GiB
//	  lookup_max_wait: 2s
//	observe:
//	  logging:
//	    level: debug
//	    file: /var/log/imagecache.log
package config
