// Package cache provides a two-tier image cache keyed by request fingerprints.
//
// It provides a Keyer that derives SHA-256 keys from normalized requests, a
// bounded MemoryTier, a persistent DiskTier, a Coordinator that drives both
// tiers with a permanence policy, and a Registry of namespaced coordinators.
package cache
