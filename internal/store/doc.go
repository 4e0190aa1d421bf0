// Package store provides the single-node eviction store: a thread-safe
// in-memory key-value container bounded by an entry capacity. Eviction is
// least-recently-used; entries may additionally carry a TTL and are reclaimed
// lazily on access and eagerly by a bounded periodic sweep.
package store
