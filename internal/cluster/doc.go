// Package cluster implements the client that orchestrates cache operations
// across nodes: it routes keys through the hash ring, writes synchronously to
// the primary with best-effort replica propagation, and fails reads over to
// ring successors when the primary is unreachable.
package cluster
