package cluster

import (
	"context"
	"errors"
	"time"

	"distcache/internal/ring"
)

var (
	// ErrNodeUnreachable marks a single candidate node that failed to respond
	// within its attempt timeout.
	ErrNodeUnreachable = errors.New("cluster: node unreachable")

	// ErrClusterUnavailable is surfaced when every candidate in the placement
	// list for a key was unreachable.
	ErrClusterUnavailable = errors.New("cluster: no candidate node reachable")
)

// Transport performs cache operations against a single node's store, local
// or remote. Implementations must honor the context deadline; any returned
// error is treated as the node being unreachable for that attempt, except
// errors the node's store itself reports (e.g. zero capacity), which are
// passed through.
//
// Not-found is a normal outcome, reported through the boolean, never through
// the error.
type Transport interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (existed bool, err error)
}

// Transports resolves a ring node to its Transport. Implementations
// typically cache one transport per node address.
type Transports interface {
	ForNode(node ring.Node) (Transport, error)
}
