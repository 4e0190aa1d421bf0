package transport

import (
	"context"
	"time"

	"distcache/internal/cluster"
	"distcache/internal/store"
)

// Local adapts a node's own store to the cluster.Transport interface, the
// short circuit for operations whose placement includes the node itself.
type Local struct {
	store *store.Store
}

// NewLocal wraps s as an in-process transport.
func NewLocal(s *store.Store) *Local {
	return &Local{store: s}
}

func (l *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, found := l.store.Get(key)
	return value, found, nil
}

func (l *Local) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return l.store.Put(key, value, ttl)
}

func (l *Local) Delete(_ context.Context, key string) (bool, error) {
	return l.store.Delete(key), nil
}

var _ cluster.Transport = (*Local)(nil)
