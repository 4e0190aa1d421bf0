package cluster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"distcache/internal/ring"
	"distcache/internal/store"
)

const (
	// DefaultAttemptTimeout bounds each synchronous per-node attempt.
	DefaultAttemptTimeout = 2 * time.Second
	// DefaultReplicaTimeout bounds fire-and-forget replica propagation; it is
	// deliberately shorter since nothing waits on it.
	DefaultReplicaTimeout = 500 * time.Millisecond
	// DefaultReplicationFactor is the number of distinct physical nodes that
	// should hold a copy of a key.
	DefaultReplicationFactor = 2
)

// Options configures a Client. Zero values get defaults.
type Options struct {
	// Name identifies this client in log lines (typically the node ID).
	Name string

	ReplicationFactor int
	AttemptTimeout    time.Duration
	ReplicaTimeout    time.Duration
}

// Client coordinates Get/Put/Delete across the cluster. It owns no ambient
// global state: the ring and the transport source are injected once at
// construction.
//
// All methods are safe for concurrent use.
type Client struct {
	name       string
	ring       *ring.Ring
	transports Transports

	rf             int
	attemptTimeout time.Duration
	replicaTimeout time.Duration

	// Tracks in-flight replica propagation so Close can drain it.
	wg sync.WaitGroup
}

// New constructs a cluster client over the given ring and transport source.
func New(r *ring.Ring, transports Transports, opts Options) *Client {
	if opts.Name == "" {
		opts.Name = "cluster"
	}
	if opts.ReplicationFactor <= 0 {
		opts.ReplicationFactor = DefaultReplicationFactor
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	if opts.ReplicaTimeout <= 0 {
		opts.ReplicaTimeout = DefaultReplicaTimeout
	}
	return &Client{
		name:           opts.Name,
		ring:           r,
		transports:     transports,
		rf:             opts.ReplicationFactor,
		attemptTimeout: opts.AttemptTimeout,
		replicaTimeout: opts.ReplicaTimeout,
	}
}

// Get routes the key and attempts candidates in ring order. A reachable
// node's answer is terminal, found or not; only unreachable nodes trigger
// failover to the next candidate. Each candidate is attempted at most once.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	placement, err := c.ring.Route(key, c.rf)
	if err != nil {
		return nil, false, err
	}

	for _, node := range placement {
		t, err := c.transports.ForNode(node)
		if err != nil {
			log.Printf("[%s] get %q: no transport for node %s: %v", c.name, key, node.ID, err)
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		value, found, err := t.Get(attemptCtx, key)
		cancel()
		if err != nil {
			log.Printf("[%s] get %q: node %s unreachable, failing over: %v", c.name, key, node.ID, err)
			continue
		}
		return value, found, nil
	}

	return nil, false, fmt.Errorf("get %q: %w", key, ErrClusterUnavailable)
}

// Put routes the key and writes to the primary synchronously; the call does
// not succeed unless the primary acknowledges. Remaining replicas are
// written best-effort in the background: their failures are logged, never
// surfaced. Writes do not fail over to a different primary.
func (c *Client) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	placement, err := c.ring.Route(key, c.rf)
	if err != nil {
		return err
	}

	primary := placement[0]
	t, err := c.transports.ForNode(primary)
	if err != nil {
		return fmt.Errorf("put %q: primary %s: %w: %v", key, primary.ID, ErrNodeUnreachable, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	err = t.Put(attemptCtx, key, value, ttl)
	cancel()
	if err != nil {
		// A store-level rejection is the primary's answer, not a reachability
		// failure; pass it through unrelabeled.
		if errors.Is(err, store.ErrZeroCapacity) {
			return fmt.Errorf("put %q: primary %s: %w", key, primary.ID, err)
		}
		return fmt.Errorf("put %q: primary %s: %w: %v", key, primary.ID, ErrNodeUnreachable, err)
	}

	c.propagate(ctx, placement[1:], func(ctx context.Context, t Transport) error {
		return t.Put(ctx, key, value, ttl)
	}, "put", key)
	return nil
}

// Delete routes the key with the same fan-out discipline as Put: synchronous
// on the primary, best-effort on replicas. It reports whether the primary
// held the key.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	placement, err := c.ring.Route(key, c.rf)
	if err != nil {
		return false, err
	}

	primary := placement[0]
	t, err := c.transports.ForNode(primary)
	if err != nil {
		return false, fmt.Errorf("delete %q: primary %s: %w: %v", key, primary.ID, ErrNodeUnreachable, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	existed, err := t.Delete(attemptCtx, key)
	cancel()
	if err != nil {
		return false, fmt.Errorf("delete %q: primary %s: %w: %v", key, primary.ID, ErrNodeUnreachable, err)
	}

	c.propagate(ctx, placement[1:], func(ctx context.Context, t Transport) error {
		_, err := t.Delete(ctx, key)
		return err
	}, "delete", key)
	return existed, nil
}

// Flush blocks until all in-flight replica propagation has finished.
// Intended for shutdown and tests; normal callers never wait on replicas.
func (c *Client) Flush() {
	c.wg.Wait()
}

// propagate fans an already-acknowledged write out to the replica targets.
// Propagation is detached from the caller's context: the caller returning
// must not cancel replica writes mid-flight.
func (c *Client) propagate(ctx context.Context, replicas []ring.Node, op func(context.Context, Transport) error, what, key string) {
	for _, node := range replicas {
		node := node
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()

			t, err := c.transports.ForNode(node)
			if err != nil {
				log.Printf("[%s] replica %s %q: no transport for node %s: %v", c.name, what, key, node.ID, err)
				return
			}

			replicaCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.replicaTimeout)
			defer cancel()
			if err := op(replicaCtx, t); err != nil {
				log.Printf("[%s] replica %s %q: node %s failed: %v", c.name, what, key, node.ID, err)
			}
		}()
	}
}
