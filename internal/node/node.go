// Package node assembles a single cache node: the local eviction store and
// its sweep, the hash ring, the cluster client, and the HTTP surface that
// serves coordinator traffic, replica traffic, and monitoring.
package node

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"distcache/internal/cluster"
	"distcache/internal/config"
	"distcache/internal/membership"
	"distcache/internal/metrics/prom"
	"distcache/internal/ring"
	"distcache/internal/store"
	"distcache/internal/transport"
)

// Node represents a single node in the distributed cache.
type Node struct {
	nodeID     string
	listenAddr string

	store      *store.Store
	ring       *ring.Ring
	transports *transport.Manager
	client     *cluster.Client
	membership *membership.Manager
	registry   *prometheus.Registry

	httpServer *http.Server
}

// New creates a node instance from the given configuration. The initial
// ring membership is the config's self+peers set; later changes arrive
// through the membership manager.
func New(cfg config.Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := prom.New(registry, "distcache", "store", prometheus.Labels{"node": cfg.NodeID})

	st := store.New(store.Options{
		Capacity:      cfg.Capacity,
		SweepInterval: cfg.SweepInterval.Std(),
		SweepBatch:    cfg.SweepBatch,
		Metrics:       metrics,
	})

	rng := ring.NewRing(cfg.VNodes)
	transports := transport.NewManager(cfg.NodeID, transport.NewLocal(st), nil)
	mm := membership.NewManager(cfg.NodeID, rng, transports)
	mm.SetNodes(cfg.BuildRingNodes())

	client := cluster.New(rng, transports, cluster.Options{
		Name:              cfg.NodeID,
		ReplicationFactor: cfg.ReplicationFactor,
		AttemptTimeout:    cfg.AttemptTimeout.Std(),
		ReplicaTimeout:    cfg.ReplicaTimeout.Std(),
	})

	n := &Node{
		nodeID:     cfg.NodeID,
		listenAddr: cfg.ListenAddr,
		store:      st,
		ring:       rng,
		transports: transports,
		client:     client,
		membership: mm,
		registry:   registry,
	}
	n.httpServer = &http.Server{Handler: n.Handler()}
	return n, nil
}

// Start begins listening and serves until Stop is called.
func (n *Node) Start() error {
	lis, err := net.Listen("tcp", n.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", n.listenAddr, err)
	}

	log.Printf("[%s] starting node on %s", n.nodeID, n.listenAddr)
	if err := n.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the node: drains the HTTP server, waits for
// in-flight replica propagation, and stops the store sweep.
func (n *Node) Stop() {
	log.Printf("[%s] stopping node", n.nodeID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.httpServer.Shutdown(ctx); err != nil {
		log.Printf("[%s] http shutdown: %v", n.nodeID, err)
	}

	n.client.Flush()
	n.store.Close()
}

// Membership returns the manager the external membership source drives.
func (n *Node) Membership() *membership.Manager { return n.membership }

// Client returns the node's cluster client.
func (n *Node) Client() *cluster.Client { return n.client }

// Store returns the node's local eviction store.
func (n *Node) Store() *store.Store { return n.store }
