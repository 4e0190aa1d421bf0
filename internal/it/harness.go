// Package it provides an in-process integration harness: a cluster of real
// nodes served over real HTTP listeners, driven through their public
// surfaces exactly as an external client and membership source would.
package it

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"distcache/internal/config"
	"distcache/internal/node"
	"distcache/internal/ring"
)

// TestNode is one member of the harness cluster.
type TestNode struct {
	ID     string
	Addr   string // host:port of the live listener
	Node   *node.Node
	Server *httptest.Server
}

// TestCluster is a set of in-process nodes sharing one membership view.
type TestCluster struct {
	Nodes  []*TestNode
	VNodes int
}

// StartCluster boots n nodes on ephemeral listeners and supplies every node
// the full membership, playing the role of the external membership source.
// edit may adjust the per-node config before construction.
func StartCluster(t *testing.T, n int, edit func(*config.Config)) *TestCluster {
	t.Helper()

	c := &TestCluster{}
	for i := 1; i <= n; i++ {
		cfg := config.Default()
		cfg.NodeID = fmt.Sprintf("n%d", i)
		cfg.ListenAddr = "127.0.0.1:0" // replaced by the live listener below
		if edit != nil {
			edit(&cfg)
		}
		c.VNodes = cfg.VNodes

		nd, err := node.New(cfg)
		if err != nil {
			t.Fatalf("failed to build node %s: %v", cfg.NodeID, err)
		}
		srv := httptest.NewServer(nd.Handler())

		c.Nodes = append(c.Nodes, &TestNode{
			ID:     cfg.NodeID,
			Addr:   strings.TrimPrefix(srv.URL, "http://"),
			Node:   nd,
			Server: srv,
		})
	}

	members := c.Members()
	for _, tn := range c.Nodes {
		tn.Node.Membership().SetNodes(members)
	}

	t.Cleanup(func() {
		for _, tn := range c.Nodes {
			tn.Server.Close()
			tn.Node.Stop()
		}
	})
	return c
}

// Members returns the cluster membership as ring nodes.
func (c *TestCluster) Members() []ring.Node {
	members := make([]ring.Node, 0, len(c.Nodes))
	for _, tn := range c.Nodes {
		members = append(members, ring.Node{ID: tn.ID, Addr: tn.Addr})
	}
	return members
}

// Get returns a node by ID.
func (c *TestCluster) Get(nodeID string) *TestNode {
	for _, tn := range c.Nodes {
		if tn.ID == nodeID {
			return tn
		}
	}
	return nil
}

// PlacementFor rebuilds the ring the nodes share and routes key through it,
// so tests can locate a key's primary and replicas.
func (c *TestCluster) PlacementFor(t *testing.T, key string, rf int) []ring.Node {
	t.Helper()
	r := ring.NewRing(c.VNodes)
	r.SetNodes(c.Members())
	placement, err := r.Route(key, rf)
	if err != nil {
		t.Fatalf("route %q: %v", key, err)
	}
	return placement
}

// Flush drains in-flight replica propagation on every node.
func (c *TestCluster) Flush() {
	for _, tn := range c.Nodes {
		tn.Node.Client().Flush()
	}
}

// KV issues a coordinator request to the given node and returns status and
// body. method is GET, PUT, or DELETE; value is the PUT body.
func (tn *TestNode) KV(t *testing.T, method, key, value string, ttl time.Duration) (int, string) {
	t.Helper()

	u := tn.Server.URL + "/kv/" + key
	if ttl > 0 {
		u += "?ttl=" + ttl.String()
	}
	var body io.Reader
	if method == http.MethodPut {
		body = strings.NewReader(value)
	}
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, u, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, string(data)
}
