package ring

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// ErrEmptyRing is returned by Route when no nodes are registered.
var ErrEmptyRing = errors.New("ring: no nodes registered")

// Node represents a physical node in the cluster.
type Node struct {
	ID   string
	Addr string
}

// vnode represents a virtual node on the ring.
type vnode struct {
	hash   uint64
	nodeID string
}

// snapshot is an immutable view of the ring. Lookups operate on a snapshot
// and are never affected by concurrent membership changes.
type snapshot struct {
	vnodes []vnode         // sorted by (hash, nodeID)
	nodes  map[string]Node // nodeID -> Node
}

// Ring implements consistent hashing with virtual nodes.
// Lookups are lock-free against an atomically swapped snapshot; membership
// mutations serialize on a mutex and rebuild the snapshot (copy-on-write).
type Ring struct {
	mu            sync.Mutex // serializes mutations
	vnodesPerNode int
	snap          atomic.Pointer[snapshot]
}

// NewRing creates an empty consistent hashing ring.
func NewRing(vnodesPerNode int) *Ring {
	if vnodesPerNode <= 0 {
		vnodesPerNode = 128 // default
	}
	r := &Ring{vnodesPerNode: vnodesPerNode}
	r.snap.Store(&snapshot{nodes: make(map[string]Node)})
	return r
}

// SetNodes rebuilds the ring with the given nodes.
// Deterministic: the same membership set produces the same ring regardless
// of slice order.
func (r *Ring) SetNodes(nodes []Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	r.snap.Store(r.build(m))
}

// AddNode adds a node to the ring. Reports false if the ID is already
// present (no-op).
func (r *Ring) AddNode(node Node) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, exists := cur.nodes[node.ID]; exists {
		return false
	}
	m := make(map[string]Node, len(cur.nodes)+1)
	for id, n := range cur.nodes {
		m[id] = n
	}
	m[node.ID] = node
	r.snap.Store(r.build(m))
	return true
}

// RemoveNode removes a node from the ring. Reports false if absent (no-op).
func (r *Ring) RemoveNode(nodeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, exists := cur.nodes[nodeID]; !exists {
		return false
	}
	m := make(map[string]Node, len(cur.nodes)-1)
	for id, n := range cur.nodes {
		if id != nodeID {
			m[id] = n
		}
	}
	r.snap.Store(r.build(m))
	return true
}

// Route returns the ordered placement list for key: position 0 is the owner,
// the rest are replica targets collected clockwise, skipping virtual
// duplicates of already-chosen physical nodes. If fewer than
// replicationFactor physical nodes exist, all of them are returned; callers
// must handle a shorter-than-requested list.
func (r *Ring) Route(key string, replicationFactor int) ([]Node, error) {
	snap := r.snap.Load()
	if len(snap.vnodes) == 0 {
		return nil, ErrEmptyRing
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	keyHash := xxhash.Sum64String(key)

	// Binary search for the first vnode at or clockwise of the key,
	// wrapping to the smallest position past the top of the hash space.
	idx := sort.Search(len(snap.vnodes), func(i int) bool {
		return snap.vnodes[i].hash >= keyHash
	})
	if idx >= len(snap.vnodes) {
		idx = 0
	}

	seen := make(map[string]bool, replicationFactor)
	placement := make([]Node, 0, replicationFactor)
	for i := 0; i < len(snap.vnodes) && len(placement) < replicationFactor; i++ {
		pos := (idx + i) % len(snap.vnodes)
		nodeID := snap.vnodes[pos].nodeID
		if seen[nodeID] {
			continue
		}
		seen[nodeID] = true
		placement = append(placement, snap.nodes[nodeID])
	}
	return placement, nil
}

// Owner returns the single node responsible for key.
func (r *Ring) Owner(key string) (Node, error) {
	placement, err := r.Route(key, 1)
	if err != nil {
		return Node{}, err
	}
	return placement[0], nil
}

// Nodes returns all physical nodes currently in the ring.
func (r *Ring) Nodes() []Node {
	snap := r.snap.Load()
	nodes := make([]Node, 0, len(snap.nodes))
	for _, n := range snap.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

// Len returns the number of physical nodes in the ring.
func (r *Ring) Len() int {
	return len(r.snap.Load().nodes)
}

// build constructs a sorted snapshot for the given membership set.
func (r *Ring) build(nodes map[string]Node) *snapshot {
	vnodes := make([]vnode, 0, len(nodes)*r.vnodesPerNode)
	for id := range nodes {
		for i := 0; i < r.vnodesPerNode; i++ {
			vnodes = append(vnodes, vnode{
				hash:   xxhash.Sum64String(fmt.Sprintf("%s-vnode-%d", id, i)),
				nodeID: id,
			})
		}
	}
	// Hash collisions between distinct nodes break ties on node ID so that
	// construction is deterministic.
	sort.Slice(vnodes, func(i, j int) bool {
		if vnodes[i].hash != vnodes[j].hash {
			return vnodes[i].hash < vnodes[j].hash
		}
		return vnodes[i].nodeID < vnodes[j].nodeID
	})
	return &snapshot{vnodes: vnodes, nodes: nodes}
}
