package membership

import (
	"log"

	"distcache/internal/ring"
)

// Registry is the transport-side bookkeeping that membership changes must
// keep in line with the ring, typically *transport.Manager.
type Registry interface {
	Forget(addr string)
}

// Manager is the thin glue between a membership source and the ring.
// It holds no policy: every change is applied as given.
type Manager struct {
	name     string
	ring     *ring.Ring
	registry Registry // may be nil
}

// NewManager builds a manager for the given ring. name tags log lines
// (typically the local node ID); registry may be nil.
func NewManager(name string, r *ring.Ring, registry Registry) *Manager {
	return &Manager{name: name, ring: r, registry: registry}
}

// SetNodes replaces the entire membership with the given node list.
func (m *Manager) SetNodes(nodes []ring.Node) {
	m.ring.SetNodes(nodes)
	log.Printf("[%s] membership set: %d nodes", m.name, len(nodes))
}

// AddNode registers a node. Reports false if the ID was already present.
func (m *Manager) AddNode(node ring.Node) bool {
	added := m.ring.AddNode(node)
	if added {
		log.Printf("[%s] membership add: %s (%s), ring now %d nodes", m.name, node.ID, node.Addr, m.ring.Len())
	}
	return added
}

// RemoveNode unregisters a node and drops its cached transport.
// Reports false if the ID was not present.
func (m *Manager) RemoveNode(node ring.Node) bool {
	removed := m.ring.RemoveNode(node.ID)
	if removed {
		if m.registry != nil {
			m.registry.Forget(node.Addr)
		}
		log.Printf("[%s] membership remove: %s, ring now %d nodes", m.name, node.ID, m.ring.Len())
	}
	return removed
}

// Nodes returns the current membership as the ring sees it.
func (m *Manager) Nodes() []ring.Node {
	return m.ring.Nodes()
}
