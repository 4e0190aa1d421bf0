package transport

import (
	"net/http"
	"sync"

	"distcache/internal/cluster"
	"distcache/internal/ring"
)

// Manager resolves ring nodes to transports: the node's own store goes
// through the in-process Local transport, peers through one cached HTTP
// transport per address.
type Manager struct {
	selfID string
	local  cluster.Transport
	httpc  *http.Client

	mu    sync.RWMutex
	peers map[string]*HTTP // addr -> client
}

// NewManager builds a manager for the node selfID whose own store is served
// by local. A nil httpc uses http.DefaultClient for peer traffic.
func NewManager(selfID string, local cluster.Transport, httpc *http.Client) *Manager {
	return &Manager{
		selfID: selfID,
		local:  local,
		httpc:  httpc,
		peers:  make(map[string]*HTTP),
	}
}

// ForNode returns the transport for node, creating and caching a peer
// client on first use.
func (m *Manager) ForNode(node ring.Node) (cluster.Transport, error) {
	if node.ID == m.selfID {
		return m.local, nil
	}

	m.mu.RLock()
	t, ok := m.peers[node.Addr]
	m.mu.RUnlock()
	if ok {
		return t, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.peers[node.Addr]; ok {
		return t, nil
	}
	t = NewHTTP(node.Addr, m.httpc)
	m.peers[node.Addr] = t
	return t, nil
}

// Forget drops the cached transport for addr, typically after the
// membership source removed the node.
func (m *Manager) Forget(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, addr)
}

var _ cluster.Transports = (*Manager)(nil)
