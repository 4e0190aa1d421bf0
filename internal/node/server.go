package node

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"distcache/internal/cluster"
	"distcache/internal/ring"
	"distcache/internal/store"
	"distcache/internal/transport"
)

// Handler returns the node's full HTTP surface:
//
//	/kv/{key}           coordinator operations through the cluster client
//	/internal/kv/{key}  direct local-store operations for replica traffic
//	/admin/nodes        membership add/remove, driven by the membership source
//	/healthz, /stats, /metrics
func (n *Node) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /kv/{key...}", n.handleClusterGet)
	mux.HandleFunc("PUT /kv/{key...}", n.handleClusterPut)
	mux.HandleFunc("DELETE /kv/{key...}", n.handleClusterDelete)

	mux.HandleFunc("GET "+transport.InternalPrefix+"{key...}", n.handleLocalGet)
	mux.HandleFunc("PUT "+transport.InternalPrefix+"{key...}", n.handleLocalPut)
	mux.HandleFunc("DELETE "+transport.InternalPrefix+"{key...}", n.handleLocalDelete)

	mux.HandleFunc("POST /admin/nodes", n.handleAddNode)
	mux.HandleFunc("DELETE /admin/nodes/{id}", n.handleRemoveNode)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
	mux.HandleFunc("GET /stats", n.handleStats)
	mux.Handle("GET /metrics", promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}))

	return mux
}

// ---- coordinator surface (any node coordinates any key) ----

func (n *Node) handleClusterGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, found, err := n.client.Get(r.Context(), key)
	if err != nil {
		writeClusterError(w, err)
		return
	}
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(value)
}

func (n *Node) handleClusterPut(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	ttl, err := parseTTL(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	value, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := n.client.Put(r.Context(), key, value, ttl); err != nil {
		writeClusterError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (n *Node) handleClusterDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	existed, err := n.client.Delete(r.Context(), key)
	if err != nil {
		writeClusterError(w, err)
		return
	}
	if !existed {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeClusterError maps the cluster error taxonomy onto HTTP statuses.
// Callers only ever see the four spec outcomes: value, not-found, ok, or a
// cluster-level error.
func writeClusterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrZeroCapacity):
		http.Error(w, err.Error(), http.StatusInsufficientStorage)
	case errors.Is(err, ring.ErrEmptyRing),
		errors.Is(err, cluster.ErrClusterUnavailable),
		errors.Is(err, cluster.ErrNodeUnreachable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ---- replica surface (local store only, no re-coordination) ----

func (n *Node) handleLocalGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, found := n.store.Get(key)
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(value)
}

func (n *Node) handleLocalPut(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	ttl, err := parseTTL(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	value, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := n.store.Put(key, value, ttl); err != nil {
		if errors.Is(err, store.ErrZeroCapacity) {
			http.Error(w, err.Error(), http.StatusInsufficientStorage)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (n *Node) handleLocalDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !n.store.Delete(key) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- admin surface (driven by the membership source) ----

func (n *Node) handleAddNode(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("id")
	addr := r.FormValue("addr")
	if id == "" || addr == "" {
		http.Error(w, "id and addr are required", http.StatusBadRequest)
		return
	}
	if !n.membership.AddNode(ring.Node{ID: id, Addr: addr}) {
		http.Error(w, "node already present", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (n *Node) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, member := range n.membership.Nodes() {
		if member.ID == id {
			n.membership.RemoveNode(member)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "node not present", http.StatusNotFound)
}

// ---- monitoring ----

func (n *Node) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(n.store.Stats()); err != nil {
		log.Printf("[%s] stats encode: %v", n.nodeID, err)
	}
}

// parseTTL reads the optional "ttl" query parameter as a Go duration.
// Absent or non-positive means no expiration.
func parseTTL(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("ttl")
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
