package node

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"distcache/internal/config"
	"distcache/internal/store"
)

func newTestNode(t *testing.T, edit func(*config.Config)) (*Node, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.NodeID = "n1"
	cfg.ListenAddr = "127.0.0.1:0"
	if edit != nil {
		edit(&cfg)
	}
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	srv := httptest.NewServer(n.Handler())
	t.Cleanup(func() {
		srv.Close()
		n.Stop()
	})
	return n, srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func TestNode_InternalSurface(t *testing.T) {
	n, srv := newTestNode(t, nil)

	resp := do(t, http.MethodPut, srv.URL+"/internal/kv/k", "v")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204 on put, got %d", resp.StatusCode)
	}
	if _, found := n.Store().Get("k"); !found {
		t.Fatal("Expected the internal surface to write the local store directly")
	}

	resp = do(t, http.MethodGet, srv.URL+"/internal/kv/k", "")
	value, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(value) != "v" {
		t.Errorf("Expected (200, v), got (%d, %q)", resp.StatusCode, value)
	}

	resp = do(t, http.MethodDelete, srv.URL+"/internal/kv/k", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204 on delete, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/internal/kv/k", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestNode_InternalSurfaceDoesNotCoordinate(t *testing.T) {
	n, srv := newTestNode(t, nil)

	// Empty the ring; replica traffic must keep working regardless.
	n.Membership().SetNodes(nil)

	resp := do(t, http.MethodPut, srv.URL+"/internal/kv/k", "v")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected the internal surface to ignore the ring, got %d", resp.StatusCode)
	}
}

func TestNode_ClusterSurfaceSingleNode(t *testing.T) {
	_, srv := newTestNode(t, nil)

	resp := do(t, http.MethodPut, srv.URL+"/kv/k", "v")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204 on put, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/kv/k", "")
	value, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(value) != "v" {
		t.Errorf("Expected (200, v), got (%d, %q)", resp.StatusCode, value)
	}
}

func TestNode_EmptyRingIsUnavailable(t *testing.T) {
	n, srv := newTestNode(t, nil)
	n.Membership().SetNodes(nil)

	resp := do(t, http.MethodGet, srv.URL+"/kv/k", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with an empty ring, got %d", resp.StatusCode)
	}
}

func TestNode_ZeroCapacityPut(t *testing.T) {
	_, srv := newTestNode(t, func(cfg *config.Config) {
		cfg.Capacity = 0
	})

	for _, path := range []string{"/kv/k", "/internal/kv/k"} {
		resp := do(t, http.MethodPut, srv.URL+path, "v")
		resp.Body.Close()
		if resp.StatusCode != http.StatusInsufficientStorage {
			t.Errorf("Expected 507 on %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestNode_BadTTLIsRejected(t *testing.T) {
	_, srv := newTestNode(t, nil)

	resp := do(t, http.MethodPut, srv.URL+"/kv/k?ttl=nonsense", "v")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed ttl, got %d", resp.StatusCode)
	}
}

func TestNode_Stats(t *testing.T) {
	_, srv := newTestNode(t, nil)

	resp := do(t, http.MethodPut, srv.URL+"/kv/k", "v")
	resp.Body.Close()
	resp = do(t, http.MethodGet, srv.URL+"/kv/k", "")
	resp.Body.Close()

	resp = do(t, http.MethodGet, srv.URL+"/stats", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from /stats, got %d", resp.StatusCode)
	}
	var stats store.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Live != 1 || stats.Hits != 1 {
		t.Errorf("Expected live=1 hits=1, got %+v", stats)
	}
}

func TestNode_Healthz(t *testing.T) {
	_, srv := newTestNode(t, nil)

	resp := do(t, http.MethodGet, srv.URL+"/healthz", "")
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("Expected (200, ok), got (%d, %q)", resp.StatusCode, body)
	}
}
