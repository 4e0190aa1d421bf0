package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"distcache/internal/cluster"
	"distcache/internal/store"
)

// InternalPrefix is the path under which every node serves its local store
// for replica and forwarded traffic.
const InternalPrefix = "/internal/kv/"

// HTTP talks to one remote node's internal store surface. Keys travel
// path-escaped, values as the raw request/response body, TTL as a Go
// duration in the "ttl" query parameter.
//
// 404 means not-found (a normal outcome); 507 means the remote store has
// zero capacity; anything else, including connection errors, means the node
// is unreachable for this attempt.
type HTTP struct {
	base   string
	client *http.Client
}

// NewHTTP builds a transport for the peer at addr (host:port). A nil client
// uses http.DefaultClient; per-attempt deadlines come from the context.
func NewHTTP(addr string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{base: "http://" + addr + InternalPrefix, client: client}
}

func (h *HTTP) Get(ctx context.Context, key string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.keyURL(key, 0), nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		value, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		return value, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("transport: unexpected status %d from %s", resp.StatusCode, h.base)
	}
}

func (h *HTTP) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.keyURL(key, ttl), bytes.NewReader(value))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusInsufficientStorage:
		return store.ErrZeroCapacity
	default:
		return fmt.Errorf("transport: unexpected status %d from %s", resp.StatusCode, h.base)
	}
}

func (h *HTTP) Delete(ctx context.Context, key string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, h.keyURL(key, 0), nil)
	if err != nil {
		return false, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("transport: unexpected status %d from %s", resp.StatusCode, h.base)
	}
}

func (h *HTTP) keyURL(key string, ttl time.Duration) string {
	u := h.base + url.PathEscape(key)
	if ttl > 0 {
		u += "?ttl=" + url.QueryEscape(ttl.String())
	}
	return u
}

var _ cluster.Transport = (*HTTP)(nil)
