// Package config holds node configuration: identity, listen address, static
// peer list, and cache/replication tunables. Configuration comes from a
// YAML file, a comma-separated peer flag, or both.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"distcache/internal/ring"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Peer represents a peer node in the cluster.
type Peer struct {
	ID   string `yaml:"id"`
	Addr string `yaml:"addr"`
}

// Config holds the node configuration.
type Config struct {
	NodeID     string `yaml:"node_id"`
	ListenAddr string `yaml:"listen_addr"`
	Peers      []Peer `yaml:"peers"`

	VNodes            int `yaml:"vnodes"`
	ReplicationFactor int `yaml:"replication_factor"`

	Capacity      int      `yaml:"capacity"`
	SweepInterval Duration `yaml:"sweep_interval"`
	SweepBatch    int      `yaml:"sweep_batch"`

	AttemptTimeout Duration `yaml:"attempt_timeout"`
	ReplicaTimeout Duration `yaml:"replica_timeout"`
}

// Default returns a configuration with the defaults a single-node
// deployment can run on.
func Default() Config {
	return Config{
		ListenAddr:        ":7070",
		VNodes:            128,
		ReplicationFactor: 2,
		Capacity:          1024,
		SweepInterval:     Duration(30 * time.Second),
		SweepBatch:        256,
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the node cannot start with.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.VNodes <= 0 {
		return fmt.Errorf("vnodes must be positive, got %d", c.VNodes)
	}
	if c.ReplicationFactor <= 0 {
		return fmt.Errorf("replication_factor must be positive, got %d", c.ReplicationFactor)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative, got %d", c.Capacity)
	}
	for _, p := range c.Peers {
		if p.ID == "" || p.Addr == "" {
			return fmt.Errorf("peer ID and address cannot be empty: %+v", p)
		}
	}
	return nil
}

// ParsePeers parses a comma-separated list of peers in the format:
// "id1=addr1,id2=addr2,id3=addr3"
func ParsePeers(peersStr string) ([]Peer, error) {
	if peersStr == "" {
		return []Peer{}, nil
	}

	parts := strings.Split(peersStr, ",")
	peers := make([]Peer, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid peer format: %s (expected id=addr)", part)
		}

		id := strings.TrimSpace(kv[0])
		addr := strings.TrimSpace(kv[1])
		if id == "" || addr == "" {
			return nil, fmt.Errorf("peer ID and address cannot be empty: %s", part)
		}

		peers = append(peers, Peer{ID: id, Addr: addr})
	}

	return peers, nil
}

// BuildRingNodes converts config peers + self into a ring.Node slice.
// Includes the self node in the list.
func (c *Config) BuildRingNodes() []ring.Node {
	nodes := make([]ring.Node, 0, len(c.Peers)+1)

	nodes = append(nodes, ring.Node{
		ID:   c.NodeID,
		Addr: c.ListenAddr,
	})

	for _, peer := range c.Peers {
		// Skip self if it appears in the peers list
		if peer.ID != c.NodeID {
			nodes = append(nodes, ring.Node{
				ID:   peer.ID,
				Addr: peer.Addr,
			})
		}
	}

	return nodes
}
