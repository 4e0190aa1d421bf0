package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"distcache/internal/config"
	"distcache/internal/node"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file (optional)")
		nodeID     = flag.String("node-id", "", "unique node identifier")
		listen     = flag.String("listen", "", "listen address (host:port)")
		peers      = flag.String("peers", "", "comma-separated peers as id=host:port")
		rf         = flag.Int("rf", 0, "replication factor")
		vnodes     = flag.Int("vnodes", 0, "virtual nodes per physical node")
		capacity   = flag.Int("capacity", -1, "max entries in the local store")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}

	// Flags override the file.
	if *nodeID != "" {
		cfg.NodeID = *nodeID
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *peers != "" {
		parsed, err := config.ParsePeers(*peers)
		if err != nil {
			log.Fatalf("parse --peers: %v", err)
		}
		cfg.Peers = parsed
	}
	if *rf > 0 {
		cfg.ReplicationFactor = *rf
	}
	if *vnodes > 0 {
		cfg.VNodes = *vnodes
	}
	if *capacity >= 0 {
		cfg.Capacity = *capacity
	}

	n, err := node.New(cfg)
	if err != nil {
		log.Fatalf("create node: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- n.Start() }()

	select {
	case <-ctx.Done():
		log.Printf("[%s] received shutdown signal", cfg.NodeID)
	case err := <-errCh:
		if err != nil {
			log.Fatalf("node exited: %v", err)
		}
		return
	}

	n.Stop()
}
