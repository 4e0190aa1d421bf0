// Package transport provides cluster.Transport implementations: an
// in-process transport for a node's own store and an HTTP peer transport
// for remote nodes, plus a manager that resolves ring nodes to cached
// transports.
package transport
