// Package membership applies externally supplied cluster membership to the
// hash ring and the transport registry. Discovery, gossip, and failure
// detection live outside this system; an external source calls in with the
// current node set or with individual add/remove events.
package membership
