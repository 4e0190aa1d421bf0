// Package ring implements a consistent hashing ring with virtual nodes.
// It maps keys to physical nodes while minimizing key movement when
// membership changes and supports selection of replica placement lists.
// Membership mutations rebuild an immutable snapshot, so concurrent
// lookups never block on membership changes or observe a partial ring.
package ring
