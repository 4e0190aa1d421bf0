package store

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictLRU means displaced by a newer entry under capacity pressure.
	EvictLRU EvictReason = iota
	// EvictTTL means expired and reclaimed lazily on access.
	EvictTTL
	// EvictSweep means expired and reclaimed by the periodic sweep.
	EvictSweep
)

// Metrics exposes store-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()              {}
func (NoopMetrics) Miss()             {}
func (NoopMetrics) Evict(EvictReason) {}
func (NoopMetrics) Size(int)          {}

var _ Metrics = NoopMetrics{}
