package store

import "time"

// sweepLoop periodically reclaims expired entries that are never re-queried.
// Lazy expiry alone would leave such entries resident until capacity
// pressure happens to push them out.
//
// Each tick runs one bounded SweepExpired pass; the sweep shares the
// structural lock with foreground traffic, so bounding the pass keeps it
// from starving requests.
func (s *Store) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.SweepExpired()
		}
	}
}
