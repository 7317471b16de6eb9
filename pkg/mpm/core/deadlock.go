package core

// The pairwise deadlock-detection protocol, piggybacked on the p2p
// channels via the two reserved control tags. These handlers run on the
// receiver goroutine for `peer`, after it has read a HINT_WAITING or
// ABORT_WAIT control frame. They detect only 2-cycles; longer cycles
// (A waits on B waits on C waits on A) are not detected.

// handleHint processes an inbound HINT_WAITING from peer: "I am blocked
// waiting on a (count, tag) from you."
func (r *Runtime) handleHint(peer int, hinted digest) {
	r.mu.Lock()

	if removed := r.removeSentDigest(peer, hinted); removed {
		// The message we already sent will satisfy the peer's wait; no
		// deadlock, nothing more to do.
		r.mu.Unlock()
		return
	}

	if p := r.pending; p != nil && p.outcome == outcomeUnset && p.peer == peer {
		p.outcome = outcomeDeadlock
		r.mu.Unlock()
		r.log.Debugf("rank %d: symmetric wait with peer %d", r.rank, peer)
		r.gate.Release(1)
		return
	}

	// Single-valued slot: a newer hint overwrites any prior unmatched one.
	h := hinted
	r.hintSlot[peer] = &h
	r.mu.Unlock()
}

// handleAbort processes an inbound ABORT_WAIT: the sender has decided
// that this process's announced wait cannot be satisfied. Unlike
// handleHint, it does not qualify the pending wait by peer: whatever
// unresolved wait exists is woken with the deadlock verdict, and the
// frame is dropped when there is none.
func (r *Runtime) handleAbort(peer int) {
	r.mu.Lock()
	if p := r.pending; p != nil && p.outcome == outcomeUnset {
		p.outcome = outcomeDeadlock
		r.mu.Unlock()
		r.gate.Release(1)
		return
	}
	r.mu.Unlock()
}

// removeSentDigest removes one entry matching d from the sent-digest queue
// for dest, reporting whether it found one. Must be called with r.mu held.
func (r *Runtime) removeSentDigest(dest int, d digest) bool {
	queue := r.sentDigest[dest]
	for i, e := range queue {
		if e == d {
			r.sentDigest[dest] = append(queue[:i:i], queue[i+1:]...)
			return true
		}
	}
	return false
}
