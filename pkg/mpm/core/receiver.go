package core

import "github.com/dinhtap/gompm/pkg/mpm/types"

// One receiver goroutine per peer, continuously draining that peer's
// inbound p2p pipe. This is the only reader of ep.p2pIn[peer], so no
// locking is needed around the channel itself.
func (r *Runtime) runReceiver(peer int) {
	defer r.receivers.Done()
	in := r.ep.p2pIn[peer]

	for {
		h, ok, err := readHeader(in)
		if err != nil {
			// Unexpected syscall failure, not a peer closure.
			panic(err)
		}
		if !ok {
			r.onReceiverEOF(peer)
			_ = in.Close()
			return
		}

		switch h.Tag {
		case types.TagHintWaiting:
			hh, ok, err := readHeader(in)
			if err != nil {
				panic(err)
			}
			if !ok {
				r.onReceiverEOF(peer)
				_ = in.Close()
				return
			}
			r.handleHint(peer, digest{count: int(hh.Count), tag: hh.Tag})

		case types.TagAbortWait:
			r.handleAbort(peer)

		default:
			payload := make([]byte, h.Count)
			ok, err := in.recvAll(payload)
			if err != nil {
				panic(err)
			}
			if !ok {
				r.onReceiverEOF(peer)
				_ = in.Close()
				return
			}
			r.deliverOrQueue(peer, h.Tag, payload)
		}
	}
}

// onReceiverEOF marks a peer's receiver as no longer live and, if the main
// thread is blocked waiting specifically on that peer, releases it with a
// peer-gone verdict.
func (r *Runtime) onReceiverEOF(peer int) {
	r.log.Debugf("rank %d: peer %d closed its outbound channel", r.rank, peer)
	r.mu.Lock()
	r.receiverAlive[peer] = false
	p := r.pending
	if p != nil && p.outcome == outcomeUnset && p.peer == peer {
		p.outcome = outcomePeerGone
		r.mu.Unlock()
		r.gate.Release(1)
		return
	}
	r.mu.Unlock()
}
