package core

import (
	"context"

	"github.com/dinhtap/gompm/pkg/mpm/types"
)

// The match engine. A single mutex (Runtime.mu) protects every field it
// touches; the rendezvous gate (Runtime.gate) is waited on exactly once
// per blocking receive and released exactly once per wake, so at most one
// pending wait can ever exist. A resolved wait stays visible until the
// waiter reaps it, so every waker checks that the outcome is still unset
// before setting it; without that, a delivery racing an EOF on the same
// peer could release the gate twice.

// tryTake scans the peer's buffered-receive queue head-to-tail for the
// first entry matching (count, tag-or-any) and, on a hit, removes and
// returns it. Must be called with r.mu held.
func (r *Runtime) tryTake(peer, count int, tag types.Tag) ([]byte, bool) {
	queue := r.bufferedRecv[peer]
	for i, m := range queue {
		if len(m.payload) == count && (m.tag == tag || tag == types.AnyTag) {
			r.bufferedRecv[peer] = append(queue[:i:i], queue[i+1:]...)
			return m.payload, true
		}
	}
	return nil, false
}

// Recv implements the blocking receive (the library's recv call). tag ==
// types.AnyTag means "any tag".
func (r *Runtime) Recv(buf []byte, source int, tag types.Tag) types.Retcode {
	if source == r.rank {
		return types.SelfOp
	}
	if source < 0 || source >= r.world {
		return types.NoSuchRank
	}

	r.mu.Lock()
	if payload, ok := r.tryTake(source, len(buf), tag); ok {
		copy(buf, payload)
		r.mu.Unlock()
		return types.OK
	}

	if r.deadlockMode {
		if hint := r.hintSlot[source]; hint != nil {
			// The peer is itself blocked waiting on us; both sides are
			// stuck on each other, a symmetric wait. Clear the hint (it
			// can never be satisfied the ordinary way) and tell the peer
			// to give up too.
			r.hintSlot[source] = nil
			alive := r.receiverAlive[source]
			r.mu.Unlock()
			if alive {
				r.sendAbortWait(source)
			}
			return types.Deadlock
		}
	}

	if !r.receiverAlive[source] {
		r.mu.Unlock()
		return types.PeerGone
	}

	r.pending = &pendingWait{peer: source, count: len(buf), tag: tag, buf: buf}
	r.mu.Unlock()

	if r.deadlockMode {
		r.sendHintWaiting(source, len(buf), tag)
	}

	_ = r.gate.Acquire(context.Background(), 1)

	r.mu.Lock()
	outcome := r.pending.outcome
	r.pending = nil
	r.mu.Unlock()

	switch outcome {
	case outcomeDelivered:
		return types.OK
	case outcomePeerGone:
		return types.PeerGone
	default:
		return types.Deadlock
	}
}

// deliverOrQueue is called by a peer's receiver goroutine after it has
// read a complete user payload. If the pending wait matches this frame, it
// is handed straight to the waiter (the pending wait always wins over
// queueing); otherwise it is appended to the buffered-receive queue.
func (r *Runtime) deliverOrQueue(peer int, tag types.Tag, payload []byte) {
	r.mu.Lock()
	p := r.pending
	if p != nil && p.outcome == outcomeUnset && p.peer == peer && len(payload) == p.count && (p.tag == tag || p.tag == types.AnyTag) {
		copy(p.buf, payload)
		p.outcome = outcomeDelivered
		r.mu.Unlock()
		r.gate.Release(1)
		return
	}

	r.bufferedRecv[peer] = append(r.bufferedRecv[peer], bufferedMessage{tag: tag, payload: payload})
	r.mu.Unlock()
}

// sendHintWaiting transmits HINT_WAITING followed by the (count, tag)
// header the caller is blocked on. Used only in deadlock-detection mode.
func (r *Runtime) sendHintWaiting(peer, count int, tag types.Tag) {
	out := r.ep.p2pOut[peer]
	if out == nil {
		return
	}
	if err := writeHeader(out, frameHeader{Count: 0, Tag: types.TagHintWaiting}); err != nil {
		return
	}
	_ = writeHeader(out, frameHeader{Count: int32(count), Tag: tag})
}

// sendAbortWait transmits ABORT_WAIT to unblock a peer whose wait this
// process has just proven can never be satisfied.
func (r *Runtime) sendAbortWait(peer int) {
	out := r.ep.p2pOut[peer]
	if out == nil {
		return
	}
	_ = writeHeader(out, frameHeader{Count: 0, Tag: types.TagAbortWait})
}
