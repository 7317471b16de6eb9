package core

import "github.com/dinhtap/gompm/pkg/mpm/types"

// Send implements the library's point-to-point send. When deadlock
// detection is enabled it also performs the sent-digest/hint bookkeeping.
func (r *Runtime) Send(buf []byte, dest int, tag types.Tag) types.Retcode {
	if dest == r.rank {
		return types.SelfOp
	}
	if dest < 0 || dest >= r.world {
		return types.NoSuchRank
	}

	if r.deadlockMode {
		r.mu.Lock()
		if !r.receiverAlive[dest] {
			r.mu.Unlock()
			return types.PeerGone
		}
		if hint := r.hintSlot[dest]; hint != nil && hint.count == len(buf) && hint.tag == tag {
			// The peer already announced the exact wait this send will
			// satisfy; no sent-digest record is needed.
			r.hintSlot[dest] = nil
		} else {
			r.sentDigest[dest] = append(r.sentDigest[dest], digest{count: len(buf), tag: tag})
		}
		r.mu.Unlock()
	}

	out := r.ep.p2pOut[dest]
	if err := writeHeader(out, frameHeader{Count: int32(len(buf)), Tag: tag}); err != nil {
		if err != errPeerGone {
			panic(err)
		}
		return types.PeerGone
	}
	if err := out.sendAll(buf); err != nil {
		if err != errPeerGone {
			panic(err)
		}
		return types.PeerGone
	}
	return types.OK
}
