package core

import "github.com/dinhtap/gompm/pkg/mpm/types"

// The tree-structured group-communication engine. Every collective
// shares the same upward/downward shape: receive from both children,
// detect a FINALIZE from either and propagate it, otherwise combine with
// the local value, send upward, wait for a downward verdict, fan it (and,
// for broadcast, its payload) back down. All three collectives run
// synchronously on the calling goroutine; there is no separate receiver
// pool for tree edges.
//
// FINALIZE never carries a payload alongside it, on any edge, for any
// collective.

// readChildFrame reads one child's contribution: a one-byte status and,
// only when that status is READY and payloadLen > 0, payloadLen more
// bytes. A clean EOF on the edge (the peer process tore down without a
// clean Finalize) is folded into groupFinalize; there is no fault
// tolerance beyond the documented FINALIZE propagation.
func (r *Runtime) readChildFrame(ch *channel, payloadLen int) groupStatusFrame {
	hdr := make([]byte, 1)
	ok, err := ch.recvAll(hdr)
	if err != nil {
		panic(err)
	}
	if !ok {
		return groupStatusFrame{status: groupFinalize}
	}
	status := groupStatus(hdr[0])
	if status == groupFinalize || payloadLen == 0 {
		return groupStatusFrame{status: status}
	}
	payload := make([]byte, payloadLen)
	ok, err = ch.recvAll(payload)
	if err != nil {
		panic(err)
	}
	if !ok {
		return groupStatusFrame{status: groupFinalize}
	}
	return groupStatusFrame{status: status, payload: payload}
}

type groupStatusFrame struct {
	status  groupStatus
	payload []byte
}

func (r *Runtime) writeChildFrame(ch *channel, status groupStatus, payload []byte) {
	if ch == nil {
		return
	}
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(status)
	copy(buf[1:], payload)
	_ = ch.sendAll(buf) // best-effort: a gone peer is discovered on its own edge, not ours
}

// finalizeFromChildren propagates FINALIZE to the parent (if any) and to
// whichever child did not itself report FINALIZE (the other child still
// needs draining), lowers the group-comm flag, and closes the six tree
// descriptors.
func (r *Runtime) finalizeFromChildren(leftFinalized, rightFinalized bool) {
	n := r.ep.neighbors
	if n.hasParent {
		r.writeChildFrame(r.ep.parentOut, groupFinalize, nil)
	}
	if n.hasLeft && !leftFinalized {
		r.writeChildFrame(r.ep.leftOut, groupFinalize, nil)
	}
	if n.hasRight && !rightFinalized {
		r.writeChildFrame(r.ep.rightOut, groupFinalize, nil)
	}
	r.groupComm = false
	r.closeTreeEdges()
}

// finalizeFromParent lowers the flag and closes descriptors after a
// FINALIZE arrived from the parent during the downward phase.
func (r *Runtime) finalizeFromParent() {
	r.groupComm = false
	r.closeTreeEdges()
}

func (r *Runtime) closeTreeEdges() {
	_ = r.ep.parentIn.Close()
	_ = r.ep.parentOut.Close()
	_ = r.ep.leftIn.Close()
	_ = r.ep.leftOut.Close()
	_ = r.ep.rightIn.Close()
	_ = r.ep.rightOut.Close()
}

// Barrier implements the library's barrier call: no payload, every rank
// blocks until every rank has called it.
func (r *Runtime) Barrier() types.Retcode {
	if !r.groupComm {
		return types.PeerGone
	}
	n := r.ep.neighbors

	left, right := groupStatusFrame{status: groupReady}, groupStatusFrame{status: groupReady}
	if n.hasLeft {
		left = r.readChildFrame(r.ep.leftIn, 0)
	}
	if n.hasRight {
		right = r.readChildFrame(r.ep.rightIn, 0)
	}
	if left.status == groupFinalize || right.status == groupFinalize {
		r.finalizeFromChildren(left.status == groupFinalize, right.status == groupFinalize)
		return types.PeerGone
	}

	my := groupReady
	if n.hasParent {
		r.writeChildFrame(r.ep.parentOut, groupReady, nil)
		my = r.readChildFrame(r.ep.parentIn, 0).status
	}
	if n.hasLeft {
		r.writeChildFrame(r.ep.leftOut, my, nil)
	}
	if n.hasRight {
		r.writeChildFrame(r.ep.rightOut, my, nil)
	}
	if my == groupFinalize {
		r.finalizeFromParent()
		return types.PeerGone
	}
	return types.OK
}

// Broadcast implements the library's broadcast call. buf is both the
// source buffer (at rank == root) and the destination buffer (everywhere
// else); every rank ends with the same n bytes, or PEER_GONE if any
// participant finalized first.
func (r *Runtime) Broadcast(buf []byte, root int) types.Retcode {
	if root < 0 || root >= r.world {
		return types.NoSuchRank
	}
	if !r.groupComm {
		return types.PeerGone
	}
	n := r.ep.neighbors
	count := len(buf)

	left, right := groupStatusFrame{status: groupReady}, groupStatusFrame{status: groupReady}
	if n.hasLeft {
		left = r.readChildFrame(r.ep.leftIn, 0)
	}
	if n.hasRight {
		right = r.readChildFrame(r.ep.rightIn, 0)
	}
	if left.status == groupFinalize || right.status == groupFinalize {
		r.finalizeFromChildren(left.status == groupFinalize, right.status == groupFinalize)
		return types.PeerGone
	}

	var downward []byte
	myStatus := groupReady
	if !n.hasParent {
		// Rank 0: the tree root. The value either originates here or
		// arrives over the dedicated broadcast data-fan path.
		if root == r.rank {
			downward = append([]byte(nil), buf...)
		} else {
			downward = make([]byte, count)
			ok, err := r.ep.groupDataIn.recvAll(downward)
			if err != nil {
				panic(err)
			}
			if !ok {
				// The source tore down the data channel mid-collective.
				// The children are still blocked on their downward read,
				// so fan FINALIZE to them before giving up.
				r.finalizeFromChildren(false, false)
				return types.PeerGone
			}
		}
	} else {
		r.writeChildFrame(r.ep.parentOut, groupReady, nil)
		if root == r.rank {
			// Unicast the source value to rank 0. This must come after
			// the upward READY: a large payload can fill the data pipe
			// and block here, and rank 0 only starts draining it once
			// every subtree has reported READY.
			_ = r.ep.groupDataOut[0].sendAll(buf)
		}
		frame := r.readChildFrame(r.ep.parentIn, count)
		myStatus = frame.status
		downward = frame.payload
	}

	if n.hasLeft {
		r.writeChildFrame(r.ep.leftOut, myStatus, downward)
	}
	if n.hasRight {
		r.writeChildFrame(r.ep.rightOut, myStatus, downward)
	}

	if myStatus == groupFinalize {
		r.finalizeFromParent()
		return types.PeerGone
	}

	if root != r.rank {
		copy(buf, downward)
	}
	return types.OK
}

// Reduce implements the library's reduce call. Every rank contributes
// sendBuf; the combined n-byte result (element-wise over unsigned bytes,
// modulo 256 for SUM/PROD) lands in recvBuf at root.
func (r *Runtime) Reduce(sendBuf, recvBuf []byte, op types.Op, root int) types.Retcode {
	if root < 0 || root >= r.world {
		return types.NoSuchRank
	}
	if !r.groupComm {
		return types.PeerGone
	}
	n := r.ep.neighbors
	count := len(sendBuf)

	var left, right groupStatusFrame
	haveLeft, haveRight := false, false
	if n.hasLeft {
		left = r.readChildFrame(r.ep.leftIn, count)
		haveLeft = true
	}
	if n.hasRight {
		right = r.readChildFrame(r.ep.rightIn, count)
		haveRight = true
	}
	if (haveLeft && left.status == groupFinalize) || (haveRight && right.status == groupFinalize) {
		r.finalizeFromChildren(haveLeft && left.status == groupFinalize, haveRight && right.status == groupFinalize)
		return types.PeerGone
	}

	upward := make([]byte, count)
	for i, b := range sendBuf {
		acc := b
		if haveLeft {
			acc = op.Apply(acc, left.payload[i])
		}
		if haveRight {
			acc = op.Apply(acc, right.payload[i])
		}
		upward[i] = acc
	}

	myStatus := groupReady
	if n.hasParent {
		r.writeChildFrame(r.ep.parentOut, groupReady, upward)
		frame := r.readChildFrame(r.ep.parentIn, 0)
		myStatus = frame.status
	}

	if n.hasLeft {
		r.writeChildFrame(r.ep.leftOut, myStatus, nil)
	}
	if n.hasRight {
		r.writeChildFrame(r.ep.rightOut, myStatus, nil)
	}

	if myStatus == groupFinalize {
		r.finalizeFromParent()
		return types.PeerGone
	}

	if !n.hasParent {
		// Rank 0 holds the final reduced value.
		if root == r.rank {
			copy(recvBuf, upward)
		} else {
			_ = r.ep.groupDataOut[root].sendAll(upward)
		}
	} else if root == r.rank {
		ok, err := r.ep.groupDataIn.recvAll(recvBuf)
		if err != nil {
			panic(err)
		}
		if !ok {
			return types.PeerGone
		}
	}
	return types.OK
}
