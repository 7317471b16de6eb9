package core

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dinhtap/gompm/pkg/mpm/types"
)

// Lifecycle. InitFromEnvironment is the only entry point that touches the
// process environment; it and NewForTest spawn the receiver goroutines and
// Finalize joins them. Everything else in this package is reachable only
// through the *Runtime they hand back.

// InitFromEnvironment reads MPM_WORLD_SIZE/MPM_RANK (clearing both
// immediately, so user code can never observe them), reopens the
// descriptors the launcher handed this process, and starts one receiver
// goroutine per peer. All system-call failures here are fatal.
func InitFromEnvironment(deadlockDetection bool, log types.Logger) (*Runtime, error) {
	worldStr, rankStr := os.Getenv("MPM_WORLD_SIZE"), os.Getenv("MPM_RANK")
	os.Unsetenv("MPM_WORLD_SIZE")
	os.Unsetenv("MPM_RANK")

	world, err := strconv.Atoi(worldStr)
	if err != nil {
		return nil, fmt.Errorf("%w: MPM_WORLD_SIZE %q", types.ErrMalformedEnv, worldStr)
	}
	rank, err := strconv.Atoi(rankStr)
	if err != nil {
		return nil, fmt.Errorf("%w: MPM_RANK %q", types.ErrMalformedEnv, rankStr)
	}
	if rank < 0 || rank >= world {
		return nil, fmt.Errorf("%w: rank %d, world size %d", types.ErrRankOutOfRange, rank, world)
	}

	ep := newEndpointsFromFDs(rank, world)
	return bootstrap(rank, world, deadlockDetection, log, ep), nil
}

// NewForTest builds a Runtime directly from already-open endpoints,
// bypassing the environment and fd-number plumbing entirely. Tests use it
// to wire several Runtimes together in a single process with os.Pipe()
// pairs standing in for the launcher's pipes.
func NewForTest(rank, world int, deadlockDetection bool, log types.Logger, ep *endpoints) *Runtime {
	return bootstrap(rank, world, deadlockDetection, log, ep)
}

func bootstrap(rank, world int, deadlockDetection bool, log types.Logger, ep *endpoints) *Runtime {
	r := newRuntime(rank, world, deadlockDetection, log, ep)
	for peer := 0; peer < world; peer++ {
		if peer == rank {
			continue
		}
		r.receivers.Add(1)
		go r.runReceiver(peer)
	}
	return r
}

// Finalize closes this process's outbound p2p channels (the signal each
// peer's receiver goroutine needs to see EOF and exit), propagates
// FINALIZE along the tree if group communication is still active, closes
// the group-data descriptors, joins every receiver goroutine, and drops
// the buffered/sent-digest queues.
func (r *Runtime) Finalize() error {
	for peer := 0; peer < r.world; peer++ {
		if peer == r.rank {
			continue
		}
		_ = r.ep.p2pOut[peer].Close()
	}

	if r.groupComm {
		n := r.ep.neighbors
		if n.hasParent {
			r.writeChildFrame(r.ep.parentOut, groupFinalize, nil)
		}
		if n.hasLeft {
			r.writeChildFrame(r.ep.leftOut, groupFinalize, nil)
		}
		if n.hasRight {
			r.writeChildFrame(r.ep.rightOut, groupFinalize, nil)
		}
		r.groupComm = false
		r.closeTreeEdges()
	}

	_ = r.ep.groupDataIn.Close()
	for peer := 0; peer < r.world; peer++ {
		if peer == r.rank {
			continue
		}
		_ = r.ep.groupDataOut[peer].Close()
	}

	r.receivers.Wait()
	r.log.Debugf("rank %d: all receivers joined", r.rank)

	r.mu.Lock()
	r.bufferedRecv = nil
	r.sentDigest = nil
	r.hintSlot = nil
	r.pending = nil
	r.mu.Unlock()

	return nil
}
