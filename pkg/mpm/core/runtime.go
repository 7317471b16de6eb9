// Package core implements the MPM engine: channel I/O, the per-peer
// endpoint table, the inbound demultiplexer, the match engine, the
// deadlock protocol, the group tree engine, and the init/finalize
// lifecycle. These share one lock and one set of invariants and are
// intentionally kept together as a single package.
//
// Everything here is reached through a *Runtime value instead of file-scope
// globals, so a process's "exactly one group" nature is expressed as one
// value with a lifetime, not a package singleton, which keeps the engine
// unit-testable with in-process os.Pipe() pairs standing in for the
// launcher's real pipes.
package core

import (
	"context"
	"sync"

	"github.com/dinhtap/gompm/pkg/mpm/types"
	"golang.org/x/sync/semaphore"
)

// bufferedMessage is one entry in a per-source FIFO queue awaiting a
// matching blocking_recv.
type bufferedMessage struct {
	tag     types.Tag
	payload []byte
}

// digest is a (count, tag) descriptor: either a sent-but-unconfirmed
// message (sentDigest) or an announced-but-unmatched wait (hintSlot).
type digest struct {
	count int
	tag   types.Tag
}

// waitOutcome is how a blocking_recv's pending wait was resolved.
type waitOutcome int

const (
	outcomeUnset waitOutcome = iota
	outcomeDelivered
	outcomePeerGone
	outcomeDeadlock
)

// pendingWait is the singleton record for the one blocking receive that
// found no buffered match. Invariant: at most one exists at a time (the
// core serializes blocking receives onto a single main-thread caller).
type pendingWait struct {
	peer  int
	count int
	tag   types.Tag
	buf   []byte

	outcome waitOutcome
}

// Runtime is the per-process core state. One mutex guards the buffered
// queues, digests, hint slots, liveness flags, and the single pending
// wait; the rendezvous gate starts empty, is waited on once per blocking
// receive, and is released exactly once per wake.
type Runtime struct {
	rank, world  int
	deadlockMode bool
	log          types.Logger

	ep *endpoints

	mu   sync.Mutex
	gate *semaphore.Weighted

	bufferedRecv map[int][]bufferedMessage // keyed by source peer rank
	sentDigest   map[int][]digest          // keyed by destination peer rank
	hintSlot     map[int]*digest           // keyed by peer rank; nil entry = empty slot

	pending *pendingWait

	receiverAlive []bool // indexed by rank

	groupComm bool

	receivers sync.WaitGroup
}

func newRuntime(rank, world int, deadlockMode bool, log types.Logger, ep *endpoints) *Runtime {
	gate := semaphore.NewWeighted(1)
	// Consume the one initial token so the gate starts empty.
	_ = gate.Acquire(context.Background(), 1)

	r := &Runtime{
		rank:          rank,
		world:         world,
		deadlockMode:  deadlockMode,
		log:           log,
		ep:            ep,
		gate:          gate,
		bufferedRecv:  make(map[int][]bufferedMessage, world),
		sentDigest:    make(map[int][]digest, world),
		hintSlot:      make(map[int]*digest, world),
		receiverAlive: make([]bool, world),
		groupComm:     true,
	}
	for peer := 0; peer < world; peer++ {
		if peer != rank {
			r.receiverAlive[peer] = true
		}
	}
	return r
}

// WorldSize and WorldRank implement the corresponding library calls.
func (r *Runtime) WorldSize() int { return r.world }
func (r *Runtime) WorldRank() int { return r.rank }
