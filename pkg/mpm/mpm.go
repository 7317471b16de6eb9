// Package mpm is the library surface of the runtime: a fixed-size group
// of cooperating processes exchanging tagged point-to-point messages,
// plus a barrier, a broadcast, and a reduction, with an optional
// deadlock-detection mode for symmetric pairwise waits.
//
// A process calls Init exactly once, issues any mix of Send/Recv and
// collective calls from a single goroutine (collectives and blocking
// receives are not safe to call concurrently from multiple goroutines
// within one process), and calls Finalize exactly once before exiting.
package mpm

import (
	"fmt"
	"os"
	"sync"

	"github.com/dinhtap/gompm/pkg/mpm/core"
	"github.com/dinhtap/gompm/pkg/mpm/definition"
	"github.com/dinhtap/gompm/pkg/mpm/types"
)

// Re-exported vocabulary so callers only need to import this one package.
type (
	Retcode = types.Retcode
	Op      = types.Op
	Logger  = types.Logger
)

const (
	OK         = types.OK
	PeerGone   = types.PeerGone
	NoSuchRank = types.NoSuchRank
	SelfOp     = types.SelfOp
	Deadlock   = types.Deadlock

	OpMin  = types.OpMin
	OpMax  = types.OpMax
	OpSum  = types.OpSum
	OpProd = types.OpProd
)

var (
	mu     sync.Mutex
	active *core.Runtime
)

// DeadlockRequested reports whether cmd/mpmrun was invoked with
// --deadlock. It reads MPM_DEADLOCK, the extra environment variable the
// launcher sets alongside MPM_WORLD_SIZE/MPM_RANK to propagate that flag
// to every worker. A user program typically calls
// mpm.Init(mpm.DeadlockRequested()) so the launcher flag actually controls
// the deadlock-detection mode rather than requiring a recompile.
func DeadlockRequested() bool {
	return os.Getenv("MPM_DEADLOCK") != ""
}

// Init spawns the receiver-thread pool and endpoint table for this
// process, reading MPM_WORLD_SIZE/MPM_RANK from the environment (set by
// the launcher) and clearing them immediately. Pass deadlockDetection to
// enable the pairwise deadlock protocol on every p2p channel.
func Init(deadlockDetection bool) error {
	mu.Lock()
	defer mu.Unlock()
	if active != nil {
		return fmt.Errorf("mpm: already initialized")
	}
	rt, err := core.InitFromEnvironment(deadlockDetection, definition.NewDefaultLogger())
	if err != nil {
		return err
	}
	active = rt
	return nil
}

// Finalize closes every channel, joins every receiver goroutine, and
// releases this process's runtime state.
func Finalize() error {
	mu.Lock()
	rt := active
	active = nil
	mu.Unlock()
	if rt == nil {
		return fmt.Errorf("mpm: not initialized")
	}
	return rt.Finalize()
}

func runtime() *core.Runtime {
	mu.Lock()
	rt := active
	mu.Unlock()
	if rt == nil {
		panic("mpm: called before Init or after Finalize")
	}
	return rt
}

// WorldSize returns the total number of workers in the group.
func WorldSize() int { return runtime().WorldSize() }

// WorldRank returns this process's 0-based rank.
func WorldRank() int { return runtime().WorldRank() }

// Send transmits buf to dest tagged with tag. Blocks until the payload has
// been handed to the kernel pipe (not until it is received).
func Send(buf []byte, dest int, tag int) Retcode {
	return runtime().Send(buf, dest, types.Tag(tag))
}

// Recv blocks until a message of exactly len(buf) bytes from source
// matching tag (or any tag, if tag == 0) is available, then copies it into
// buf.
func Recv(buf []byte, source int, tag int) Retcode {
	return runtime().Recv(buf, source, types.Tag(tag))
}

// Barrier blocks until every rank in the group has called Barrier.
func Barrier() Retcode {
	return runtime().Barrier()
}

// Broadcast sends buf from root to every other rank, overwriting buf with
// the broadcast value everywhere else.
func Broadcast(buf []byte, root int) Retcode {
	return runtime().Broadcast(buf, root)
}

// Reduce combines sendBuf from every rank element-wise under op, writing
// the result into recvBuf at root.
func Reduce(sendBuf, recvBuf []byte, op Op, root int) Retcode {
	return runtime().Reduce(sendBuf, recvBuf, op, root)
}
