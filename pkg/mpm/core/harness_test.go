package core

import (
	"os"
	"testing"

	"github.com/dinhtap/gompm/pkg/mpm/definition"
)

// testCluster wires world Runtimes together in a single test process,
// using real os.Pipe() pairs in place of the launcher's pre-opened
// descriptors. This is exactly the seam newEndpoints/NewForTest exist for.
type testCluster struct {
	t        *testing.T
	world    int
	runtimes []*Runtime
	done     []chan struct{} // non-nil once that rank's Finalize has started
}

// beginFinalize starts one rank's Finalize on its own goroutine, e.g. to
// simulate a peer tearing down mid-test. It cannot be synchronous:
// Finalize joins the rank's receiver goroutines, and those exit only once
// every peer has closed its outbound ends, so a lone rank's Finalize does
// not return until the rest of the group finalizes too.
func (c *testCluster) beginFinalize(rank int) {
	if c.done[rank] != nil {
		return
	}
	ch := make(chan struct{})
	c.done[rank] = ch
	rt := c.runtimes[rank]
	go func() {
		defer close(ch)
		_ = rt.Finalize()
	}()
}

func mustPipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	return r, w
}

func newTestCluster(t *testing.T, world int, deadlock bool) *testCluster {
	t.Helper()

	p2p := make([][]struct{ r, w *os.File }, world)
	for i := range p2p {
		p2p[i] = make([]struct{ r, w *os.File }, world)
	}
	for i := 0; i < world; i++ {
		for j := 0; j < world; j++ {
			if i == j {
				continue
			}
			r, w := mustPipe(t)
			p2p[i][j] = struct{ r, w *os.File }{r, w}
		}
	}

	groupData := make([]struct{ r, w *os.File }, world)
	for i := 0; i < world; i++ {
		r, w := mustPipe(t)
		groupData[i] = struct{ r, w *os.File }{r, w}
	}

	type treePipe struct{ r, w *os.File }
	treeDown := make([]treePipe, max0(world-1))
	treeUp := make([]treePipe, max0(world-1))
	for pos := 2; pos <= world; pos++ {
		dr, dw := mustPipe(t)
		ur, uw := mustPipe(t)
		treeDown[pos-2] = treePipe{dr, dw}
		treeUp[pos-2] = treePipe{ur, uw}
	}

	runtimes := make([]*Runtime, world)
	for rank := 0; rank < world; rank++ {
		p2pIn := make([]*os.File, world-1)
		p2pOut := make([]*os.File, world-1)
		groupDataOut := make([]*os.File, world-1)
		for peer := 0; peer < world; peer++ {
			if peer == rank {
				continue
			}
			idx := compactIndex(rank, peer)
			p2pIn[idx] = p2p[peer][rank].r
			p2pOut[idx] = p2p[rank][peer].w
			groupDataOut[idx] = groupData[peer].w
		}

		pos := rank + 1
		parentPos, leftPos, rightPos := pos/2, pos*2, pos*2+1
		var parentIn, parentOut, leftIn, leftOut, rightIn, rightOut *os.File
		if parentPos > 0 {
			parentIn, parentOut = treeDown[pos-2].r, treeUp[pos-2].w
		}
		if leftPos <= world {
			leftIn, leftOut = treeUp[leftPos-2].r, treeDown[leftPos-2].w
		}
		if rightPos <= world {
			rightIn, rightOut = treeUp[rightPos-2].r, treeDown[rightPos-2].w
		}

		ep := newEndpoints(rank, world, p2pIn, p2pOut, groupDataOut, groupData[rank].r,
			parentIn, parentOut, leftIn, leftOut, rightIn, rightOut)
		runtimes[rank] = NewForTest(rank, world, deadlock, definition.NoopLogger{}, ep)
	}

	c := &testCluster{t: t, world: world, runtimes: runtimes, done: make([]chan struct{}, world)}
	t.Cleanup(c.finalizeAll)
	return c
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// finalizeAll finalizes every rank that has not begun finalizing yet and
// waits for the whole group, in-flight beginFinalize calls included, to
// finish. Safe to call more than once.
func (c *testCluster) finalizeAll() {
	for rank := range c.runtimes {
		c.beginFinalize(rank)
	}
	for _, done := range c.done {
		<-done
	}
}
